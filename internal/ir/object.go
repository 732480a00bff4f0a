package ir

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
)

// ErrFrozen is returned by low-level mutators on a frozen object.
var ErrFrozen = errors.New("object is frozen")

// ErrNotFunction is returned when a call target is not a function object.
var ErrNotFunction = errors.New("not a function")

// Kind distinguishes the built-in object layouts.
type Kind int

const (
	// KindRecord is a plain keyed record.
	KindRecord Kind = iota
	// KindArray is a dense list indexed by decimal slot names.
	KindArray
	// KindInstance is an object built by a constructor.
	KindInstance
	// KindFunction is a callable object.
	KindFunction
	// KindError is an error instance with a "message" slot.
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindArray:
		return "array"
	case KindInstance:
		return "instance"
	case KindFunction:
		return "function"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Func is the native implementation of a function object. self is the
// receiver (Undefined for plain calls).
type Func func(self Value, args []Value) (Value, error)

// Function holds the callable part of a function object.
type Function struct {
	Name  string
	Arity int
	Impl  Func

	// prototype is the delegation parent given to instances this function
	// builds.
	prototype *Object
}

// lastID hands out process-unique object IDs.
var lastID atomic.Uint64

// Object is a node in the single-parent delegation graph.
//
// Records, instances, errors and functions keep named slots in insertion
// order. Arrays keep dense elements addressed by decimal names plus a
// read-only "length".
type Object struct {
	id     uint64
	kind   Kind
	parent *Object
	frozen bool

	names []string
	slots map[string]Value
	elems []Value

	// ctor is the constructor that built this object, recorded once at
	// construction. nil means the root record/array constructor.
	ctor *Object

	// protoOf is set when this object is some function's prototype.
	protoOf *Object

	fn *Function

	// ext holds key-lifetime annotations, keyed by table ID.
	ext map[uint64]any
}

func newObject(kind Kind, parent *Object) *Object {
	return &Object{
		id:     lastID.Add(1),
		kind:   kind,
		parent: parent,
		slots:  make(map[string]Value),
	}
}

// Pair is a key-value pair for ordered record construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewRecord(P("name", String("cart")), P("count", Int(5)))
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewRecord creates an unfrozen record with the given slots in order.
func NewRecord(pairs ...Pair) *Object {
	o := newObject(KindRecord, nil)
	for _, p := range pairs {
		o.put(p.Key, p.Value)
	}
	return o
}

// Beget creates an empty record delegating to parent.
func Beget(parent *Object) *Object {
	return newObject(KindRecord, parent)
}

// NewArray creates an unfrozen array holding elems.
func NewArray(elems ...Value) *Object {
	o := newObject(KindArray, nil)
	o.elems = make([]Value, len(elems))
	for i, e := range elems {
		o.elems[i] = Normalize(e)
	}
	return o
}

// NewFunction creates an unfrozen, unclassified function object.
func NewFunction(name string, arity int, impl Func) *Object {
	o := newObject(KindFunction, nil)
	o.fn = &Function{Name: name, Arity: arity, Impl: impl}
	return o
}

// NewError creates an error instance carrying message.
func NewError(message string) *Object {
	o := newObject(KindError, nil)
	o.put("message", String(message))
	return o
}

// NewInstance creates an empty object built by ctor: it delegates to the
// constructor's prototype and records ctor as its direct constructor.
// The constructor's Impl is NOT run.
func NewInstance(ctor *Object) (*Object, error) {
	if ctor == nil || ctor.fn == nil {
		return nil, ErrNotFunction
	}
	o := newObject(KindInstance, ctor.fn.prototype)
	o.ctor = ctor
	return o, nil
}

// ID returns the process-unique object ID.
func (o *Object) ID() uint64 { return o.id }

// Kind returns the object layout.
func (o *Object) Kind() Kind { return o.kind }

// Parent returns the delegation parent, or nil.
func (o *Object) Parent() *Object { return o.parent }

// IsFrozen reports whether the object has been frozen.
func (o *Object) IsFrozen() bool { return o.frozen }

// Freeze sets the permanent frozen flag. It is the low-level primitive and
// does not touch any access bookkeeping kept elsewhere.
func (o *Object) Freeze() { o.frozen = true }

// Ctor returns the direct constructor recorded at construction, or nil.
func (o *Object) Ctor() *Object { return o.ctor }

// Func returns the callable part, or nil if o is not a function.
func (o *Object) Func() *Function { return o.fn }

// IsFunction reports whether o is callable.
func (o *Object) IsFunction() bool { return o.fn != nil }

// Name returns the function name, or "" for non-functions.
func (o *Object) Name() string {
	if o.fn == nil {
		return ""
	}
	return o.fn.Name
}

// Prototype returns the prototype of a function object, or nil.
func (o *Object) Prototype() *Object {
	if o.fn == nil {
		return nil
	}
	return o.fn.prototype
}

// SetPrototype associates p as the prototype of function o.
func (o *Object) SetPrototype(p *Object) error {
	if o.fn == nil {
		return ErrNotFunction
	}
	if o.frozen {
		return ErrFrozen
	}
	if o.fn.prototype != nil && o.fn.prototype.protoOf == o {
		o.fn.prototype.protoOf = nil
	}
	o.fn.prototype = p
	if p != nil {
		p.protoOf = o
	}
	return nil
}

// PrototypeOf returns the function whose prototype o is, or nil.
func (o *Object) PrototypeOf() *Object { return o.protoOf }

// IsPrototypical reports whether o serves as some function's prototype.
func (o *Object) IsPrototypical() bool { return o.protoOf != nil }

// Call runs the function implementation with the given receiver.
func (o *Object) Call(self Value, args []Value) (Value, error) {
	if o.fn == nil || o.fn.Impl == nil {
		return nil, fmt.Errorf("%s: %w", o, ErrNotFunction)
	}
	v, err := o.fn.Impl(Normalize(self), args)
	if err != nil {
		return Undefined{}, err
	}
	return Normalize(v), nil
}

// Len returns the number of array elements, or the own slot count.
func (o *Object) Len() int {
	if o.kind == KindArray {
		return len(o.elems)
	}
	return len(o.names)
}

// Elems returns a copy of the array elements.
func (o *Object) Elems() []Value {
	return slices.Clone(o.elems)
}

// Own returns the value of a local slot.
func (o *Object) Own(name string) (Value, bool) {
	if o.kind == KindArray {
		if name == "length" {
			return Int(len(o.elems)), true
		}
		i, ok := ArrayIndex(name)
		if !ok || i >= len(o.elems) {
			return nil, false
		}
		return o.elems[i], true
	}
	v, ok := o.slots[NormalizeName(name)]
	return v, ok
}

// HasOwn reports whether name is a local slot.
func (o *Object) HasOwn(name string) bool {
	_, ok := o.Own(name)
	return ok
}

// Lookup finds name on o or the nearest delegation ancestor, returning the
// object that directly holds the slot.
func (o *Object) Lookup(name string) (holder *Object, v Value, ok bool) {
	for cur := o; cur != nil; cur = cur.parent {
		if v, ok := cur.Own(name); ok {
			return cur, v, true
		}
	}
	return nil, nil, false
}

// Keys returns the local slot names in insertion order. Arrays list their
// indices; "length" is not included.
func (o *Object) Keys() []string {
	if o.kind == KindArray {
		keys := make([]string, len(o.elems))
		for i := range o.elems {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	return slices.Clone(o.names)
}

// Set defines or overwrites a local slot. It never consults the delegation
// parent. Arrays accept an existing index or exactly the next index.
func (o *Object) Set(name string, v Value) error {
	if o.frozen {
		return ErrFrozen
	}
	v = Normalize(v)
	if o.kind == KindArray {
		i, ok := ArrayIndex(name)
		switch {
		case !ok:
			return fmt.Errorf("array slot %q: not an index", name)
		case i < len(o.elems):
			o.elems[i] = v
		case i == len(o.elems):
			o.elems = append(o.elems, v)
		default:
			return fmt.Errorf("array slot %q: index beyond length %d", name, len(o.elems))
		}
		return nil
	}
	o.put(name, v)
	return nil
}

// Delete removes a local slot. Arrays can only drop their last element.
func (o *Object) Delete(name string) (bool, error) {
	if o.frozen {
		return false, ErrFrozen
	}
	if o.kind == KindArray {
		i, ok := ArrayIndex(name)
		if !ok || i >= len(o.elems) {
			return false, nil
		}
		if i != len(o.elems)-1 {
			return false, fmt.Errorf("array slot %q: only the last element can be deleted", name)
		}
		o.elems = o.elems[:i]
		return true, nil
	}
	name = NormalizeName(name)
	if _, ok := o.slots[name]; !ok {
		return false, nil
	}
	delete(o.slots, name)
	o.names = slices.DeleteFunc(o.names, func(n string) bool { return n == name })
	return true, nil
}

// put stores name in NFC form so host-built slots agree with mediated
// lookups.
func (o *Object) put(name string, v Value) {
	name = NormalizeName(name)
	if _, exists := o.slots[name]; !exists {
		o.names = append(o.names, name)
	}
	o.slots[name] = Normalize(v)
}

// Annotation returns key-lifetime storage attached to o under key.
func (o *Object) Annotation(key uint64) (any, bool) {
	v, ok := o.ext[key]
	return v, ok
}

// SetAnnotation attaches v to o under key. Annotations are not slots: they
// are invisible to enumeration and unaffected by freeze.
func (o *Object) SetAnnotation(key uint64, v any) {
	if o.ext == nil {
		o.ext = make(map[uint64]any)
	}
	o.ext[key] = v
}

// DeleteAnnotation removes the annotation under key.
func (o *Object) DeleteAnnotation(key uint64) {
	delete(o.ext, key)
}

// String renders a short identity for logs, e.g. "function Foo#12".
func (o *Object) String() string {
	if o == nil {
		return "<nil>"
	}
	if o.fn != nil && o.fn.Name != "" {
		return fmt.Sprintf("function %s#%d", o.fn.Name, o.id)
	}
	return fmt.Sprintf("%s#%d", o.kind, o.id)
}

// ArrayIndex parses a canonical decimal array index ("0", "12"; not "01").
func ArrayIndex(name string) (int, bool) {
	if name == "" || (len(name) > 1 && name[0] == '0') {
		return 0, false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return i, true
}
