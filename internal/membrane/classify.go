package membrane

import (
	"fmt"

	"github.com/roach88/membrane/internal/ir"
)

// Shape is the exclusive classification controlling how guests may invoke
// a function.
type Shape int

const (
	// Unclassified functions are fully inaccessible to guests.
	Unclassified Shape = iota
	// Plain functions are callable, never constructible, and frozen.
	Plain
	// Constructor functions are invocable only by construction.
	Constructor
	// Exophoric functions take any receiver and are exposed to guests
	// as PseudoFunction records.
	Exophoric
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case Plain:
		return "plain"
	case Constructor:
		return "constructor"
	case Exophoric:
		return "exophoric"
	default:
		return "unclassified"
	}
}

// PreHook rewrites the receiver's arguments before a function runs.
type PreHook func(self ir.Value, args []ir.Value) ([]ir.Value, error)

// PostHook rewrites a function's result.
type PostHook func(result ir.Value) (ir.Value, error)

// funcInfo is the classification of one function object.
type funcInfo struct {
	shape    Shape
	name     string
	super    *ir.Object
	inert    bool
	innocent bool
	pre      PreHook
	post     PostHook
	pseudo   *ir.Object
}

func (rt *Runtime) infoOf(fn *ir.Object, create bool) *funcInfo {
	if info, ok := rt.funcs.Get(fn); ok {
		return info
	}
	if !create {
		return nil
	}
	info := &funcInfo{}
	_ = rt.funcs.Set(fn, info)
	return info
}

// ShapeOf returns the classification of fn; non-functions are Unclassified.
func (rt *Runtime) ShapeOf(fn *ir.Object) Shape {
	if fn == nil || !fn.IsFunction() {
		return Unclassified
	}
	if info := rt.infoOf(fn, false); info != nil {
		return info.shape
	}
	return Unclassified
}

func requireFunction(fn *ir.Object, what string) error {
	if fn == nil || !fn.IsFunction() {
		return NewConfigurationError("%s: not a function: %s", what, fn)
	}
	return nil
}

func (rt *Runtime) isRoot(fn *ir.Object) bool {
	return fn != nil && (fn == rt.objectCtor || fn == rt.arrayCtor || fn == rt.errorCtor)
}

// ============================================================================
// Classification
// ============================================================================

// MarkConstructor classifies fn as a constructor deriving from parent.
//
// Marking is one-shot: a function that already carries any shape is
// rejected. Only the root Object constructor may have a nil parent. fn's
// prototype is created to delegate to parent's prototype if absent, and an
// existing prototype must already delegate there. Instances of marked
// constructors tame to themselves.
func (rt *Runtime) MarkConstructor(fn, parent *ir.Object, name string) error {
	if err := requireFunction(fn, "MarkConstructor"); err != nil {
		return err
	}
	info := rt.infoOf(fn, true)
	switch info.shape {
	case Plain:
		return NewConfigurationError("plain functions can't be constructors: %s", fn)
	case Exophoric:
		return NewConfigurationError("exophoric functions can't be constructors: %s", fn)
	case Constructor:
		return NewConfigurationError("constructor already marked: %s", fn)
	}
	if info.innocent {
		return NewConfigurationError("innocent functions can't be constructors: %s", fn)
	}

	if parent == nil {
		if fn != rt.objectCtor {
			return NewConfigurationError("only Object has no super constructor: %s", fn)
		}
	} else if err := rt.derive(fn, parent); err != nil {
		return err
	}

	info.shape = Constructor
	info.super = parent
	if name != "" {
		info.name = name
	} else {
		info.name = fn.Name()
	}

	if !rt.isRoot(fn) && fn.Prototype() != nil {
		self := func(o *ir.Object) (ir.Value, bool) { return o, true }
		_ = rt.hooks.Set(fn.Prototype(), &tamingHooks{asTamed: self, asUntamed: self})
	}
	return nil
}

// derive links fn's prototype under parent's prototype.
func (rt *Runtime) derive(fn, parent *ir.Object) error {
	if rt.ShapeOf(parent) != Constructor {
		return NewConfigurationError("super of %s is not a constructor: %s", fn, parent)
	}
	if rt.isRoot(fn) {
		return nil
	}
	if fn.IsFrozen() {
		return NewConfigurationError("derived constructor already frozen: %s", fn)
	}
	superProto := parent.Prototype()
	proto := fn.Prototype()
	if proto == nil {
		return fn.SetPrototype(ir.Beget(superProto))
	}
	if proto.Parent() != superProto {
		return NewConfigurationError("unrecognized prototype chain for %s", fn)
	}
	return nil
}

// MarkPlain classifies fn as Plain and freezes it. Re-marking a Plain
// function is a no-op.
func (rt *Runtime) MarkPlain(fn *ir.Object, name string) error {
	if err := requireFunction(fn, "MarkPlain"); err != nil {
		return err
	}
	info := rt.infoOf(fn, true)
	switch {
	case info.shape == Constructor:
		return NewConfigurationError("constructors can't be plain functions: %s", fn)
	case info.shape == Exophoric:
		return NewConfigurationError("exophoric functions can't be plain functions: %s", fn)
	case info.innocent:
		return NewConfigurationError("innocent functions can't be plain functions: %s", fn)
	}
	info.shape = Plain
	if info.name == "" {
		info.name = nameOr(name, fn)
	}
	rt.PrimFreeze(fn)
	return nil
}

// MarkExophoric classifies fn as an exophoric method and freezes it.
func (rt *Runtime) MarkExophoric(fn *ir.Object, name string) error {
	if err := requireFunction(fn, "MarkExophoric"); err != nil {
		return err
	}
	info := rt.infoOf(fn, true)
	switch {
	case info.shape == Constructor:
		return NewConfigurationError("constructors can't be exophoric: %s", fn)
	case info.shape == Plain:
		return NewConfigurationError("plain functions can't be exophoric: %s", fn)
	case info.innocent:
		return NewConfigurationError("innocent functions can't be exophoric: %s", fn)
	}
	info.shape = Exophoric
	if info.name == "" {
		info.name = nameOr(name, fn)
	}
	rt.PrimFreeze(fn)
	return nil
}

// MarkInnocent marks a host function that expects privileged arguments.
// It stays unclassified, but tames to a Plain function that untames its
// receiver and arguments and tames the result.
func (rt *Runtime) MarkInnocent(fn *ir.Object, name string) error {
	if err := requireFunction(fn, "MarkInnocent"); err != nil {
		return err
	}
	info := rt.infoOf(fn, true)
	if info.shape != Unclassified {
		return NewConfigurationError("%s functions can't be innocent: %s", info.shape, fn)
	}
	info.innocent = true
	info.name = nameOr(name, fn)
	return nil
}

func nameOr(name string, fn *ir.Object) string {
	if name != "" {
		return name
	}
	return fn.Name()
}

// SetCallHooks installs policy rewrite hooks run around every call of fn.
// Either hook may be nil.
func (rt *Runtime) SetCallHooks(fn *ir.Object, pre PreHook, post PostHook) error {
	if err := requireFunction(fn, "SetCallHooks"); err != nil {
		return err
	}
	info := rt.infoOf(fn, true)
	info.pre = pre
	info.post = post
	return nil
}

// GrantFunc marks the function in holder.name Plain and lets guests read
// and call it.
func (rt *Runtime) GrantFunc(holder *ir.Object, name string) error {
	fn, err := rt.slotFunction(holder, name)
	if err != nil {
		return err
	}
	if err := rt.MarkPlain(fn, name); err != nil {
		return err
	}
	return rt.grantChecked(holder, name, RightRead|RightCall)
}

// GrantGenericMethod marks the function in holder.name Exophoric and lets
// guests invoke it on any receiver delegating to holder.
func (rt *Runtime) GrantGenericMethod(holder *ir.Object, name string) error {
	fn, err := rt.slotFunction(holder, name)
	if err != nil {
		return err
	}
	if err := rt.MarkExophoric(fn, name); err != nil {
		return err
	}
	return rt.grantChecked(holder, name, RightRead|RightCall)
}

func (rt *Runtime) slotFunction(holder *ir.Object, name string) (*ir.Object, error) {
	if holder == nil {
		return nil, NewConfigurationError("nil holder for %q", name)
	}
	v, ok := holder.Own(ir.NormalizeName(name))
	if !ok {
		return nil, NewConfigurationError("%s has no slot %q", holder, name)
	}
	fn := ir.AsObject(v)
	if fn == nil || !fn.IsFunction() {
		return nil, NewConfigurationError("%s.%s is not a function", holder, name)
	}
	return fn, nil
}

// ============================================================================
// Construction control
// ============================================================================

// Extend builds an inert constructor for native, a constructor whose
// instances are built by host code outside the mediated model.
//
// The inert constructor shares native's prototype, so host-built instances
// satisfy IsInstanceOf against it and report it as their direct
// constructor, but invoking or constructing it always fails. (native,
// inert) is registered as a tame pair and inert is frozen.
func (rt *Runtime) Extend(native, parent *ir.Object, name string) (*ir.Object, error) {
	if err := requireFunction(native, "Extend"); err != nil {
		return nil, err
	}
	if rt.ShapeOf(parent) != Constructor {
		return nil, NewConfigurationError("Extend: super of %s is not a constructor", native)
	}
	if name == "" {
		name = native.Name()
	}
	if native.Prototype() == nil {
		if err := native.SetPrototype(ir.Beget(parent.Prototype())); err != nil {
			return nil, NewConfigurationError("Extend: %v", err)
		}
	}
	proto := native.Prototype()

	var inert *ir.Object
	inert = ir.NewFunction(name, native.Func().Arity, func(self ir.Value, args []ir.Value) (ir.Value, error) {
		return nil, NewAccessError(OpCall, inert, "", "this constructor cannot be called directly")
	})
	if err := inert.SetPrototype(proto); err != nil {
		return nil, NewConfigurationError("Extend: %v", err)
	}
	rt.infoOf(inert, true).inert = true
	if err := rt.MarkConstructor(inert, parent, name); err != nil {
		return nil, err
	}
	if err := rt.ctorAlias.Set(native, inert); err != nil {
		return nil, NewConfigurationError("Extend: %v", err)
	}
	if err := rt.TamesTo(native, inert); err != nil {
		return nil, err
	}
	rt.PrimFreeze(inert)
	return inert, nil
}

// CallFunc calls fn as a plain function. Only Plain functions qualify.
func (rt *Runtime) CallFunc(fn ir.Value, args []ir.Value) (ir.Value, error) {
	f, err := rt.asFunc(fn)
	if err != nil {
		return nil, err
	}
	return rt.callFunc(f, ir.Undefined{}, args)
}

func (rt *Runtime) asFunc(v ir.Value) (*ir.Object, error) {
	f := ir.AsObject(v)
	if f == nil || !f.IsFunction() {
		return nil, &Error{Code: ErrCodeNotCallable, Op: OpCall, Message: fmt.Sprintf("not a function: %s", ir.Describe(v))}
	}
	switch rt.ShapeOf(f) {
	case Plain:
		return f, nil
	case Constructor:
		return nil, NewAccessError(OpCall, f, "", "constructors can't be called as plain functions")
	case Exophoric:
		return nil, NewAccessError(OpCall, f, "", "exophoric functions must be called through call, apply or bind")
	default:
		return nil, NewAccessError(OpCall, f, "", "unclassified function can't be called")
	}
}

// callFunc runs fn with policy hooks applied.
func (rt *Runtime) callFunc(fn *ir.Object, self ir.Value, args []ir.Value) (ir.Value, error) {
	info := rt.infoOf(fn, false)
	if info != nil && info.pre != nil {
		rewritten, err := info.pre(self, args)
		if err != nil {
			return nil, err
		}
		args = rewritten
	}
	result, err := fn.Call(self, args)
	if err != nil {
		return nil, err
	}
	if info != nil && info.post != nil {
		return info.post(result)
	}
	return result, nil
}

// Construct builds a new object with ctor, which must be a non-inert
// constructor. The constructor runs with the fresh instance as receiver;
// if it returns an object, that object is the result.
func (rt *Runtime) Construct(ctor ir.Value, args []ir.Value) (ir.Value, error) {
	c := ir.AsObject(ctor)
	if c == nil || rt.ShapeOf(c) != Constructor {
		return nil, &Error{Code: ErrCodeNotCallable, Op: OpCall, Message: fmt.Sprintf("not a constructor: %s", ir.Describe(ctor))}
	}
	if info := rt.infoOf(c, false); info != nil && info.inert {
		return nil, NewAccessError(OpCall, c, "", "this constructor cannot be called directly")
	}
	if rt.isRoot(c) {
		return rt.callFunc(c, ir.Undefined{}, args)
	}
	inst, err := ir.NewInstance(c)
	if err != nil {
		return nil, err
	}
	result, err := rt.callFunc(c, inst, args)
	if err != nil {
		return nil, err
	}
	if obj := ir.AsObject(result); obj != nil {
		return obj, nil
	}
	return inst, nil
}

// ============================================================================
// Nominal queries
// ============================================================================

// DirectConstructor returns the constructor that built o, as recorded at
// construction. Host-built instances of an extended native constructor
// report the inert twin.
func (rt *Runtime) DirectConstructor(o *ir.Object) *ir.Object {
	if o == nil {
		return nil
	}
	ctor := o.Ctor()
	if ctor == nil {
		switch o.Kind() {
		case ir.KindArray:
			return rt.arrayCtor
		case ir.KindError:
			return rt.errorCtor
		default:
			return rt.objectCtor
		}
	}
	if inert, ok := rt.ctorAlias.Get(ctor); ok {
		return inert
	}
	return ctor
}

// IsDirectInstanceOf reports whether ctor built o.
func (rt *Runtime) IsDirectInstanceOf(o, ctor *ir.Object) bool {
	return o != nil && ctor != nil && rt.DirectConstructor(o) == ctor
}

// IsInstanceOf reports whether ctor's prototype is on o's delegation chain,
// or ctor is the root constructor of o's layout.
func (rt *Runtime) IsInstanceOf(o, ctor *ir.Object) bool {
	if o == nil || ctor == nil {
		return false
	}
	if ctor == rt.objectCtor {
		return true
	}
	if rt.IsDirectInstanceOf(o, ctor) {
		return true
	}
	proto := ctor.Prototype()
	if proto == nil {
		return false
	}
	for cur := o.Parent(); cur != nil; cur = cur.Parent() {
		if cur == proto {
			return true
		}
	}
	return false
}

// SuperConstructor returns the parent a constructor was marked with.
func (rt *Runtime) SuperConstructor(ctor *ir.Object) *ir.Object {
	if info := rt.infoOf(ctor, false); info != nil {
		return info.super
	}
	return nil
}

// InheritsFrom reports whether ctor derives (transitively) from ancestor.
func (rt *Runtime) InheritsFrom(ctor, ancestor *ir.Object) bool {
	for cur := rt.SuperConstructor(ctor); cur != nil; cur = rt.SuperConstructor(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// AsFirstClass returns v if a guest may hold it. Unclassified functions
// and prototypes are rejected; exophoric functions become pseudo-functions.
func (rt *Runtime) AsFirstClass(v ir.Value) (ir.Value, error) {
	o := ir.AsObject(v)
	if o == nil {
		return ir.Normalize(v), nil
	}
	return rt.export(o, "", o)
}

// SetStatic defines a read-only static member on an unfrozen function.
func (rt *Runtime) SetStatic(fn *ir.Object, name string, v ir.Value) error {
	if err := requireFunction(fn, "SetStatic"); err != nil {
		return err
	}
	switch rt.ShapeOf(fn) {
	case Plain, Constructor, Unclassified:
	default:
		return NewConfigurationError("statics only on constructors and plain functions: %s", fn)
	}
	name = ir.NormalizeName(name)
	if fn.IsFrozen() {
		return NewConfigurationError("can't set static %q on frozen %s", name, fn)
	}
	if rt.isReserved(name) {
		return NewConfigurationError("static name %q is reserved", name)
	}
	switch name {
	case "call", "apply", "bind", "length", "name", "prototype":
		return NewConfigurationError("static name %q shadows a function member", name)
	}
	if fn.HasOwn(name) {
		return NewConfigurationError("static %q already set on %s", name, fn)
	}
	if err := fn.Set(name, v); err != nil {
		return NewConfigurationError("SetStatic: %v", err)
	}
	rt.grant(fn, name, RightRead|RightEnum)
	return nil
}
