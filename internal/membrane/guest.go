package membrane

import (
	"fmt"

	"github.com/roach88/membrane/internal/ir"
)

// Guest is the only handle confined code receives. Every method is a
// mediated operation; nothing on Guest reaches the host-only classification,
// grant or taming API.
type Guest struct {
	rt *Runtime
}

// Guest returns the confined-code facade for rt.
func (rt *Runtime) Guest() *Guest {
	return &Guest{rt: rt}
}

func asTarget(op Op, v ir.Value, name string) (*ir.Object, error) {
	o := ir.AsObject(v)
	if o == nil {
		return nil, &Error{
			Code:    ErrCodeNotObject,
			Op:      op,
			Name:    name,
			Message: fmt.Sprintf("can't %s slot of %s", op, ir.TypeName(v)),
		}
	}
	return o, nil
}

// ReadSlot reads target.name.
func (g *Guest) ReadSlot(target ir.Value, name string) (ir.Value, error) {
	o, err := asTarget(OpRead, target, name)
	if err != nil {
		return nil, err
	}
	return g.rt.ReadSlot(o, name)
}

// InvokeSlot calls target.name(args...).
func (g *Guest) InvokeSlot(target ir.Value, name string, args ...ir.Value) (ir.Value, error) {
	o, err := asTarget(OpCall, target, name)
	if err != nil {
		return nil, err
	}
	return g.rt.InvokeSlot(o, name, args)
}

// WriteSlot assigns target.name = v.
func (g *Guest) WriteSlot(target ir.Value, name string, v ir.Value) error {
	o, err := asTarget(OpSet, target, name)
	if err != nil {
		return err
	}
	return g.rt.WriteSlot(o, name, v)
}

// DeleteSlot deletes target.name.
func (g *Guest) DeleteSlot(target ir.Value, name string) (bool, error) {
	o, err := asTarget(OpDelete, target, name)
	if err != nil {
		return false, err
	}
	return g.rt.DeleteSlot(o, name)
}

// ForOwnKeys visits the listable local slots of target.
func (g *Guest) ForOwnKeys(target ir.Value, fn func(name string, v ir.Value) error) error {
	o, err := asTarget(OpRead, target, "")
	if err != nil {
		return err
	}
	return g.rt.ForOwnKeys(o, fn)
}

// ForAllKeys visits the listable slots of target and its ancestors.
func (g *Guest) ForAllKeys(target ir.Value, fn func(name string, v ir.Value) error) error {
	o, err := asTarget(OpRead, target, "")
	if err != nil {
		return err
	}
	return g.rt.ForAllKeys(o, fn)
}

// OwnKeys lists the listable local slot names of target.
func (g *Guest) OwnKeys(target ir.Value) ([]string, error) {
	o, err := asTarget(OpRead, target, "")
	if err != nil {
		return nil, err
	}
	return g.rt.OwnKeys(o)
}

// AllKeys lists the listable slot names of target and its ancestors.
func (g *Guest) AllKeys(target ir.Value) ([]string, error) {
	o, err := asTarget(OpRead, target, "")
	if err != nil {
		return nil, err
	}
	return g.rt.AllKeys(o)
}

// Has reports whether name is visible on target ("name in target").
func (g *Guest) Has(target ir.Value, name string) bool {
	o := ir.AsObject(target)
	return o != nil && g.rt.HasSlot(o, name)
}

// HasOwn reports whether name is a visible local slot of target.
func (g *Guest) HasOwn(target ir.Value, name string) bool {
	o := ir.AsObject(target)
	return o != nil && g.rt.HasOwnSlot(o, name)
}

// Call calls a Plain function.
func (g *Guest) Call(fn ir.Value, args ...ir.Value) (ir.Value, error) {
	return g.rt.CallFunc(fn, args)
}

// Construct builds a new object with a constructor.
func (g *Guest) Construct(ctor ir.Value, args ...ir.Value) (ir.Value, error) {
	return g.rt.Construct(ctor, args)
}

// Func defines a guest function. Guest functions are always Plain.
func (g *Guest) Func(name string, arity int, impl ir.Func) *ir.Object {
	fn := ir.NewFunction(name, arity, impl)
	// fn is fresh and unclassified, so MarkPlain cannot fail.
	_ = g.rt.MarkPlain(fn, name)
	return fn
}

// Record creates an unfrozen record.
func (g *Guest) Record(pairs ...ir.Pair) *ir.Object {
	return ir.NewRecord(pairs...)
}

// Array creates an unfrozen array.
func (g *Guest) Array(elems ...ir.Value) *ir.Object {
	return ir.NewArray(elems...)
}

// Beget creates a record delegating to parent.
func (g *Guest) Beget(parent ir.Value) (*ir.Object, error) {
	return g.rt.Beget(ir.AsObject(parent))
}

// Freeze freezes a record, array or error.
func (g *Guest) Freeze(v ir.Value) (ir.Value, error) {
	o := ir.AsObject(v)
	if o == nil {
		return ir.Normalize(v), nil
	}
	return g.rt.Freeze(o)
}

// IsFrozen reports whether v is frozen; primitives are.
func (g *Guest) IsFrozen(v ir.Value) bool {
	return g.rt.IsFrozen(v)
}

// Copy returns an unfrozen copy of a record or array.
func (g *Guest) Copy(v ir.Value) (*ir.Object, error) {
	o, err := asTarget(OpRead, v, "")
	if err != nil {
		return nil, err
	}
	return g.rt.Copy(o)
}

// Snapshot returns a frozen copy of a record or array.
func (g *Guest) Snapshot(v ir.Value) (*ir.Object, error) {
	o, err := asTarget(OpRead, v, "")
	if err != nil {
		return nil, err
	}
	return g.rt.Snapshot(o)
}

// DirectConstructor returns the constructor that built v, as guests may
// see it.
func (g *Guest) DirectConstructor(v ir.Value) (ir.Value, error) {
	o := ir.AsObject(v)
	if o == nil {
		return ir.Undefined{}, nil
	}
	return g.rt.AsFirstClass(g.rt.DirectConstructor(o))
}

// IsInstanceOf reports whether v is an instance of ctor.
func (g *Guest) IsInstanceOf(v, ctor ir.Value) bool {
	return g.rt.IsInstanceOf(ir.AsObject(v), ir.AsObject(ctor))
}

// Error creates an error instance.
func (g *Guest) Error(message string) *ir.Object {
	return g.rt.NewError(message)
}
