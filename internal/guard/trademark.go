package guard

import (
	"fmt"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/table"
)

// Trademark is a fresh nominal type: a Guard accepting exactly the objects
// its Stamp has marked.
type Trademark struct {
	Name  string
	Guard Guard
	Stamp *Stamp
	obj   *ir.Object
}

// Object is the frozen {name, guard, stamp} record guests hold.
func (t *Trademark) Object() *ir.Object { return t.obj }

// Stamp marks objects with one trademark.
type Stamp struct {
	name  string
	marks *table.Table[bool]
	obj   *ir.Object
}

// Name returns the stamp's display name, e.g. "PointStamp".
func (s *Stamp) Name() string { return s.name }

// Object is the frozen record standing for this stamp.
func (s *Stamp) Object() *ir.Object { return s.obj }

// Mark applies the trademark to an unfrozen object.
func (s *Stamp) Mark(o *ir.Object) error {
	if o == nil {
		return newError(ErrCodeBadStamp, "can't stamp nil")
	}
	if o.IsFrozen() {
		return newError(ErrCodeBadStamp, "can't stamp frozen objects: %s", o)
	}
	s.apply(o)
	return nil
}

func (s *Stamp) apply(o *ir.Object) {
	_ = s.marks.Set(o, true)
}

// trademarkGuard accepts the objects in marks.
type trademarkGuard struct {
	name    string
	marks   *table.Table[bool]
	message string
	obj     *ir.Object
}

func (g *trademarkGuard) Name() string       { return g.name }
func (g *trademarkGuard) Object() *ir.Object { return g.obj }

func (g *trademarkGuard) Coerce(specimen ir.Value, ej *Ejector) (ir.Value, error) {
	if o := ir.AsObject(specimen); o != nil && g.marks.Has(o) {
		return o, nil
	}
	return nil, Eject(ej, ir.String(g.message))
}

// NewTrademark creates a trademark whose guard passes GuardT.
func (k *Kit) NewTrademark(name string) *Trademark {
	t := k.makeTrademark(name)
	k.guardMark.Stamp.apply(t.Guard.Object())
	return t
}

func (k *Kit) makeTrademark(name string) *Trademark {
	marks := table.NewKeyed[bool]()

	stamp := &Stamp{name: name + "Stamp", marks: marks}
	stamp.obj = k.rt.PrimFreeze(ir.NewRecord(ir.P("name", ir.String(stamp.name))))
	_ = k.stampers.Set(stamp.obj, stamp)

	g := &trademarkGuard{
		name:    name + "T",
		marks:   marks,
		message: fmt.Sprintf("Specimen does not have the %q trademark", name),
	}
	g.obj = k.guardObject(g)

	t := &Trademark{Name: name, Guard: g, Stamp: stamp}
	t.obj = k.rt.PrimFreeze(ir.NewRecord(
		ir.P("name", ir.String(name+"Mark")),
		ir.P("guard", g.obj),
		ir.P("stamp", stamp.obj),
	))
	return t
}

// StampAll marks record with every stamp, then freezes it. Every stamp is
// validated before any is applied, so a rejected batch leaves record
// untouched.
func (k *Kit) StampAll(record ir.Value, stamps ...ir.Value) (*ir.Object, error) {
	o := ir.AsObject(record)
	if o == nil || o.Kind() != ir.KindRecord {
		return nil, newError(ErrCodeBadStamp, "can only stamp records: %s", ir.Describe(record))
	}
	if o.IsFrozen() {
		return nil, newError(ErrCodeBadStamp, "can't stamp frozen objects: %s", o)
	}
	resolved := make([]*Stamp, len(stamps))
	for i, sv := range stamps {
		s, ok := k.stampers.Get(sv)
		if !ok {
			return nil, newError(ErrCodeBadStamp, "can't stamp with a non-stamp: %s", ir.Describe(sv))
		}
		resolved[i] = s
	}
	for _, s := range resolved {
		s.apply(o)
	}
	return k.rt.PrimFreeze(o), nil
}
