package guard

import (
	"fmt"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/table"
)

// Guard coerces a specimen to an acceptable value or rejects it through
// Eject.
type Guard interface {
	// Name is the guard's display name, e.g. "PointT".
	Name() string

	// Coerce returns the accepted (possibly normalized) specimen. On
	// rejection it returns the error produced by Eject(ej, reason).
	Coerce(specimen ir.Value, ej *Ejector) (ir.Value, error)

	// Object is the frozen record guests hold for this guard.
	Object() *ir.Object
}

// CoerceFunc implements a host-defined guard.
type CoerceFunc func(specimen ir.Value, ej *Ejector) (ir.Value, error)

// Kit owns the tables shared by every guard, stamp and ejector created
// for one Runtime.
type Kit struct {
	rt *membrane.Runtime

	stampers *table.Table[*Stamp]   // stamp record -> stamp
	guards   *table.Table[Guard]    // guard record -> guard
	ejectors *table.Table[*Ejector] // ejector function -> ejector

	guardMark *Trademark
	exports   *ir.Object
}

// New creates a Kit. GuardT is stamped with its own GuardStamp.
func New(rt *membrane.Runtime) *Kit {
	k := &Kit{
		rt:       rt,
		stampers: table.NewKeyed[*Stamp](),
		guards:   table.NewKeyed[Guard](),
		ejectors: table.NewKeyed[*Ejector](),
	}
	k.guardMark = k.makeTrademark("Guard")
	k.guardMark.Stamp.apply(k.guardMark.Guard.Object())
	return k
}

// Runtime returns the Runtime the Kit mediates through.
func (k *Kit) Runtime() *membrane.Runtime { return k.rt }

// GuardT accepts exactly the guards created by this Kit.
func (k *Kit) GuardT() Guard { return k.guardMark.Guard }

// GuardStamp marks objects as guards. It is never exposed to guests.
func (k *Kit) GuardStamp() *Stamp { return k.guardMark.Stamp }

// NewGuard creates a host-defined guard, stamped by GuardStamp.
func (k *Kit) NewGuard(name string, coerce CoerceFunc) Guard {
	g := &funcGuard{name: name, coerce: coerce}
	g.obj = k.guardObject(g)
	k.guardMark.Stamp.apply(g.obj)
	return g
}

type funcGuard struct {
	name   string
	coerce CoerceFunc
	obj    *ir.Object
}

func (g *funcGuard) Name() string       { return g.name }
func (g *funcGuard) Object() *ir.Object { return g.obj }

func (g *funcGuard) Coerce(specimen ir.Value, ej *Ejector) (ir.Value, error) {
	return g.coerce(ir.Normalize(specimen), ej)
}

// guardObject builds the frozen record guests hold for g: its name and a
// Plain coerce(specimen, optEjector).
func (k *Kit) guardObject(g Guard) *ir.Object {
	coerce := ir.NewFunction("coerce", 2, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		ej, err := k.ejectorFrom(arg(args, 1))
		if err != nil {
			return nil, err
		}
		return g.Coerce(arg(args, 0), ej)
	})
	_ = k.rt.MarkPlain(coerce, "coerce")
	obj := ir.NewRecord(ir.P("name", ir.String(g.Name())), ir.P("coerce", coerce))
	_ = k.guards.Set(obj, g)
	return k.rt.PrimFreeze(obj)
}

// guardOf resolves a guest-held guard record. Failing GuardT is a
// rejection, never an ejection.
func (k *Kit) guardOf(v ir.Value) (Guard, error) {
	if _, err := k.GuardT().Coerce(v, nil); err != nil {
		return nil, err
	}
	g, ok := k.guards.Get(v)
	if !ok {
		return nil, fmt.Errorf("stamped guard %s has no implementation", ir.Describe(v))
	}
	return g, nil
}

// Check coerces specimen through g after verifying g passes GuardT.
func (k *Kit) Check(g Guard, specimen ir.Value, ej *Ejector) (ir.Value, error) {
	if g == nil {
		return nil, Eject(nil, ir.String("not a guard: nil"))
	}
	if _, err := k.GuardT().Coerce(g.Object(), nil); err != nil {
		return nil, err
	}
	return g.Coerce(specimen, ej)
}

// PassesGuard reports whether g accepts specimen. Rejection becomes false;
// errors other than the rejection itself are returned.
func (k *Kit) PassesGuard(g Guard, specimen ir.Value) (bool, error) {
	if g == nil {
		return false, Eject(nil, ir.String("not a guard: nil"))
	}
	if _, err := k.GuardT().Coerce(g.Object(), nil); err != nil {
		return false, err
	}
	v, err := k.CallWithEjector(
		func(ej *Ejector) (ir.Value, error) {
			if _, err := g.Coerce(specimen, ej); err != nil {
				return nil, err
			}
			return ir.Bool(true), nil
		},
		func(ir.Value) (ir.Value, error) { return ir.Bool(false), nil },
	)
	if err != nil {
		return false, err
	}
	return v == ir.Bool(true), nil
}
