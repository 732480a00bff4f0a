package guard

import (
	"github.com/roach88/membrane/internal/ir"
)

// Exports returns the frozen record of guest-callable operations:
// callWithEjector, eject, GuardT, Trademark, guard, passesGuard, stamp and
// makeSealerUnsealerPair. GuardStamp is never exported.
func (k *Kit) Exports() *ir.Object {
	if k.exports != nil {
		return k.exports
	}
	rt := k.rt

	callWithEjector := ir.NewFunction("callWithEjector", 2, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		attempt, failFn := arg(args, 0), arg(args, 1)
		var fail func(ir.Value) (ir.Value, error)
		if !ir.IsUndefined(failFn) {
			fail = func(v ir.Value) (ir.Value, error) { return rt.CallFunc(failFn, []ir.Value{v}) }
		}
		return k.CallWithEjector(func(ej *Ejector) (ir.Value, error) {
			return rt.CallFunc(attempt, []ir.Value{ej.Object()})
		}, fail)
	})
	eject := ir.NewFunction("eject", 2, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		ej, err := k.ejectorFrom(arg(args, 0))
		if err != nil {
			return nil, err
		}
		return nil, Eject(ej, arg(args, 1))
	})
	trademark := ir.NewFunction("Trademark", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		name, ok := arg(args, 0).(ir.String)
		if !ok {
			name = ir.String(ir.Describe(arg(args, 0)))
		}
		return k.NewTrademark(string(name)).Object(), nil
	})
	guardFn := ir.NewFunction("guard", 3, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		g, err := k.guardOf(arg(args, 0))
		if err != nil {
			return nil, err
		}
		ej, err := k.ejectorFrom(arg(args, 2))
		if err != nil {
			return nil, err
		}
		return g.Coerce(arg(args, 1), ej)
	})
	passesGuard := ir.NewFunction("passesGuard", 2, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		g, err := k.guardOf(arg(args, 0))
		if err != nil {
			return nil, err
		}
		ok, err := k.PassesGuard(g, arg(args, 1))
		if err != nil {
			return nil, err
		}
		return ir.Bool(ok), nil
	})
	stamp := ir.NewFunction("stamp", 2, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		list := ir.AsObject(arg(args, 0))
		if list == nil || list.Kind() != ir.KindArray {
			return nil, newError(ErrCodeBadStamp, "stamps must be an array: %s", ir.Describe(arg(args, 0)))
		}
		return k.StampAll(arg(args, 1), list.Elems()...)
	})
	makePair := ir.NewFunction("makeSealerUnsealerPair", 0, func(ir.Value, []ir.Value) (ir.Value, error) {
		return NewSealerUnsealer(rt).Object(), nil
	})

	rec := ir.NewRecord(ir.P("GuardT", k.GuardT().Object()))
	for _, fn := range []*ir.Object{callWithEjector, eject, trademark, guardFn, passesGuard, stamp, makePair} {
		_ = rt.MarkPlain(fn, fn.Name())
		_ = rec.Set(fn.Name(), fn)
	}
	k.exports = rt.PrimFreeze(rec)
	return k.exports
}
