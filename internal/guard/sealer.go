package guard

import (
	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/table"
)

// SealerUnsealer is a rights-amplification pair: Seal hides a value in an
// opaque frozen box that only the matching Unseal opens.
type SealerUnsealer struct {
	rt    *membrane.Runtime
	boxes *table.Table[ir.Value]
	obj   *ir.Object
}

// NewSealerUnsealer creates a fresh pair.
func NewSealerUnsealer(rt *membrane.Runtime) *SealerUnsealer {
	return &SealerUnsealer{rt: rt, boxes: table.NewKeyed[ir.Value]()}
}

// Seal returns a new empty frozen box holding v.
func (s *SealerUnsealer) Seal(v ir.Value) *ir.Object {
	box := s.rt.PrimFreeze(ir.NewRecord())
	_ = s.boxes.Set(box, ir.Normalize(v))
	return box
}

// OptUnseal returns the boxed value, or false if box is not one of ours.
func (s *SealerUnsealer) OptUnseal(box ir.Value) (ir.Value, bool) {
	return s.boxes.Get(box)
}

// Unseal is OptUnseal with a foreign box reported as an error.
func (s *SealerUnsealer) Unseal(box ir.Value) (ir.Value, error) {
	v, ok := s.OptUnseal(box)
	if !ok {
		return nil, newError(ErrCodeBadBox, "that wasn't one of my sealed boxes: %s", ir.Describe(box))
	}
	return v, nil
}

// Object returns the frozen {seal, unseal, optUnseal} record guests hold.
// optUnseal yields a one-element array or null.
func (s *SealerUnsealer) Object() *ir.Object {
	if s.obj != nil {
		return s.obj
	}
	seal := ir.NewFunction("seal", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		return s.Seal(arg(args, 0)), nil
	})
	unseal := ir.NewFunction("unseal", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		return s.Unseal(arg(args, 0))
	})
	optUnseal := ir.NewFunction("optUnseal", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		v, ok := s.OptUnseal(arg(args, 0))
		if !ok {
			return ir.Null{}, nil
		}
		return s.rt.PrimFreeze(ir.NewArray(v)), nil
	})
	rec := ir.NewRecord()
	for _, fn := range []*ir.Object{seal, unseal, optUnseal} {
		_ = s.rt.MarkPlain(fn, fn.Name())
		_ = rec.Set(fn.Name(), fn)
	}
	s.obj = s.rt.PrimFreeze(rec)
	return s.obj
}
