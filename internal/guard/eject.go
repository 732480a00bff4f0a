package guard

import (
	"errors"

	"github.com/roach88/membrane/internal/ir"
)

// Ejector is a single-use escape bound to one CallWithEjector.
type Ejector struct {
	disabled bool
	obj      *ir.Object

	// foreign is set for guest-supplied functions used as ejectors.
	foreign func(v ir.Value) error
}

// Ejection carries an ejected value back to the CallWithEjector that owns
// its Ejector.
type Ejection struct {
	ejector *Ejector
	Value   ir.Value
}

// Error implements the error interface.
func (e *Ejection) Error() string {
	return "ejection: " + ir.Describe(e.Value)
}

// Eject never succeeds. A live ejector returns its Ejection; a disabled one
// returns an EJECTOR error.
func (ej *Ejector) Eject(v ir.Value) error {
	v = ir.Normalize(v)
	if ej.foreign != nil {
		if err := ej.foreign(v); err != nil {
			return err
		}
		return newError(ErrCodeEjector, "ejector did not exit: %s", ej.obj)
	}
	if ej.disabled {
		return newError(ErrCodeEjector, "ejector disabled")
	}
	return &Ejection{ejector: ej, Value: v}
}

// Disabled reports whether the owning attempt has returned.
func (ej *Ejector) Disabled() bool { return ej.disabled }

// Object returns the Plain function guests call to eject.
func (ej *Ejector) Object() *ir.Object { return ej.obj }

// Eject rejects with reason. Without an ejector it returns a RejectedError;
// otherwise it ejects through ej.
func Eject(ej *Ejector, reason ir.Value) error {
	if ej == nil {
		return &RejectedError{Reason: ir.Normalize(reason)}
	}
	return ej.Eject(reason)
}

// CallWithEjector runs attempt with a fresh Ejector. If attempt fails with
// that Ejector's Ejection, fail receives the ejected value and its result
// is returned; a nil fail returns the value itself. Any other error is
// returned unchanged. The Ejector is disabled once attempt returns.
func (k *Kit) CallWithEjector(attempt func(ej *Ejector) (ir.Value, error), fail func(v ir.Value) (ir.Value, error)) (ir.Value, error) {
	ej := k.newEjector()
	result, err := attempt(ej)
	ej.disabled = true
	if err == nil {
		return result, nil
	}
	var ejection *Ejection
	if errors.As(err, &ejection) && ejection.ejector == ej {
		if fail == nil {
			return ejection.Value, nil
		}
		return fail(ejection.Value)
	}
	return nil, err
}

func (k *Kit) newEjector() *Ejector {
	ej := &Ejector{}
	ej.obj = ir.NewFunction("ejector", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		return nil, ej.Eject(arg(args, 0))
	})
	_ = k.rt.MarkPlain(ej.obj, "ejector")
	_ = k.ejectors.Set(ej.obj, ej)
	return ej
}

// ejectorFrom resolves the optional ejector argument of a guest call.
// Absent means nil; a Kit ejector resolves to itself; any other Plain
// function is called as an ejector that is expected not to return.
func (k *Kit) ejectorFrom(v ir.Value) (*Ejector, error) {
	switch ir.Normalize(v).(type) {
	case ir.Undefined, ir.Null:
		return nil, nil
	}
	o := ir.AsObject(v)
	if o == nil {
		return nil, newError(ErrCodeEjector, "not an ejector: %s", ir.Describe(v))
	}
	if ej, ok := k.ejectors.Get(o); ok {
		return ej, nil
	}
	if !o.IsFunction() {
		return nil, newError(ErrCodeEjector, "not an ejector: %s", o)
	}
	return &Ejector{
		obj: o,
		foreign: func(x ir.Value) error {
			_, err := k.rt.CallFunc(o, []ir.Value{x})
			return err
		},
	}, nil
}

func arg(args []ir.Value, i int) ir.Value {
	if i < len(args) {
		return ir.Normalize(args[i])
	}
	return ir.Undefined{}
}
