package membrane

import (
	"github.com/roach88/membrane/internal/ir"
)

// PrimFreeze freezes o for the host.
//
// Freezing a function freezes its prototype first. An object flagged by a
// granted plain-container write has its set and delete grants revoked
// before the flag is set, so no stale permissive right survives.
func (rt *Runtime) PrimFreeze(o *ir.Object) *ir.Object {
	if o == nil || o.IsFrozen() {
		return o
	}
	if p := o.Prototype(); p != nil && p != o {
		rt.PrimFreeze(p)
	}
	if tags := rt.tagsOf(o, false); tags != nil && tags.slowFreeze {
		for name := range tags.rights {
			rt.revoke(o, name, RightSet|RightDelete)
		}
		tags.slowFreeze = false
	}
	o.Freeze()
	return o
}

// IsFrozen reports whether v is a frozen object. Primitives count as
// frozen.
func (rt *Runtime) IsFrozen(v ir.Value) bool {
	o := ir.AsObject(v)
	return o == nil || o.IsFrozen()
}

// Freeze is the guest-facing freeze. Guests may freeze plain containers
// and errors; functions are accepted only if already frozen.
func (rt *Runtime) Freeze(o *ir.Object) (*ir.Object, error) {
	switch {
	case o == nil:
		return nil, &Error{Code: ErrCodeNotFreezable, Message: "nil object"}
	case isPlainContainer(o), o.Kind() == ir.KindError:
		return rt.PrimFreeze(o), nil
	case o.IsFunction() && o.IsFrozen():
		return o, nil
	default:
		return nil, &Error{Code: ErrCodeNotFreezable, Object: o.String(), Message: "only records, arrays and errors can be frozen"}
	}
}

// TamperProof freezes every object reachable from root through local slot
// values, delegation parents and function prototypes. Writes to objects
// delegating to a tamper-proofed parent still define local slots, so
// override-by-assignment keeps working.
func (rt *Runtime) TamperProof(root *ir.Object) int {
	if root == nil {
		return 0
	}
	seen := map[*ir.Object]bool{root: true}
	work := []*ir.Object{root}
	frozen := 0
	for len(work) > 0 {
		o := work[len(work)-1]
		work = work[:len(work)-1]

		next := make([]*ir.Object, 0, o.Len()+2)
		for _, name := range o.Keys() {
			v, _ := o.Own(name)
			if child := ir.AsObject(v); child != nil {
				next = append(next, child)
			}
		}
		next = append(next, o.Parent(), o.Prototype())
		for _, n := range next {
			if n != nil && !seen[n] {
				seen[n] = true
				work = append(work, n)
			}
		}

		if !o.IsFrozen() {
			rt.PrimFreeze(o)
			frozen++
		}
	}
	return frozen
}

// Copy returns a fresh, unfrozen container holding the listable local
// slots of a plain container.
func (rt *Runtime) Copy(o *ir.Object) (*ir.Object, error) {
	if !isPlainContainer(o) {
		return nil, NewConfigurationError("can only copy records and arrays: %s", o)
	}
	var result *ir.Object
	if o.Kind() == ir.KindArray {
		result = ir.NewArray()
	} else {
		result = ir.NewRecord()
	}
	err := rt.ForOwnKeys(o, func(name string, v ir.Value) error {
		return result.Set(name, v)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Snapshot returns a frozen copy.
func (rt *Runtime) Snapshot(o *ir.Object) (*ir.Object, error) {
	c, err := rt.Copy(o)
	if err != nil {
		return nil, err
	}
	return rt.PrimFreeze(c), nil
}

// Beget returns a new plain record delegating to parent.
func (rt *Runtime) Beget(parent *ir.Object) (*ir.Object, error) {
	if parent == nil {
		return nil, &Error{Code: ErrCodeNotObject, Message: "beget requires a parent object"}
	}
	return ir.Beget(parent), nil
}
