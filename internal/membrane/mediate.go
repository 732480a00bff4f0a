package membrane

import (
	"errors"

	"github.com/roach88/membrane/internal/ir"
)

// ErrBreak stops ForOwnKeys / ForAllKeys early without an error.
var ErrBreak = errors.New("break")

// ============================================================================
// Read
// ============================================================================

// ReadSlot returns the value of o.name as a guest may observe it.
//
// Order: reserved names go straight to the Keeper; a cached read grant on
// the holder serves the value; a local slot of a plain container is
// granted and cached; otherwise the nearest get handler, then the Keeper.
func (rt *Runtime) ReadSlot(o *ir.Object, name string) (ir.Value, error) {
	name = ir.NormalizeName(name)
	if rt.isReserved(name) {
		rt.denied(OpRead, o, name)
		return rt.keeper.HandleRead(o, name)
	}
	if holder, v, ok := o.Lookup(name); ok && rt.checkRead(holder, name) {
		return rt.export(o, name, v)
	}
	if h := rt.findHandlers(o, name); h != nil && h.get != nil {
		return h.get(o)
	}
	rt.denied(OpRead, o, name)
	return rt.keeper.HandleRead(o, name)
}

// checkRead reports whether holder's slot is readable, caching the grant
// when it is computed for the first time.
func (rt *Runtime) checkRead(holder *ir.Object, name string) bool {
	if rt.hasRight(holder, name, RightRead) {
		return true
	}
	if isPlainContainer(holder) {
		rt.grant(holder, name, RightRead)
		return true
	}
	return false
}

// export converts a readable slot value into what the guest receives.
// Exophoric functions read as their PseudoFunction. Unclassified functions
// and prototypes never reach a guest.
func (rt *Runtime) export(o *ir.Object, name string, v ir.Value) (ir.Value, error) {
	obj := ir.AsObject(v)
	if obj == nil {
		return v, nil
	}
	if obj.IsFunction() {
		switch rt.ShapeOf(obj) {
		case Plain, Constructor:
			return obj, nil
		case Exophoric:
			return rt.PseudoFunction(obj)
		default:
			return nil, NewAccessError(OpRead, o, name, "unclassified function is not first-class")
		}
	}
	if obj.IsPrototypical() {
		return nil, NewAccessError(OpRead, o, name, "prototype object is not first-class")
	}
	return obj, nil
}

// CanRead reports whether a guest read of o.name is served without a fault
// handler. It never caches.
func (rt *Runtime) CanRead(o *ir.Object, name string) bool {
	name = ir.NormalizeName(name)
	if rt.isReserved(name) {
		return false
	}
	holder, _, ok := o.Lookup(name)
	return ok && (rt.hasRight(holder, name, RightRead) || isPlainContainer(holder))
}

// HasSlot reports whether name is visible on o or its ancestors.
func (rt *Runtime) HasSlot(o *ir.Object, name string) bool {
	name = ir.NormalizeName(name)
	if rt.isReserved(name) {
		return false
	}
	if rt.CanRead(o, name) {
		return true
	}
	h := rt.findHandlers(o, name)
	return h != nil && h.get != nil
}

// HasOwnSlot reports whether name is a readable local slot of o.
func (rt *Runtime) HasOwnSlot(o *ir.Object, name string) bool {
	name = ir.NormalizeName(name)
	return o.HasOwn(name) && rt.CanRead(o, name)
}

// ============================================================================
// Invoke
// ============================================================================

// InvokeSlot calls o.name with receiver o.
//
// A cached call grant on the holder is used directly. Otherwise the first
// invocation of a readable slot holding a Plain function grants and caches
// the call right, revoking any set grant so a method slot cannot be
// repurposed as data. Exophoric methods need an explicit grant.
func (rt *Runtime) InvokeSlot(o *ir.Object, name string, args []ir.Value) (ir.Value, error) {
	name = ir.NormalizeName(name)
	if rt.isReserved(name) {
		rt.denied(OpCall, o, name)
		return rt.keeper.HandleCall(o, name, args)
	}
	if holder, v, ok := o.Lookup(name); ok {
		if rt.hasRight(holder, name, RightCall) {
			return rt.invokeMethod(o, name, v, args)
		}
		if fn := ir.AsObject(v); fn != nil && rt.ShapeOf(fn) == Plain && rt.checkRead(holder, name) {
			rt.grant(holder, name, RightCall)
			rt.revoke(holder, name, RightSet)
			return rt.invokeMethod(o, name, v, args)
		}
	}
	if h := rt.findHandlers(o, name); h != nil && h.apply != nil {
		return h.apply(o, args)
	}
	rt.denied(OpCall, o, name)
	return rt.keeper.HandleCall(o, name, args)
}

func (rt *Runtime) invokeMethod(self *ir.Object, name string, v ir.Value, args []ir.Value) (ir.Value, error) {
	fn := ir.AsObject(v)
	if fn == nil || !fn.IsFunction() {
		return nil, NewAccessError(OpCall, self, name, "slot does not hold a function")
	}
	switch rt.ShapeOf(fn) {
	case Plain:
		return rt.callFunc(fn, ir.Undefined{}, args)
	case Exophoric:
		return rt.callFunc(fn, self, args)
	case Constructor:
		return nil, NewAccessError(OpCall, self, name, "constructors can't be called as methods")
	default:
		return nil, NewAccessError(OpCall, self, name, "unclassified function can't be called")
	}
}

// CanCall reports whether o.name has a cached call grant.
func (rt *Runtime) CanCall(o *ir.Object, name string) bool {
	name = ir.NormalizeName(name)
	holder, _, ok := o.Lookup(name)
	return ok && !rt.isReserved(name) && rt.hasRight(holder, name, RightCall)
}

// ============================================================================
// Write
// ============================================================================

// WriteSlot assigns o.name = v, always as a local slot of o.
//
// Frozen objects are rejected before anything else is consulted. The first
// write to a plain container grants set, enum and read, revokes call, and
// flags the object so freezing it later revokes the set grants.
func (rt *Runtime) WriteSlot(o *ir.Object, name string, v ir.Value) error {
	name = ir.NormalizeName(name)
	if o.IsFrozen() {
		rt.denied(OpSet, o, name)
		return NewAccessError(OpSet, o, name, "object is frozen")
	}
	if rt.isReserved(name) {
		rt.denied(OpSet, o, name)
		return rt.keeper.HandleSet(o, name, v)
	}
	if rt.hasRight(o, name, RightSet) {
		if err := o.Set(name, v); err != nil {
			return NewAccessError(OpSet, o, name, err.Error())
		}
		return nil
	}
	if isPlainContainer(o) && acceptsSlot(o, name) {
		if err := o.Set(name, v); err != nil {
			return NewAccessError(OpSet, o, name, err.Error())
		}
		rt.grant(o, name, RightSet|RightEnum|RightRead)
		rt.revoke(o, name, RightCall)
		rt.tagsOf(o, true).slowFreeze = true
		return nil
	}
	if h := rt.findHandlers(o, name); h != nil && h.set != nil {
		return h.set(o, v)
	}
	rt.denied(OpSet, o, name)
	return rt.keeper.HandleSet(o, name, v)
}

// acceptsSlot reports whether a container can hold name locally.
func acceptsSlot(o *ir.Object, name string) bool {
	if o.Kind() != ir.KindArray {
		return true
	}
	i, ok := ir.ArrayIndex(name)
	return ok && i <= o.Len()
}

// CanSet reports whether a guest write of o.name would succeed without a
// fault handler.
func (rt *Runtime) CanSet(o *ir.Object, name string) bool {
	name = ir.NormalizeName(name)
	if o.IsFrozen() || rt.isReserved(name) {
		return false
	}
	return rt.hasRight(o, name, RightSet) || (isPlainContainer(o) && acceptsSlot(o, name))
}

// ============================================================================
// Delete
// ============================================================================

// DeleteSlot removes the local slot o.name. A successful delete purges
// every cached right for the slot.
func (rt *Runtime) DeleteSlot(o *ir.Object, name string) (bool, error) {
	name = ir.NormalizeName(name)
	if o.IsFrozen() {
		rt.denied(OpDelete, o, name)
		return false, NewAccessError(OpDelete, o, name, "object is frozen")
	}
	if rt.isReserved(name) {
		rt.denied(OpDelete, o, name)
		return rt.keeper.HandleDelete(o, name)
	}
	if rt.CanDelete(o, name) {
		ok, err := o.Delete(name)
		if err != nil {
			return false, NewAccessError(OpDelete, o, name, err.Error())
		}
		rt.purge(o, name)
		return ok, nil
	}
	if h := rt.findHandlers(o, name); h != nil && h.delete != nil {
		return h.delete(o)
	}
	rt.denied(OpDelete, o, name)
	return rt.keeper.HandleDelete(o, name)
}

// CanDelete reports whether a guest delete of o.name would be attempted
// without a fault handler.
func (rt *Runtime) CanDelete(o *ir.Object, name string) bool {
	name = ir.NormalizeName(name)
	if o.IsFrozen() || rt.isReserved(name) {
		return false
	}
	return isPlainContainer(o) || rt.hasRight(o, name, RightDelete)
}

// ============================================================================
// Enumerate
// ============================================================================

// canEnumOwn reports whether name is a listable local slot of o, caching
// the enum grant for plain containers.
func (rt *Runtime) canEnumOwn(o *ir.Object, name string) bool {
	if rt.isReserved(name) || !o.HasOwn(name) {
		return false
	}
	if rt.hasRight(o, name, RightEnum) {
		return true
	}
	if !isPlainContainer(o) {
		return false
	}
	rt.grant(o, name, RightEnum)
	return true
}

// CanEnum reports whether name would be listed for o by ForOwnKeys.
func (rt *Runtime) CanEnum(o *ir.Object, name string) bool {
	name = ir.NormalizeName(name)
	if rt.isReserved(name) || !o.HasOwn(name) {
		return false
	}
	return rt.hasRight(o, name, RightEnum) || isPlainContainer(o)
}

// ForOwnKeys calls fn for every listable local slot of o, in slot order.
// Names whose value cannot be read are silently skipped. fn may return
// ErrBreak to stop early.
func (rt *Runtime) ForOwnKeys(o *ir.Object, fn func(name string, v ir.Value) error) error {
	for _, name := range o.Keys() {
		if !rt.canEnumOwn(o, name) {
			continue
		}
		if stop, err := rt.visit(o, name, fn); stop || err != nil {
			return err
		}
	}
	return nil
}

// ForAllKeys is ForOwnKeys over o and its delegation ancestors. Inherited
// names shadowed by a nearer slot are visited once, for the nearest holder.
func (rt *Runtime) ForAllKeys(o *ir.Object, fn func(name string, v ir.Value) error) error {
	seen := make(map[string]bool)
	for cur := o; cur != nil; cur = cur.Parent() {
		for _, name := range cur.Keys() {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !rt.canEnumOwn(cur, name) {
				continue
			}
			if stop, err := rt.visit(o, name, fn); stop || err != nil {
				return err
			}
		}
	}
	return nil
}

func (rt *Runtime) visit(o *ir.Object, name string, fn func(string, ir.Value) error) (bool, error) {
	v, err := rt.ReadSlot(o, name)
	if err != nil {
		if IsAccessDenied(err) {
			return false, nil
		}
		return true, err
	}
	if err := fn(name, v); err != nil {
		if errors.Is(err, ErrBreak) {
			return true, nil
		}
		return true, err
	}
	return false, nil
}

// OwnKeys lists the names ForOwnKeys would visit.
func (rt *Runtime) OwnKeys(o *ir.Object) ([]string, error) {
	var keys []string
	err := rt.ForOwnKeys(o, func(name string, _ ir.Value) error {
		keys = append(keys, name)
		return nil
	})
	return keys, err
}

// AllKeys lists the names ForAllKeys would visit.
func (rt *Runtime) AllKeys(o *ir.Object) ([]string, error) {
	var keys []string
	err := rt.ForAllKeys(o, func(name string, _ ir.Value) error {
		keys = append(keys, name)
		return nil
	})
	return keys, err
}
