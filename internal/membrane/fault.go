package membrane

import (
	"github.com/roach88/membrane/internal/ir"
)

// Op names a mediated operation.
type Op string

const (
	OpRead   Op = "read"
	OpCall   Op = "call"
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

func (op Op) deniedCode() ErrorCode {
	switch op {
	case OpRead:
		return ErrCodeNotReadable
	case OpCall:
		return ErrCodeNotCallable
	case OpSet:
		return ErrCodeNotSettable
	case OpDelete:
		return ErrCodeNotDeletable
	default:
		return ErrCodeConfiguration
	}
}

// Keeper handles every access the mediators deny and no per-slot handler
// covers. It decides what the guest observes: a substitute value, an
// AccessDenied error, or a custom error.
type Keeper interface {
	HandleRead(o *ir.Object, name string) (ir.Value, error)
	HandleCall(o *ir.Object, name string, args []ir.Value) (ir.Value, error)
	HandleSet(o *ir.Object, name string, v ir.Value) error
	HandleDelete(o *ir.Object, name string) (bool, error)
}

// DenyKeeper is the default Keeper. Denied reads observe Undefined; every
// other denial is an AccessDenied error. Embed it to override a subset.
type DenyKeeper struct{}

// HandleRead reports the slot as absent.
func (DenyKeeper) HandleRead(o *ir.Object, name string) (ir.Value, error) {
	return ir.Undefined{}, nil
}

// HandleCall fails with NotCallable.
func (DenyKeeper) HandleCall(o *ir.Object, name string, args []ir.Value) (ir.Value, error) {
	return nil, NewAccessError(OpCall, o, name, "not callable")
}

// HandleSet fails with NotSettable.
func (DenyKeeper) HandleSet(o *ir.Object, name string, v ir.Value) error {
	return NewAccessError(OpSet, o, name, "not writable")
}

// HandleDelete fails with NotDeletable.
func (DenyKeeper) HandleDelete(o *ir.Object, name string) (bool, error) {
	return false, NewAccessError(OpDelete, o, name, "not deletable")
}

// Per-slot fault handlers. They receive the object the guest addressed,
// which may delegate to the object the handler is installed on.
type (
	GetHandler    func(self *ir.Object) (ir.Value, error)
	ApplyHandler  func(self *ir.Object, args []ir.Value) (ir.Value, error)
	SetHandler    func(self *ir.Object, v ir.Value) error
	DeleteHandler func(self *ir.Object) (bool, error)
)

type slotHandlers struct {
	get    GetHandler
	apply  ApplyHandler
	set    SetHandler
	delete DeleteHandler
}

func (rt *Runtime) installHandler(o *ir.Object, name string, install func(*slotHandlers)) error {
	if o == nil {
		return NewConfigurationError("handler on nil object")
	}
	name = ir.NormalizeName(name)
	if rt.isReserved(name) {
		return NewConfigurationError("cannot install a handler on reserved name %q", name)
	}
	tags := rt.tagsOf(o, true)
	if tags.handlers == nil {
		tags.handlers = make(map[string]*slotHandlers)
	}
	h := tags.handlers[name]
	if h == nil {
		h = &slotHandlers{}
		tags.handlers[name] = h
	}
	install(h)
	return nil
}

// UseGetHandler makes denied reads of name on o (or objects delegating to
// o) call h instead of the Keeper.
func (rt *Runtime) UseGetHandler(o *ir.Object, name string, h GetHandler) error {
	return rt.installHandler(o, name, func(s *slotHandlers) { s.get = h })
}

// UseApplyHandler makes denied invocations of name call h.
func (rt *Runtime) UseApplyHandler(o *ir.Object, name string, h ApplyHandler) error {
	return rt.installHandler(o, name, func(s *slotHandlers) { s.apply = h })
}

// UseSetHandler makes denied writes of name call h. Frozen objects never
// reach a set handler.
func (rt *Runtime) UseSetHandler(o *ir.Object, name string, h SetHandler) error {
	return rt.installHandler(o, name, func(s *slotHandlers) { s.set = h })
}

// UseDeleteHandler makes denied deletes of name call h. Frozen objects
// never reach a delete handler.
func (rt *Runtime) UseDeleteHandler(o *ir.Object, name string, h DeleteHandler) error {
	return rt.installHandler(o, name, func(s *slotHandlers) { s.delete = h })
}

// findHandlers looks name up along the delegation chain of o.
func (rt *Runtime) findHandlers(o *ir.Object, name string) *slotHandlers {
	for cur := o; cur != nil; cur = cur.Parent() {
		if tags := rt.tagsOf(cur, false); tags != nil {
			if h := tags.handlers[name]; h != nil {
				return h
			}
		}
	}
	return nil
}

// Fault describes one denied access.
type Fault struct {
	Op       Op
	ObjectID uint64
	Object   string
	Name     string
	Code     ErrorCode
}

// FaultObserver receives every denial the mediators fall back on. The
// observer must not call back into the Runtime.
type FaultObserver interface {
	ObserveFault(f Fault)
}

// FaultObserverFunc adapts a function to FaultObserver.
type FaultObserverFunc func(f Fault)

// ObserveFault calls fn(f).
func (fn FaultObserverFunc) ObserveFault(f Fault) { fn(f) }

// denied logs and reports a denial before the fallback runs.
func (rt *Runtime) denied(op Op, o *ir.Object, name string) {
	rt.logger.Debug("access denied",
		"op", string(op),
		"object", o.String(),
		"name", name,
	)
	if rt.observer != nil {
		rt.observer.ObserveFault(Fault{
			Op:       op,
			ObjectID: o.ID(),
			Object:   o.String(),
			Name:     name,
			Code:     op.deniedCode(),
		})
	}
}
