package module

import (
	"fmt"
	"log/slog"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

// Loader is the host entry point for guest units.
type Loader struct {
	rt      *membrane.Runtime
	logger  *slog.Logger
	shared  *ir.Object
	handler Handler
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHandler sets the initial module handler.
//
// Default: a NormalHandler over the shared imports
func WithHandler(h Handler) LoaderOption {
	return func(l *Loader) { l.handler = h }
}

// WithShared sets the frozen baseline imports. It is merged over the root
// constructors (Object, Array, Error).
func WithShared(shared *ir.Object) LoaderOption {
	return func(l *Loader) { l.shared = shared }
}

// NewLoader creates a Loader for rt.
func NewLoader(rt *membrane.Runtime, opts ...LoaderOption) *Loader {
	l := &Loader{rt: rt, logger: rt.Logger()}
	for _, opt := range opts {
		opt(l)
	}
	base := ir.NewRecord(
		ir.P("Object", rt.ObjectCtor()),
		ir.P("Array", rt.ArrayCtor()),
		ir.P("Error", rt.ErrorCtor()),
	)
	if l.shared != nil {
		for _, name := range l.shared.Keys() {
			v, _ := l.shared.Own(name)
			_ = base.Set(name, v)
		}
	}
	l.shared = rt.PrimFreeze(base)
	if l.handler == nil {
		l.handler = NewNormalHandler(rt, WithSharedImports(l.shared))
	}
	return l
}

// Shared returns the frozen baseline imports.
func (l *Loader) Shared() *ir.Object { return l.shared }

// Handler returns the active module handler.
func (l *Loader) Handler() Handler { return l.handler }

// SetHandler replaces the active module handler.
func (l *Loader) SetHandler(h Handler) error {
	if h == nil {
		return membrane.NewConfigurationError("module handler must not be nil")
	}
	l.handler = h
	return nil
}

// LoadModule freezes u's metadata, classifies its instantiate function as
// Plain, and hands the module to the active handler. The error is non-nil
// only when u itself is malformed.
func (l *Loader) LoadModule(u Unit) (ir.Value, error) {
	m, err := newModule(l.rt, u)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("loading module", "module", m.ID)
	return l.handler.Handle(m)
}

// Prepare turns u into a Plain module function. Calling it with an
// imports record runs instantiate against a frozen merge of the shared
// baseline, load (if non-nil) and every local slot of the imports.
// The compiler metadata is visible as read-only statics.
func (l *Loader) Prepare(u Unit, load *ir.Object) (*ir.Object, error) {
	m, err := newModule(l.rt, u)
	if err != nil {
		return nil, err
	}
	rt := l.rt
	fn := ir.NewFunction("theModule", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		complete := ir.NewRecord()
		for _, name := range l.shared.Keys() {
			v, _ := l.shared.Own(name)
			_ = complete.Set(name, v)
		}
		if load != nil {
			_ = complete.Set("load", load)
		}
		if len(args) > 0 {
			if imports := ir.AsObject(args[0]); imports != nil {
				// Host-side merge: slots guests cannot read still reach
				// privileged instantiate code.
				for _, name := range imports.Keys() {
					v, _ := imports.Own(name)
					_ = complete.Set(name, v)
				}
			}
		}
		return rt.CallFunc(m.Instantiate, []ir.Value{rt.PrimFreeze(complete)})
	})

	statics := []ir.Pair{
		ir.P("compilerName", mustOwn(m.Meta, "compilerName")),
		ir.P("compilerVersion", mustOwn(m.Meta, "compilerVersion")),
		ir.P("compiledAt", mustOwn(m.Meta, "compiledAt")),
		ir.P("moduleId", ir.String(m.ID)),
	}
	if inc, ok := m.Meta.Own("includedModules"); ok {
		statics = append(statics, ir.P("includedModules", inc))
	}
	for _, s := range statics {
		if err := rt.SetStatic(fn, s.Key, s.Value); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", m.ID, err)
		}
	}
	if err := rt.MarkPlain(fn, "theModule"); err != nil {
		return nil, err
	}
	return fn, nil
}

func mustOwn(o *ir.Object, name string) ir.Value {
	v, ok := o.Own(name)
	if !ok {
		return ir.Undefined{}
	}
	return v
}
