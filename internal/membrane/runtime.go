package membrane

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/table"
)

// ReservedSuffix is the suffix of the internal namespace every Runtime
// hides from guests.
const ReservedSuffix = "__"

// BaselineCheck verifies one property of the platform baseline. A failing
// check makes New refuse to build a Runtime.
type BaselineCheck func(rt *Runtime) error

// Runtime owns the mediation state for one confinement domain.
//
// INVARIANTS:
//   - reserved always contains ReservedSuffix
//   - every side table is key-lifetime: entries live on the objects they
//     describe
//   - objectCtor is the only constructor without a super constructor
type Runtime struct {
	logger   *slog.Logger
	keeper   Keeper
	observer FaultObserver
	reserved []string
	checks   []BaselineCheck

	tags      *table.Table[*objectTags]
	funcs     *table.Table[*funcInfo]
	tamed     *table.Table[ir.Value] // privileged -> confined
	feral     *table.Table[ir.Value] // confined -> privileged
	hooks     *table.Table[*tamingHooks]
	ctorAlias *table.Table[*ir.Object] // native constructor -> inert twin

	objectCtor *ir.Object
	arrayCtor  *ir.Object
	errorCtor  *ir.Object
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithKeeper replaces the default-deny Keeper.
func WithKeeper(k Keeper) Option {
	return func(rt *Runtime) {
		if k != nil {
			rt.keeper = k
		}
	}
}

// WithObserver reports every denial to o (e.g. an audit log).
func WithObserver(o FaultObserver) Option {
	return func(rt *Runtime) {
		rt.observer = o
	}
}

// WithReservedSuffix hides one more name suffix from guests. The base
// suffix "__" cannot be removed.
func WithReservedSuffix(suffix string) Option {
	return func(rt *Runtime) {
		if suffix != "" && !slices.Contains(rt.reserved, suffix) {
			rt.reserved = append(rt.reserved, suffix)
		}
	}
}

// WithBaselineCheck adds a collaborator-supplied startup check.
func WithBaselineCheck(check BaselineCheck) Option {
	return func(rt *Runtime) {
		if check != nil {
			rt.checks = append(rt.checks, check)
		}
	}
}

// New creates a Runtime, installs the root constructors and runs the
// baseline self-check. If any check fails New returns an error and no
// Runtime: the host must not run guest code.
func New(opts ...Option) (*Runtime, error) {
	rt := &Runtime{
		logger:    slog.Default(),
		keeper:    DenyKeeper{},
		reserved:  []string{ReservedSuffix},
		tags:      table.NewKeyed[*objectTags](),
		funcs:     table.NewKeyed[*funcInfo](),
		tamed:     table.NewKeyed[ir.Value](),
		feral:     table.NewKeyed[ir.Value](),
		hooks:     table.NewKeyed[*tamingHooks](),
		ctorAlias: table.NewKeyed[*ir.Object](),
	}
	for _, opt := range opts {
		opt(rt)
	}

	if err := rt.installRoots(); err != nil {
		return nil, &Error{Code: ErrCodeBaseline, Message: fmt.Sprintf("root constructors: %v", err)}
	}
	if err := rt.checkBaseline(); err != nil {
		rt.logger.Error("baseline check failed, refusing to start", "error", err)
		return nil, err
	}
	return rt, nil
}

// MustNew is like New but panics on error.
// Use only in tests.
func MustNew(opts ...Option) *Runtime {
	rt, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return rt
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// ObjectCtor returns the root record constructor.
func (rt *Runtime) ObjectCtor() *ir.Object { return rt.objectCtor }

// ArrayCtor returns the array constructor.
func (rt *Runtime) ArrayCtor() *ir.Object { return rt.arrayCtor }

// ErrorCtor returns the error constructor.
func (rt *Runtime) ErrorCtor() *ir.Object { return rt.errorCtor }

// NewError creates an error instance whose message guests may read.
func (rt *Runtime) NewError(message string) *ir.Object {
	e := ir.NewError(message)
	rt.grant(e, "message", RightRead|RightEnum)
	return e
}

func (rt *Runtime) installRoots() error {
	rt.objectCtor = ir.NewFunction("Object", 0, func(self ir.Value, args []ir.Value) (ir.Value, error) {
		return ir.NewRecord(), nil
	})
	rt.arrayCtor = ir.NewFunction("Array", 0, func(self ir.Value, args []ir.Value) (ir.Value, error) {
		return ir.NewArray(args...), nil
	})
	rt.errorCtor = ir.NewFunction("Error", 1, func(self ir.Value, args []ir.Value) (ir.Value, error) {
		msg := ""
		if len(args) > 0 {
			if s, ok := args[0].(ir.String); ok {
				msg = string(s)
			} else {
				msg = ir.Describe(args[0])
			}
		}
		return rt.NewError(msg), nil
	})

	if err := rt.MarkConstructor(rt.objectCtor, nil, "Object"); err != nil {
		return err
	}
	if err := rt.MarkConstructor(rt.arrayCtor, rt.objectCtor, "Array"); err != nil {
		return err
	}
	if err := rt.MarkConstructor(rt.errorCtor, rt.objectCtor, "Error"); err != nil {
		return err
	}
	for _, ctor := range []*ir.Object{rt.objectCtor, rt.arrayCtor, rt.errorCtor} {
		rt.PrimFreeze(ctor)
	}
	return nil
}

// checkBaseline verifies the properties every mediation decision relies
// on. Denials raised while checking are not reported to the observer.
func (rt *Runtime) checkBaseline() error {
	observer := rt.observer
	rt.observer = nil
	defer func() { rt.observer = observer }()

	fail := func(format string, args ...any) error {
		return &Error{Code: ErrCodeBaseline, Message: fmt.Sprintf(format, args...)}
	}

	probe := ir.NewRecord()
	if err := rt.WriteSlot(probe, "x", ir.Int(1)); err != nil {
		return fail("plain record rejected a write: %v", err)
	}
	rt.PrimFreeze(probe)
	if err := rt.WriteSlot(probe, "x", ir.Int(2)); err == nil {
		return fail("frozen record accepted a write")
	}
	if err := rt.WriteSlot(probe, "y", ir.Int(2)); err == nil {
		return fail("frozen record accepted a new slot")
	}
	if v, _ := probe.Own("x"); !ir.Same(v, ir.Int(1)) {
		return fail("frozen record slot changed to %s", ir.Describe(v))
	}
	if keys := probe.Keys(); len(keys) != 1 || keys[0] != "x" {
		return fail("access bookkeeping leaked into slots: %v", keys)
	}

	hidden := ir.NewRecord(ir.P("secret"+ReservedSuffix, ir.Int(1)))
	if rt.CanRead(hidden, "secret"+ReservedSuffix) {
		return fail("reserved name is readable")
	}
	if keys, err := rt.OwnKeys(hidden); err != nil || len(keys) != 0 {
		return fail("reserved name is enumerable: %v %v", keys, err)
	}

	for i, check := range rt.checks {
		if err := check(rt); err != nil {
			return fail("collaborator check %d: %v", i, err)
		}
	}
	return nil
}
