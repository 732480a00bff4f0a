package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/roach88/membrane/internal/guard"
	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/module"
	"github.com/roach88/membrane/internal/policy"
	"github.com/roach88/membrane/internal/store"
	"github.com/roach88/membrane/internal/testutil"
)

// ErrCodeModuleFailed is the step error code of a load whose module
// failed. The failure itself is recorded as an outcome, not returned.
const ErrCodeModuleFailed = "MODULE_FAILED"

// Harness executes one scenario against a fresh Runtime.
type Harness struct {
	rt      *membrane.Runtime
	kit     *guard.Kit
	loader  *module.Loader
	handler *module.NormalHandler
	store   *store.Store
	clock   *testutil.DeterministicClock
	logger  *slog.Logger

	root   *ir.Object
	vars   map[string]ir.Value
	marks  map[string]*guard.Trademark
	faults []FaultEvent

	// lastOutcome is set by the outcome observer during a load step.
	lastOutcome *module.Outcome
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	db     string
	logger *slog.Logger
}

// WithDB writes the audit log to path instead of an in-memory database.
func WithDB(path string) Option {
	return func(c *runConfig) { c.db = path }
}

// WithLogger sets the logger shared by the Runtime, handler and store.
//
// Default: a logger that discards everything
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open the audit store (in-memory unless WithDB)
//  2. Build the Runtime with the store as fault observer
//  3. Build the world and apply the policy
//  4. Execute steps, checking each expect clause
//  5. Evaluate assertions against the audit log
//
// The returned error is non-nil only when the scenario could not be set
// up; step and assertion failures are reported in Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		db:     ":memory:",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	session := scenario.Session
	if session == "" {
		session = testutil.NewFixedSessionGenerator("").Generate()
	}

	storeOpts := []store.Option{store.WithLogger(cfg.logger), store.WithSession(session)}
	if cfg.db == ":memory:" {
		storeOpts = append(storeOpts, store.WithClock(testutil.NewDeterministicClock()))
	}
	// A file log resumes its own clock so repeated runs append.
	st, err := store.Open(cfg.db, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(scenario, st, session, cfg.logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult(session)
	for i, step := range scenario.Steps {
		h.runStep(i, step, result)
	}
	if err := st.Err(); err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Session: session}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, st *store.Store, session string, logger *slog.Logger) (*Harness, error) {
	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		logger: logger,
		vars:   make(map[string]ir.Value),
		marks:  make(map[string]*guard.Trademark),
	}

	rt, err := membrane.New(
		membrane.WithLogger(logger),
		membrane.WithObserver(membrane.FaultObserverFunc(h.observeFault)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start runtime: %w", err)
	}
	h.rt = rt
	h.kit = guard.New(rt)

	if h.root, err = buildWorld(rt, scenario.World); err != nil {
		return nil, fmt.Errorf("failed to build world: %w", err)
	}
	if scenario.Policy != nil {
		if err := policy.Apply(rt, h.root, scenario.Policy, builtinHooks()); err != nil {
			return nil, fmt.Errorf("failed to apply policy: %w", err)
		}
	}
	if scenario.PolicyFile != "" {
		t, err := policy.LoadFile(scenario.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		if err := policy.Apply(rt, h.root, t, builtinHooks()); err != nil {
			return nil, fmt.Errorf("failed to apply policy %s: %w", scenario.PolicyFile, err)
		}
	}

	h.loader = module.NewLoader(rt, module.WithShared(ir.NewRecord(ir.P("world", h.root))))
	h.handler = module.NewNormalHandler(rt,
		module.WithSharedImports(h.loader.Shared()),
		module.WithOutcomeObserver(h),
		module.WithSessionGenerator(testutil.NewFixedSessionGenerator(session)),
		module.WithHandlerLogger(logger),
	)
	if err := h.loader.SetHandler(h.handler); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Harness) observeFault(f membrane.Fault) {
	h.faults = append(h.faults, FaultEvent{Op: string(f.Op), Name: f.Name, Code: string(f.Code)})
	h.store.ObserveFault(f)
}

// ObserveOutcome implements module.OutcomeObserver.
func (h *Harness) ObserveOutcome(session, moduleID string, o module.Outcome) {
	h.lastOutcome = &o
	h.store.ObserveOutcome(session, moduleID, o)
}

// ============================================================================
// Steps
// ============================================================================

func (h *Harness) runStep(i int, step Step, result *Result) {
	h.faults = nil
	v, err := h.execute(step)

	event := TraceEvent{
		Step:   i,
		Op:     step.Op,
		Target: step.Target,
		Name:   step.Name,
		Faults: h.faults,
		Seq:    h.clock.Next(),
	}
	if err != nil {
		event.Error = errorCode(err)
		h.logger.Debug("step failed", "step", i, "op", step.Op, "error", err)
	} else {
		event.Result = render(h.rt, v)
		if step.Save != "" {
			h.vars[step.Save] = v
		}
	}
	result.AddTrace(event)

	if step.Expect == nil {
		return
	}
	for _, msg := range h.check(step, v, err) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Op, msg))
	}
}

func (h *Harness) execute(step Step) (ir.Value, error) {
	g := h.rt.Guest()
	switch step.Op {
	case OpRead:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		return g.ReadSlot(target, step.Name)

	case OpWrite:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		v, err := decodeNode(step.Value, h.ref)
		if err != nil {
			return nil, err
		}
		if err := g.WriteSlot(target, step.Name, v); err != nil {
			return nil, err
		}
		return v, nil

	case OpDelete:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		ok, err := g.DeleteSlot(target, step.Name)
		return ir.Bool(ok), err

	case OpHas:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		return ir.Bool(g.Has(target, step.Name)), nil

	case OpCall:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		args, err := h.args(step.Args)
		if err != nil {
			return nil, err
		}
		if step.Name != "" {
			return g.InvokeSlot(target, step.Name, args...)
		}
		return g.Call(target, args...)

	case OpConstruct:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		args, err := h.args(step.Args)
		if err != nil {
			return nil, err
		}
		return g.Construct(target, args...)

	case OpKeys:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		list := g.OwnKeys
		if step.All {
			list = g.AllKeys
		}
		keys, err := list(target)
		if err != nil {
			return nil, err
		}
		elems := make([]ir.Value, len(keys))
		for i, k := range keys {
			elems[i] = ir.String(k)
		}
		return ir.NewArray(elems...), nil

	case OpFreeze:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		return g.Freeze(target)

	case OpTame, OpUntame:
		v, err := decodeNode(step.Value, h.ref)
		if err != nil {
			return nil, err
		}
		cross := h.rt.Tame
		if step.Op == OpUntame {
			cross = h.rt.Untame
		}
		out, ok := cross(v)
		if !ok {
			return ir.Undefined{}, nil
		}
		return out, nil

	case OpTrademark:
		tm := h.kit.NewTrademark(step.Name)
		h.marks[step.Save] = tm
		return tm.Object(), nil

	case OpStamp:
		target, err := h.target(step.Target)
		if err != nil {
			return nil, err
		}
		stamps := make([]ir.Value, len(step.Stamps))
		for i, name := range step.Stamps {
			tm, ok := h.marks[name]
			if !ok {
				return nil, fmt.Errorf("no trademark saved as %q", name)
			}
			stamps[i] = tm.Stamp.Object()
		}
		return h.kit.StampAll(target, stamps...)

	case OpGuard:
		tm, ok := h.marks[step.Guard]
		if !ok {
			return nil, fmt.Errorf("no trademark saved as %q", step.Guard)
		}
		v, err := decodeNode(step.Value, h.ref)
		if err != nil {
			return nil, err
		}
		passed, err := h.kit.PassesGuard(tm.Guard, v)
		return ir.Bool(passed), err

	case OpLoad:
		return h.load(step)
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// load runs a builtin module through the loader. A failed instantiation is
// reported as ErrCodeModuleFailed.
func (h *Harness) load(step Step) (ir.Value, error) {
	args, err := h.args(step.Args)
	if err != nil {
		return nil, err
	}
	body := builtinModules[step.Module]
	id := step.ID
	if id == "" {
		id = step.Module
	}
	unit := module.Unit{
		Meta: module.Meta{
			ID:              id,
			CompilerName:    "harness",
			CompilerVersion: ir.RuntimeVersion,
		},
		Instantiate: func(g *membrane.Guest, imports *ir.Object) (ir.Value, error) {
			return body(g, imports, args)
		},
	}

	h.lastOutcome = nil
	v, err := h.loader.LoadModule(unit)
	if err != nil {
		return nil, err
	}
	if h.lastOutcome != nil && !h.lastOutcome.Success {
		return nil, &moduleFailure{id: id, err: h.lastOutcome.Err}
	}
	return v, nil
}

type moduleFailure struct {
	id  string
	err error
}

func (e *moduleFailure) Error() string {
	return fmt.Sprintf("module %s failed: %v", e.id, e.err)
}

func (e *moduleFailure) Unwrap() error { return e.err }

// ============================================================================
// References
// ============================================================================

// target resolves a step target. "$name.path" starts at a saved result,
// "@path" or a bare path at the world root, and "@" alone is the root.
func (h *Harness) target(ref string) (ir.Value, error) {
	if !isRef(ref) {
		ref = "@" + ref
	}
	return h.ref(ref)
}

func (h *Harness) ref(ref string) (ir.Value, error) {
	body := ref[1:]
	head, path, _ := strings.Cut(body, ".")
	switch ref[0] {
	case '$':
		v, ok := h.vars[head]
		if !ok {
			return nil, fmt.Errorf("%s: no saved result %q", ref, head)
		}
		return walk(v, path, ref)
	default:
		return walk(h.root, body, ref)
	}
}

func (h *Harness) args(raw []any) ([]ir.Value, error) {
	out := make([]ir.Value, len(raw))
	for i, a := range raw {
		v, err := literal(a, h.ref)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ============================================================================
// Expectations
// ============================================================================

// errorCode maps err to the code a scenario can expect.
func errorCode(err error) string {
	var mf *moduleFailure
	if errors.As(err, &mf) {
		return ErrCodeModuleFailed
	}
	if code := membrane.CodeOf(err); code != "" {
		return string(code)
	}
	if code := guard.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func (h *Harness) check(step Step, v ir.Value, err error) []string {
	exp := step.Expect
	var failures []string

	if err != nil {
		code := errorCode(err)
		if exp.Error == "" {
			return []string{fmt.Sprintf("unexpected error %s: %v", code, err)}
		}
		if code != exp.Error {
			failures = append(failures, fmt.Sprintf("expected error %s, got %s: %v", exp.Error, code, err))
		}
		return failures
	}
	if exp.Error != "" {
		return []string{fmt.Sprintf("expected error %s, got success", exp.Error)}
	}

	if exp.Value != nil {
		want, werr := decodeNode(exp.Value, h.ref)
		if werr != nil {
			failures = append(failures, fmt.Sprintf("expected value: %v", werr))
		} else if got, wantR := render(h.rt, v), render(h.rt, want); !reflect.DeepEqual(got, wantR) {
			failures = append(failures, fmt.Sprintf("expected value %v, got %v", wantR, got))
		}
	}
	if exp.Same != "" {
		want, serr := h.ref(exp.Same)
		switch {
		case serr != nil:
			failures = append(failures, fmt.Sprintf("expected same: %v", serr))
		case !ir.Same(v, want):
			failures = append(failures, fmt.Sprintf("expected the value of %s, got %s", exp.Same, ir.Describe(v)))
		}
	}
	if exp.Frozen != nil && h.rt.IsFrozen(v) != *exp.Frozen {
		failures = append(failures, fmt.Sprintf("expected frozen=%t", *exp.Frozen))
	}
	return failures
}
