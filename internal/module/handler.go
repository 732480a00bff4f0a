package module

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

// NoResult is returned by an instantiate function that has nothing to
// report. The handler keeps the previous outcome.
var NoResult = func() *ir.Object {
	o := ir.NewRecord()
	o.Freeze()
	return o
}()

// Handler receives every loaded module.
type Handler interface {
	Handle(m *Module) (ir.Value, error)
}

// Outcome is the result of one instantiation.
type Outcome struct {
	Success bool
	Value   ir.Value
	Err     error
}

// OutcomeObserver is told about every recorded outcome (e.g. an audit log).
type OutcomeObserver interface {
	ObserveOutcome(session, moduleID string, o Outcome)
}

// SessionGenerator produces handler session ids.
type SessionGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session ids.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NormalHandler runs modules against one mutable imports record, lazily
// copied from the shared baseline, and records each outcome.
type NormalHandler struct {
	rt       *membrane.Runtime
	logger   *slog.Logger
	observer OutcomeObserver
	session  string

	shared  *ir.Object
	imports *ir.Object
	last    *Outcome
}

// HandlerOption configures a NormalHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger   *slog.Logger
	observer OutcomeObserver
	sessions SessionGenerator
	shared   *ir.Object
}

// WithHandlerLogger sets the handler's logger.
//
// Default: the Runtime's logger
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = l }
}

// WithOutcomeObserver reports every recorded outcome to o.
func WithOutcomeObserver(o OutcomeObserver) HandlerOption {
	return func(c *handlerConfig) { c.observer = o }
}

// WithSessionGenerator sets the session id source.
//
// Default: UUIDv7Generator
func WithSessionGenerator(g SessionGenerator) HandlerOption {
	return func(c *handlerConfig) { c.sessions = g }
}

// WithSharedImports sets the baseline copied into the imports record.
//
// Default: an empty record
func WithSharedImports(shared *ir.Object) HandlerOption {
	return func(c *handlerConfig) { c.shared = shared }
}

// NewNormalHandler creates a handler for rt.
func NewNormalHandler(rt *membrane.Runtime, opts ...HandlerOption) *NormalHandler {
	cfg := handlerConfig{logger: rt.Logger(), sessions: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.shared == nil {
		cfg.shared = ir.NewRecord()
	}
	return &NormalHandler{
		rt:       rt,
		logger:   cfg.logger,
		observer: cfg.observer,
		session:  cfg.sessions.Generate(),
		shared:   cfg.shared,
	}
}

// Session returns the handler's session id.
func (h *NormalHandler) Session() string { return h.session }

// Imports returns the current imports record, copying the shared baseline
// on first use.
func (h *NormalHandler) Imports() *ir.Object {
	if h.imports == nil {
		imports, err := h.rt.Copy(h.shared)
		if err != nil {
			h.logger.Warn("shared imports not copyable, starting empty", "error", err)
			imports = ir.NewRecord()
		}
		h.imports = imports
	}
	return h.imports
}

// SetImports replaces the imports record.
func (h *NormalHandler) SetImports(imports *ir.Object) {
	h.imports = imports
}

// LastOutcome returns the most recent outcome, or false if none has been
// recorded.
func (h *NormalHandler) LastOutcome() (Outcome, bool) {
	if h.last == nil {
		return Outcome{}, false
	}
	return *h.last, true
}

// LastValue returns the value of the last outcome if it succeeded, and
// Undefined otherwise.
func (h *NormalHandler) LastValue() ir.Value {
	if h.last == nil || !h.last.Success {
		return ir.Undefined{}
	}
	return h.last.Value
}

// Handle instantiates m against the current imports. Failures are
// recorded as the last outcome and reported as Undefined; they are never
// returned as errors.
func (h *NormalHandler) Handle(m *Module) (ir.Value, error) {
	result, err := h.rt.CallFunc(m.Instantiate, []ir.Value{h.Imports()})
	switch {
	case err != nil:
		h.record(m.ID, Outcome{Success: false, Value: ir.Undefined{}, Err: err})
		return ir.Undefined{}, nil
	case result == ir.Value(NoResult):
		h.logger.Debug("module reported no result", "session", h.session, "module", m.ID)
		return ir.Undefined{}, nil
	default:
		h.record(m.ID, Outcome{Success: true, Value: result})
		return result, nil
	}
}

// HandleUncaughtException records err as a failed outcome and logs it as
// "source:line: message". If onerror is a Plain function it is called
// with (message, source, line); a false result suppresses the log line.
// A null onerror also suppresses it.
func (h *NormalHandler) HandleUncaughtException(err error, onerror ir.Value, source, line string) {
	h.record("", Outcome{Success: false, Value: ir.Undefined{}, Err: err})

	message := "unknown"
	if err != nil {
		message = err.Error()
	}
	report := true
	switch fn := ir.Normalize(onerror).(type) {
	case ir.Null:
		report = false
	case *ir.Object:
		if h.rt.ShapeOf(fn) == membrane.Plain {
			v, callErr := h.rt.CallFunc(fn, []ir.Value{ir.String(message), ir.String(source), ir.String(line)})
			if callErr != nil {
				h.logger.Warn("onerror failed", "error", callErr)
			}
			report = v != ir.Value(ir.Bool(false))
		}
	}
	if report {
		h.logger.Warn(source+":"+line+": "+message, "session", h.session)
	}
}

func (h *NormalHandler) record(moduleID string, o Outcome) {
	h.last = &o
	if o.Success {
		h.logger.Info("module loaded", "session", h.session, "module", moduleID)
	} else {
		h.logger.Info("module failed", "session", h.session, "module", moduleID, "error", o.Err)
	}
	if h.observer != nil {
		h.observer.ObserveOutcome(h.session, moduleID, o)
	}
}

// ObtainHandler does not run modules: it keeps the last one and returns
// its instantiate function so the host can run it later.
type ObtainHandler struct {
	Last *Module
}

// Handle stores m and returns m.Instantiate.
func (h *ObtainHandler) Handle(m *Module) (ir.Value, error) {
	h.Last = m
	return m.Instantiate, nil
}
