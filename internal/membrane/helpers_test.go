package membrane

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
)

// newTestRuntime builds a Runtime with logs suppressed.
func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	rt, err := New(opts...)
	require.NoError(t, err)
	return rt
}

func constFn(v ir.Value) *ir.Object {
	return ir.NewFunction("const", 0, func(ir.Value, []ir.Value) (ir.Value, error) {
		return v, nil
	})
}

func plainFn(t *testing.T, rt *Runtime, name string, impl ir.Func) *ir.Object {
	t.Helper()
	fn := ir.NewFunction(name, 0, impl)
	require.NoError(t, rt.MarkPlain(fn, name))
	return fn
}

// faultLog collects observed faults.
type faultLog struct {
	faults []Fault
}

func (l *faultLog) ObserveFault(f Fault) { l.faults = append(l.faults, f) }
