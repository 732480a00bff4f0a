package module

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T) *membrane.Runtime {
	t.Helper()
	rt, err := membrane.New(membrane.WithLogger(discardLogger()))
	require.NoError(t, err)
	return rt
}

func newTestHandler(rt *membrane.Runtime, opts ...HandlerOption) *NormalHandler {
	opts = append([]HandlerOption{
		WithHandlerLogger(discardLogger()),
		WithSessionGenerator(testutil.NewFixedSessionGenerator("s1")),
	}, opts...)
	return NewNormalHandler(rt, opts...)
}

func testMeta() Meta {
	return Meta{CompilerName: "membranec", CompilerVersion: "1", CompiledAt: "2024-01-01T00:00:00Z"}
}

func returning(v ir.Value) Unit {
	return Unit{Meta: testMeta(), Instantiate: func(*membrane.Guest, *ir.Object) (ir.Value, error) {
		return v, nil
	}}
}

// outcomeLog collects observed outcomes.
type outcomeLog struct {
	entries []string
	last    Outcome
}

func (l *outcomeLog) ObserveOutcome(session, moduleID string, o Outcome) {
	l.entries = append(l.entries, session+"/"+moduleID)
	l.last = o
}
