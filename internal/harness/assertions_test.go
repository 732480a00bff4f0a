package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/module"
	"github.com/roach88/membrane/internal/store"
	"github.com/roach88/membrane/internal/testutil"
)

func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewDeterministicClock()),
		store.WithSession("s1"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	st.ObserveFault(membrane.Fault{Op: membrane.OpSet, Object: "record#1", Name: "limit", Code: membrane.ErrCodeNotSettable})
	st.ObserveFault(membrane.Fault{Op: membrane.OpSet, Object: "record#1", Name: "other", Code: membrane.ErrCodeNotSettable})
	st.ObserveFault(membrane.Fault{Op: membrane.OpCall, Object: "record#2", Name: "f", Code: membrane.ErrCodeNotCallable})
	st.ObserveOutcome("s1", "m", module.Outcome{Value: ir.Undefined{}, Err: errors.New("boom")})
	st.ObserveOutcome("s1", "m", module.Outcome{Success: true, Value: ir.Int(1)})
	st.ObserveOutcome("s2", "elsewhere", module.Outcome{Success: true, Value: ir.Int(1)})
	require.NoError(t, st.Err())

	return &AssertionContext{Store: st, Ctx: context.Background(), Session: "s1"}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	actx := newAssertionContext(t)

	failures := EvaluateAssertions([]Assertion{
		{Type: AssertFaultContains, Op: "call"},
		{Type: AssertFaultContains, Name: "limit", Code: "NOT_SETTABLE"},
		{Type: AssertFaultCount, Op: "set", Count: 2},
		{Type: AssertFaultCount, Op: "delete", Count: 0},
		{Type: AssertOutcome, Module: "m", Success: true},
	}, actx)
	assert.Empty(t, failures)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	actx := newAssertionContext(t)

	failures := EvaluateAssertions([]Assertion{
		{Type: AssertFaultContains, Op: "read"},
		{Type: AssertFaultCount, Code: "NOT_SETTABLE", Count: 1},
		{Type: AssertOutcome, Module: "m", Success: false},
		{Type: AssertOutcome, Module: "elsewhere", Success: true},
		{Type: "bogus"},
	}, actx)

	assert.Equal(t, []string{
		`assertion 0 (fault_contains): no fault matching {op="read" name="" code=""}`,
		`assertion 1 (fault_count): expected 1 faults matching {op="" name="" code="NOT_SETTABLE"}, got 2`,
		"assertion 2 (outcome): module m: expected success=false, got true ()",
		"assertion 3 (outcome): no outcome recorded for module elsewhere",
		"assertion 4 (bogus): unknown assertion type",
	}, failures)
}
