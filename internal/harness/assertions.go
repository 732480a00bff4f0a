package harness

import (
	"context"
	"fmt"

	"github.com/roach88/membrane/internal/queryir"
	"github.com/roach88/membrane/internal/store"
)

// AssertionContext provides access to the audit log for assertions.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	Session string
}

// AssertionError describes a failed assertion.
type AssertionError struct {
	Index   int
	Type    string
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %d (%s): %s", e.Index, e.Type, e.Message)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in order. An empty slice means all passed.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(i, a, actx); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluateAssertion(i int, a Assertion, actx *AssertionContext) error {
	fail := func(format string, args ...any) error {
		return &AssertionError{Index: i, Type: a.Type, Message: fmt.Sprintf(format, args...)}
	}

	switch a.Type {
	case AssertFaultContains, AssertFaultCount:
		faults, err := actx.Store.QueryFaults(actx.Ctx, queryir.Select{
			From: queryir.TableFaults,
			Filter: queryir.All(
				queryir.Eq("session", actx.Session),
				queryir.Eq("op", a.Op),
				queryir.Eq("name", a.Name),
				queryir.Eq("code", a.Code),
			),
		})
		if err != nil {
			return fail("read faults: %v", err)
		}
		n := len(faults)
		if a.Type == AssertFaultContains && n == 0 {
			return fail("no fault matching %s", faultFilter(a))
		}
		if a.Type == AssertFaultCount && n != a.Count {
			return fail("expected %d faults matching %s, got %d", a.Count, faultFilter(a), n)
		}
		return nil

	case AssertOutcome:
		outcomes, err := actx.Store.QueryOutcomes(actx.Ctx, queryir.Select{
			From:   queryir.TableOutcomes,
			Filter: queryir.All(queryir.Eq("session", actx.Session), queryir.Eq("module_id", a.Module)),
		})
		if err != nil {
			return fail("read outcomes: %v", err)
		}
		if len(outcomes) == 0 {
			return fail("no outcome recorded for module %s", a.Module)
		}
		if o := outcomes[len(outcomes)-1]; o.Success != a.Success {
			return fail("module %s: expected success=%t, got %t (%s)", a.Module, a.Success, o.Success, o.Error)
		}
		return nil
	}
	return fail("unknown assertion type")
}

func faultFilter(a Assertion) string {
	return fmt.Sprintf("{op=%q name=%q code=%q}", a.Op, a.Name, a.Code)
}
