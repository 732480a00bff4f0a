package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/membrane/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Session      string       `json:"session,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// MarshalCanonical renders the snapshot as canonical JSON, the byte form
// golden files hold.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.document())
}

// Hash is the content digest of the snapshot, stable across runs of the
// same scenario.
func (s *TraceSnapshot) Hash() (string, error) {
	return ir.TraceHash(s.document())
}

func (s *TraceSnapshot) document() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		trace[i] = e.canonical()
	}
	m := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
	if s.Session != "" {
		m["session"] = s.Session
	}
	return m
}

// Snapshot builds the golden snapshot of a result.
func Snapshot(scenarioName string, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName: scenarioName,
		Session:      result.Session,
		Trace:        result.Trace,
	}
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
