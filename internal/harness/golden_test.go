package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Basic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "golden_basic.yaml"))
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_Basic -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "point.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first).MarshalCanonical()
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.NotContains(t, string(a), "#", "object ids leaked into the trace")
}

func TestSnapshot_OmitsEmptyFields(t *testing.T) {
	snap := &TraceSnapshot{
		ScenarioName: "empty",
		Trace:        []TraceEvent{{Step: 0, Op: "keys", Seq: 1}},
	}
	data, err := snap.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"empty","trace":[{"op":"keys","seq":1,"step":0}]}`, string(data))
}

func TestSnapshot_HashTracksContent(t *testing.T) {
	result := NewResult("s1")
	result.AddTrace(TraceEvent{Step: 0, Op: OpKeys, Seq: 1})

	a, err := Snapshot("one", result).Hash()
	require.NoError(t, err)
	b, err := Snapshot("one", result).Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Snapshot("two", result).Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
