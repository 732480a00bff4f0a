package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/store"
)

func TestRun_BasicScenario(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "golden_basic.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "golden", result.Session)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, int64(10), result.Trace[0].Result)
	assert.Equal(t, "NOT_SETTABLE", result.Trace[3].Error)
	assert.Nil(t, result.Trace[3].Result)
	assert.Equal(t, []FaultEvent{{Op: "set", Name: "limit", Code: "NOT_SETTABLE"}}, result.Trace[3].Faults)
}

func TestRun_ConstructorAndExophoricMethod(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "point.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "test-session", result.Session)
	assert.Equal(t, map[string]any{"$instance": "Point", "x": int64(3), "y": int64(4)}, result.Trace[0].Result)
}

func TestRun_ExpectationFailuresAreReported(t *testing.T) {
	result := mustRun(t, `
name: wrong
description: "Every expectation here is wrong"
world:
  records:
    config: { limit: 10 }
steps:
  - op: read
    target: config
    name: limit
    expect: { value: 11 }
  - op: read
    target: config
    name: missing
    expect: { value: 1 }
  - op: read
    target: config
    name: limit
    expect: { error: NOT_READABLE }
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected value 11, got 10")
	// Denied reads observe undefined rather than failing.
	assert.Contains(t, result.Errors[1], "expected value 1, got <undefined>")
	assert.Contains(t, result.Errors[2], "expected error NOT_READABLE, got success")
}

func TestRun_UnclassifiedFunctionIsNotFirstClass(t *testing.T) {
	result := mustRun(t, `
name: unclassified
description: "Functions the policy never names stay out of reach"
world:
  functions:
    - path: Tools.raw
      builtin: identity
steps:
  - op: read
    target: Tools
    name: raw
    expect: { error: NOT_READABLE }
  - op: call
    target: Tools
    name: raw
    args: [1]
    expect: { error: NOT_CALLABLE }
  - op: tame
    value: "@Tools.raw"
    expect: { value: "<undefined>" }
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []FaultEvent{{Op: "call", Name: "raw", Code: "NOT_CALLABLE"}}, result.Trace[1].Faults)
}

func TestRun_ReservedNamesAreHidden(t *testing.T) {
	result := mustRun(t, `
name: reserved
description: "Slots with the reserved suffix never reach guests"
world:
  functions:
    - path: Tools.secret
      builtin: secret
policy:
  entries:
    - path: Tools.secret
      shape: plain
steps:
  - op: call
    target: Tools
    name: secret
    save: s
    expect: { value: { visible: true } }
  - op: keys
    target: $s
    expect: { value: [visible] }
  - op: has
    target: $s
    name: hidden__
    expect: { value: false }
  - op: read
    target: $s
    name: hidden__
    expect: { value: "<undefined>" }
assertions:
  - type: fault_contains
    op: read
    name: hidden__
    code: NOT_READABLE
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_PolicyHooks(t *testing.T) {
	result := mustRun(t, `
name: hooks
description: "Pre and post hooks rewrite arguments and results"
world:
  functions:
    - path: Math.max
      builtin: max
policy:
  entries:
    - path: Math.max
      shape: plain
      pre: clamp
      post: double
steps:
  - op: call
    target: Math
    name: max
    args: [500, 3]
    expect: { value: 200 }
  - op: read
    target: Math
    name: max
    save: max
  - op: call
    target: $max
    args: [-5, -9]
    expect: { value: 0 }
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "<plain function max>", result.Trace[1].Result)
}

func TestRun_TamingRecords(t *testing.T) {
	result := mustRun(t, `
name: taming
description: "Plain records tame to frozen copies"
world:
  records:
    config: { limit: 10 }
steps:
  - op: tame
    value: "@config"
    save: tamed
    expect: { value: { limit: 10 }, frozen: true }
  - op: untame
    value: $tamed
    expect: { same: "@config" }
  - op: tame
    value: 7
    expect: { value: 7 }
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Trademarks(t *testing.T) {
	result := mustRun(t, `
name: trademarks
description: "Stamped records pass their trademark guard"
world:
  records:
    box: {}
    other: {}
steps:
  - op: trademark
    name: Box
    save: tm
  - op: stamp
    target: box
    stamps: [tm]
    expect: { frozen: true }
  - op: guard
    guard: tm
    value: "@box"
    expect: { value: true }
  - op: guard
    guard: tm
    value: "@other"
    expect: { value: false }
  - op: stamp
    target: box
    stamps: [tm]
    expect: { error: BAD_STAMP }
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string]any{
		"name":  "BoxMark",
		"guard": map[string]any{"name": "BoxT", "coerce": "<plain function coerce>"},
		"stamp": map[string]any{"name": "BoxStamp"},
	}, result.Trace[0].Result)
}

func TestRun_Modules(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	scenario := mustParse(t, `
name: modules
description: "Modules run against one imports record per session"
session: mods
world:
  records:
    config: { limit: 10 }
steps:
  - op: load
    module: answer
    expect: { value: 42 }
  - op: load
    module: counter
    expect: { value: 1 }
  - op: load
    module: counter
    expect: { value: 2 }
  - op: load
    module: none
    expect: { value: "<undefined>" }
  - op: load
    module: readWorld
    args: [config, limit]
    expect: { value: 10 }
  - op: load
    module: throw
    expect: { error: MODULE_FAILED }
  - op: freeze
    target: "@"
  - op: load
    module: tryWrite
    args: [config, 1]
    expect: { error: MODULE_FAILED }
assertions:
  - type: outcome
    module: answer
    success: true
  - type: outcome
    module: throw
    success: false
  - type: outcome
    module: tryWrite
    success: false
  - type: fault_count
    op: set
    name: config
    count: 1
`)
	result, err := Run(scenario, WithDB(dbPath))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	outcomes, err := st.ReadOutcomes(context.Background(), "mods")
	require.NoError(t, err)
	// none leaves no outcome behind.
	require.Len(t, outcomes, 6)
	assert.Equal(t, "counter", outcomes[2].ModuleID)
	assert.Equal(t, "2", outcomes[2].Value)
}

func TestRun_FailedAssertions(t *testing.T) {
	result := mustRun(t, `
name: failing_assertions
description: "Assertions that do not hold are reported"
world:
  records:
    config: { limit: 10 }
steps:
  - op: read
    target: config
    name: limit
assertions:
  - type: fault_contains
    code: NOT_READABLE
  - type: fault_count
    count: 2
  - type: outcome
    module: answer
    success: true
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "assertion 0 (fault_contains): no fault matching")
	assert.Contains(t, result.Errors[1], "expected 2 faults")
	assert.Contains(t, result.Errors[2], "no outcome recorded for module answer")
}

func TestRun_SetupErrors(t *testing.T) {
	t.Run("bad policy", func(t *testing.T) {
		_, err := Run(mustParse(t, `
name: bad_policy
description: "Policy names a slot that does not exist"
steps:
  - op: keys
    target: "@"
policy:
  entries:
    - path: Math.max
      shape: plain
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply policy")
	})

	t.Run("bad target", func(t *testing.T) {
		result := mustRun(t, `
name: bad_target
description: "Targets must resolve"
steps:
  - op: keys
    target: nowhere
    expect: { error: ERROR }
`)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	})
}
