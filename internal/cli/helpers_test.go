package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const passingScenario = `name: frozen_config
description: "Reads a record, freezes it, and is denied a write"
session: cli
world:
  records:
    config: { limit: 10 }
steps:
  - op: read
    target: config
    name: limit
    expect: { value: 10 }
  - op: freeze
    target: config
    expect: { frozen: true }
  - op: write
    target: config
    name: limit
    value: 11
    expect: { error: NOT_SETTABLE }
assertions:
  - type: fault_count
    op: set
    count: 1
`

const failingScenario = `name: wrong_value
description: "Expects the wrong value"
world:
  records:
    config: { limit: 10 }
steps:
  - op: read
    target: config
    name: limit
    expect: { value: 11 }
`

const moduleScenario = `name: modules
description: "Loads modules that succeed and fail"
session: audit
world:
  records:
    config: { limit: 10 }
steps:
  - op: load
    module: answer
    expect: { value: 42 }
  - op: load
    module: throw
    expect: { error: MODULE_FAILED }
  - op: freeze
    target: config
  - op: write
    target: config
    name: limit
    value: 1
    expect: { error: NOT_SETTABLE }
`

const validPolicy = `entries:
  - path: Point
    shape: constructor
    super: Object
    grants: [read]
  - path: Point.prototype.getX
    shape: exophoric
    grants: [read, call]
`

const invalidPolicy = `entries:
  - path: Point
    shape: constructor
  - path: Math.max
    shape: bogus
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
