package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// mustParse parses inline scenario YAML.
func mustParse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

// mustRun parses and runs inline scenario YAML.
func mustRun(t *testing.T, content string) *Result {
	t.Helper()
	result, err := Run(mustParse(t, content))
	require.NoError(t, err)
	return result
}

func boolPtr(b bool) *bool { return &b }
