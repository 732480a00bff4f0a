package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordAudit runs the module scenario against a fresh database file.
func recordAudit(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	scenario := writeFile(t, dir, "modules.yaml", moduleScenario)
	db := filepath.Join(dir, "audit.db")

	_, err := execute(t, "run", scenario, "--db", db)
	require.NoError(t, err)
	return db
}

func TestTraceText(t *testing.T) {
	db := recordAudit(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Session audit")
	assert.Contains(t, out, "module answer -> 42")
	assert.Contains(t, out, "module throw failed")
	assert.Contains(t, out, "denied set")
	assert.Contains(t, out, "2 outcomes (1 failed), 1 faults")
}

func TestTraceJSON(t *testing.T) {
	db := recordAudit(t)

	out, err := execute(t, "--format", "json", "trace", "--db", db, "--session", "audit")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"audit"}, resp.Data.Sessions)
	assert.Equal(t, TraceStats{Outcomes: 2, Failures: 1, Faults: 1}, resp.Data.Stats)

	require.Len(t, resp.Data.Timeline, 3)
	for i := 1; i < len(resp.Data.Timeline); i++ {
		assert.Less(t, resp.Data.Timeline[i-1].Seq, resp.Data.Timeline[i].Seq)
	}
	assert.Equal(t, "outcome", resp.Data.Timeline[0].Kind)
	assert.Equal(t, "fault", resp.Data.Timeline[2].Kind)
}

func TestTraceRepeatedRunsAppend(t *testing.T) {
	db := recordAudit(t)
	scenario := writeFile(t, t.TempDir(), "modules.yaml", moduleScenario)

	_, err := execute(t, "run", scenario, "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "trace", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, TraceStats{Outcomes: 4, Failures: 2, Faults: 2}, resp.Data.Stats)
}

func TestTraceUnknownSession(t *testing.T) {
	db := recordAudit(t)

	out, err := execute(t, "trace", "--db", db, "--session", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "No audit records found.")
}

func TestTraceMissingDatabase(t *testing.T) {
	out, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E002")
}

func TestTraceRequiresDB(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
}

func TestTraceFilters(t *testing.T) {
	db := recordAudit(t)

	decode := func(t *testing.T, args ...string) TraceResult {
		t.Helper()
		out, err := execute(t, append([]string{"--format", "json", "trace", "--db", db}, args...)...)
		require.NoError(t, err)
		var resp struct {
			Data TraceResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp.Data
	}

	codes := decode(t, "--code", "NOT_SETTABLE")
	assert.Equal(t, TraceStats{Faults: 1}, codes.Stats)

	failed := decode(t, "--failed")
	assert.Equal(t, TraceStats{Outcomes: 1, Failures: 1}, failed.Stats)
	require.Len(t, failed.Timeline, 1)
	assert.Equal(t, "throw", failed.Timeline[0].Outcome.ModuleID)

	answer := decode(t, "--module", "answer")
	assert.Equal(t, TraceStats{Outcomes: 1}, answer.Stats)

	all := decode(t)
	require.Len(t, all.Timeline, 3)
	later := decode(t, "--since", fmt.Sprint(all.Timeline[0].Seq))
	assert.Len(t, later.Timeline, 2)

	none := decode(t, "--op", "delete")
	assert.Empty(t, none.Timeline)
}
