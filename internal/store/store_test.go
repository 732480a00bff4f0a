package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
	"github.com/roach88/membrane/internal/module"
)

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	for _, table := range []string{"outcomes", "faults"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}
}

func TestOpen_ResumesClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path, WithLogger(discardLogger()))
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.WriteFault(ctx, membrane.Fault{Op: membrane.OpRead, Object: "record#1", Name: "x", Code: membrane.ErrCodeNotReadable})
	require.NoError(t, err)
	_, err = s.WriteFault(ctx, membrane.Fault{Op: membrane.OpSet, Object: "record#1", Name: "y", Code: membrane.ErrCodeNotSettable})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, WithLogger(discardLogger()))
	require.NoError(t, err)
	defer s.Close()
	seq, err := s.WriteOutcome(ctx, "s2", "m", module.Outcome{Success: true, Value: ir.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClockAt(5)
	assert.Equal(t, int64(5), c.Current())
	assert.Equal(t, int64(6), c.Next())
	assert.Equal(t, int64(7), c.Next())
	assert.Equal(t, int64(7), c.Current())
	assert.Equal(t, int64(1), NewClock().Next())
}
