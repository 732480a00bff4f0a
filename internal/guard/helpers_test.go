package guard

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

func newTestKit(t *testing.T) *Kit {
	t.Helper()
	rt, err := membrane.New(membrane.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return New(rt)
}

// intGuard accepts Int specimens.
func intGuard(k *Kit) Guard {
	return k.NewGuard("IntT", func(specimen ir.Value, ej *Ejector) (ir.Value, error) {
		if _, ok := specimen.(ir.Int); ok {
			return specimen, nil
		}
		return nil, Eject(ej, ir.String("not an int"))
	})
}

func plain(t *testing.T, k *Kit, name string, impl ir.Func) *ir.Object {
	t.Helper()
	fn := ir.NewFunction(name, 1, impl)
	require.NoError(t, k.Runtime().MarkPlain(fn, name))
	return fn
}
