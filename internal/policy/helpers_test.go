package policy

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

func newTestRuntime(t *testing.T) *membrane.Runtime {
	t.Helper()
	rt, err := membrane.New(membrane.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return rt
}

// world holds the host objects a test table refers to.
type world struct {
	root  *ir.Object
	max   *ir.Object
	point *ir.Object
	getX  *ir.Object
}

func newWorld(t *testing.T) world {
	t.Helper()
	w := world{}
	w.max = ir.NewFunction("max", 2, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		a, b := args[0].(ir.Int), args[1].(ir.Int)
		return ir.Int(max(a, b)), nil
	})
	w.getX = ir.NewFunction("getX", 0, func(self ir.Value, _ []ir.Value) (ir.Value, error) {
		v, _ := ir.AsObject(self).Own("x")
		return v, nil
	})
	w.point = ir.NewFunction("Point", 1, func(self ir.Value, args []ir.Value) (ir.Value, error) {
		return ir.Undefined{}, ir.AsObject(self).Set("x", args[0])
	})
	require.NoError(t, w.point.SetPrototype(ir.NewRecord(ir.P("getX", w.getX))))

	w.root = ir.NewRecord(
		ir.P("Math", ir.NewRecord(ir.P("max", w.max))),
		ir.P("Point", w.point),
		ir.P("config", ir.NewRecord(ir.P("limit", ir.Int(10)))),
	)
	return w
}
