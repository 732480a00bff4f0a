package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
	"github.com/roach88/membrane/internal/membrane"
)

func TestLiteral(t *testing.T) {
	v, err := literal(map[string]any{"b": []any{1, "x", nil}, "a": true}, nil)
	require.NoError(t, err)
	rec := ir.AsObject(v)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"a", "b"}, rec.Keys())

	arr, _ := rec.Own("b")
	assert.Equal(t, []ir.Value{ir.Int(1), ir.String("x"), ir.Null{}}, ir.AsObject(arr).Elems())

	_, err = literal(1.5, nil)
	assert.ErrorContains(t, err, "floats are not supported")
}

func TestLiteral_ResolvesReferences(t *testing.T) {
	target := ir.NewRecord()
	resolve := func(ref string) (ir.Value, error) {
		assert.Equal(t, "$t", ref)
		return target, nil
	}
	v, err := literal([]any{"$t", "plain"}, resolve)
	require.NoError(t, err)
	elems := ir.AsObject(v).Elems()
	assert.Same(t, target, elems[0])
	assert.Equal(t, ir.String("plain"), elems[1])
}

func TestWalk(t *testing.T) {
	fn := ir.NewFunction("Point", 0, nil)
	proto := ir.NewRecord(ir.P("getX", ir.Int(1)))
	require.NoError(t, fn.SetPrototype(proto))
	root := ir.NewRecord(ir.P("Point", fn))

	v, err := walk(root, "Point.prototype.getX", "@Point.prototype.getX")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), v)

	_, err = walk(root, "Point.nope", "@Point.nope")
	assert.ErrorContains(t, err, `no slot "nope"`)

	_, err = walk(root, "Point.prototype.getX.deeper", "@x")
	assert.ErrorContains(t, err, "is on int")
}

func TestRender(t *testing.T) {
	rt := membrane.MustNew()

	assert.Equal(t, "<undefined>", render(rt, ir.Undefined{}))
	assert.Equal(t, "<undefined>", render(rt, nil))
	assert.Equal(t, "<null>", render(rt, ir.Null{}))
	assert.Equal(t, int64(3), render(rt, ir.Int(3)))
	assert.Equal(t, "<constructor function Object>", render(rt, rt.ObjectCtor()))
	assert.Equal(t, "<unclassified function f>", render(rt, ir.NewFunction("f", 0, nil)))
	assert.Equal(t, map[string]any{"$error": "boom"}, render(rt, rt.NewError("boom")))

	cyclic := ir.NewRecord()
	require.NoError(t, cyclic.Set("self", cyclic))
	assert.Equal(t, map[string]any{"self": "<cycle>"}, render(rt, cyclic))

	// Shared, non-cyclic references render twice.
	shared := ir.NewRecord(ir.P("n", ir.Int(1)))
	pair := ir.NewArray(shared, shared)
	assert.Equal(t, []any{map[string]any{"n": int64(1)}, map[string]any{"n": int64(1)}}, render(rt, pair))
}
