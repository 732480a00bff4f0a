package membrane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
)

func TestTame_Primitives(t *testing.T) {
	rt := newTestRuntime(t)
	for _, v := range []ir.Value{ir.Int(3), ir.String("s"), ir.Bool(true), ir.Null{}, ir.Undefined{}} {
		got, ok := rt.Tame(v)
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
	got, ok := rt.Tame(nil)
	require.True(t, ok)
	assert.Equal(t, ir.Undefined{}, got)
}

func TestTame_RecordRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	p := plainFn(t, rt, "p", nil)
	feral := ir.NewRecord(ir.P("a", ir.Int(1)), ir.P("f", p))

	v, ok := rt.Tame(feral)
	require.True(t, ok)
	tamed := ir.AsObject(v)
	require.NotNil(t, tamed)
	assert.NotSame(t, feral, tamed, "unfrozen records are copied")
	assert.True(t, tamed.IsFrozen())
	f, _ := tamed.Own("f")
	assert.Same(t, p, ir.AsObject(f), "plain functions tame to themselves")

	back, ok := rt.Untame(tamed)
	require.True(t, ok)
	assert.Same(t, feral, ir.AsObject(back))
}

func TestTame_Idempotent(t *testing.T) {
	rt := newTestRuntime(t)
	feral := ir.NewRecord(ir.P("a", ir.Int(1)))

	first, ok := rt.Tame(feral)
	require.True(t, ok)
	second, ok := rt.Tame(feral)
	require.True(t, ok)
	assert.Same(t, ir.AsObject(first), ir.AsObject(second))

	again, ok := rt.Tame(first)
	require.True(t, ok)
	assert.Same(t, ir.AsObject(first), ir.AsObject(again), "tamed values stay put")
}

func TestTame_FrozenUnchangedTamesToSelf(t *testing.T) {
	rt := newTestRuntime(t)
	r := rt.PrimFreeze(ir.NewRecord(ir.P("a", ir.Int(1))))

	v, ok := rt.Tame(r)
	require.True(t, ok)
	assert.Same(t, r, ir.AsObject(v))

	back, ok := rt.Untame(r)
	require.True(t, ok)
	assert.Same(t, r, ir.AsObject(back))
}

func TestTame_Cycle(t *testing.T) {
	rt := newTestRuntime(t)
	r := ir.NewRecord(ir.P("n", ir.Int(1)))
	require.NoError(t, r.Set("self", r))

	v, ok := rt.Tame(r)
	require.True(t, ok)
	tamed := ir.AsObject(v)
	self, _ := tamed.Own("self")
	assert.Same(t, tamed, ir.AsObject(self))
}

func TestTame_UntamableMembers(t *testing.T) {
	rt := newTestRuntime(t)
	toxic := ir.NewFunction("toxic", 0, nil)

	arr, ok := rt.Tame(ir.NewArray(ir.Int(1), toxic))
	require.True(t, ok)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Undefined{}}, ir.AsObject(arr).Elems())

	rec, ok := rt.Tame(ir.NewRecord(ir.P("a", ir.Int(1)), ir.P("toxic", toxic)))
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, ir.AsObject(rec).Keys())

	_, ok = rt.Tame(toxic)
	assert.False(t, ok, "unclassified functions have no counterpart")
}

func TestTame_SkipsReservedSlots(t *testing.T) {
	rt := newTestRuntime(t)
	v, ok := rt.Tame(ir.NewRecord(ir.P("a", ir.Int(1)), ir.P("hidden__", ir.Int(2))))
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, ir.AsObject(v).Keys())
}

func TestTame_ExophoricBecomesPseudoFunction(t *testing.T) {
	rt := newTestRuntime(t)
	getN := ir.NewFunction("getN", 0, func(self ir.Value, _ []ir.Value) (ir.Value, error) {
		v, _ := ir.AsObject(self).Own("n")
		return v, nil
	})
	require.NoError(t, rt.MarkExophoric(getN, "getN"))

	v, ok := rt.Tame(getN)
	require.True(t, ok)
	pseudo := ir.AsObject(v)
	require.NotNil(t, pseudo)
	assert.Equal(t, ir.KindRecord, pseudo.Kind())
	assert.True(t, pseudo.IsFrozen())
	name, _ := pseudo.Own("name")
	assert.Equal(t, ir.String("getN"), name)

	call, _ := pseudo.Own("call")
	got, err := rt.CallFunc(call, []ir.Value{ir.NewRecord(ir.P("n", ir.Int(9)))})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(9), got)

	apply, _ := pseudo.Own("apply")
	got, err = rt.CallFunc(apply, []ir.Value{ir.NewRecord(ir.P("n", ir.Int(4))), ir.NewArray()})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(4), got)

	bind, _ := pseudo.Own("bind")
	bound, err := rt.CallFunc(bind, []ir.Value{ir.NewRecord(ir.P("n", ir.Int(5)))})
	require.NoError(t, err)
	got, err = rt.CallFunc(bound, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(5), got)

	_, ok = rt.Untame(pseudo)
	assert.True(t, ok)
}

func TestTame_PseudoFunctionUntamesToExophoric(t *testing.T) {
	newExophoric := func(t *testing.T, rt *Runtime) *ir.Object {
		t.Helper()
		xo := ir.NewFunction("m", 0, func(self ir.Value, _ []ir.Value) (ir.Value, error) {
			return self, nil
		})
		require.NoError(t, rt.MarkExophoric(xo, "m"))
		return xo
	}

	t.Run("read first", func(t *testing.T) {
		rt := newTestRuntime(t)
		xo := newExophoric(t, rt)
		holder := ir.NewRecord(ir.P("m", xo))

		v, err := rt.ReadSlot(holder, "m")
		require.NoError(t, err)
		pseudo := ir.AsObject(v)
		require.NotNil(t, pseudo)

		back, ok := rt.Untame(pseudo)
		require.True(t, ok)
		assert.Same(t, xo, ir.AsObject(back))

		tamed, ok := rt.Tame(xo)
		require.True(t, ok)
		assert.Same(t, pseudo, ir.AsObject(tamed))
	})

	t.Run("untame before tame", func(t *testing.T) {
		rt := newTestRuntime(t)
		xo := newExophoric(t, rt)

		pseudo, err := rt.PseudoFunction(xo)
		require.NoError(t, err)
		back, ok := rt.Untame(pseudo)
		require.True(t, ok)
		assert.Same(t, xo, ir.AsObject(back))

		tamed, ok := rt.Tame(xo)
		require.True(t, ok)
		assert.Same(t, pseudo, ir.AsObject(tamed))
	})

	t.Run("tame first", func(t *testing.T) {
		rt := newTestRuntime(t)
		xo := newExophoric(t, rt)

		tamed, ok := rt.Tame(xo)
		require.True(t, ok)
		back, ok := rt.Untame(tamed)
		require.True(t, ok)
		assert.Same(t, xo, ir.AsObject(back))

		pseudo, err := rt.PseudoFunction(xo)
		require.NoError(t, err)
		assert.Same(t, ir.AsObject(tamed), pseudo)
	})
}

func TestTame_InnocentWrapperUntamesToHostFunction(t *testing.T) {
	rt := newTestRuntime(t)
	fn := ir.NewFunction("f", 0, func(ir.Value, []ir.Value) (ir.Value, error) {
		return ir.Int(1), nil
	})
	require.NoError(t, rt.MarkInnocent(fn, "f"))

	w, ok := rt.Tame(fn)
	require.True(t, ok)
	back, ok := rt.Untame(w)
	require.True(t, ok)
	assert.Same(t, fn, ir.AsObject(back))

	again, ok := rt.Tame(fn)
	require.True(t, ok)
	assert.Same(t, ir.AsObject(w), ir.AsObject(again))
}

func TestTame_InnocentWrapperConvertsArguments(t *testing.T) {
	rt := newTestRuntime(t)
	secret := ir.NewRecord(ir.P("k", ir.Int(1)))
	isSecret := ir.NewFunction("isSecret", 1, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		return ir.Bool(ir.AsObject(args[0]) == secret), nil
	})
	require.NoError(t, rt.MarkInnocent(isSecret, "isSecret"))

	tamedSecret, ok := rt.Tame(secret)
	require.True(t, ok)
	w, ok := rt.Tame(isSecret)
	require.True(t, ok)
	wrapper := ir.AsObject(w)
	assert.Equal(t, Plain, rt.ShapeOf(wrapper))

	got, err := rt.CallFunc(wrapper, []ir.Value{ir.Undefined{}, tamedSecret})
	require.NoError(t, err)
	assert.Equal(t, ir.Bool(true), got)
}

func TestTame_ConstructorInstancesTameToSelf(t *testing.T) {
	rt := newTestRuntime(t)
	ctor := ir.NewFunction("Thing", 0, func(ir.Value, []ir.Value) (ir.Value, error) { return nil, nil })
	require.NoError(t, rt.MarkConstructor(ctor, rt.ObjectCtor(), "Thing"))
	inst, err := rt.Construct(ctor, nil)
	require.NoError(t, err)

	v, ok := rt.Tame(inst)
	require.True(t, ok)
	assert.Same(t, ir.AsObject(inst), ir.AsObject(v))

	_, ok = rt.Tame(ctor.Prototype())
	assert.True(t, ok)
}

func TestTame_CustomHooksInherited(t *testing.T) {
	rt := newTestRuntime(t)
	token := ir.NewRecord(ir.P("token", ir.Bool(true)))
	base := ir.NewRecord()
	require.NoError(t, rt.SetTamingHooks(base, func(*ir.Object) (ir.Value, bool) { return token, true }, nil))
	child := ir.Beget(base)

	v, ok := rt.Tame(child)
	require.True(t, ok)
	assert.Same(t, token, ir.AsObject(v))

	back, ok := rt.Untame(token)
	require.True(t, ok)
	assert.Same(t, child, ir.AsObject(back))
}

func TestTame_HookRefusal(t *testing.T) {
	rt := newTestRuntime(t)
	base := ir.NewRecord()
	require.NoError(t, rt.SetTamingHooks(base, func(*ir.Object) (ir.Value, bool) { return nil, false }, nil))

	_, ok := rt.Tame(ir.Beget(base))
	assert.False(t, ok)
}

// ============================================================================
// TamesTo
// ============================================================================

func TestTamesTo_Exclusive(t *testing.T) {
	rt := newTestRuntime(t)
	a, b, c := ir.NewRecord(), ir.NewRecord(), ir.NewRecord()

	require.NoError(t, rt.TamesTo(a, b))
	require.NoError(t, rt.TamesTo(a, b), "same pair is a no-op")

	err := rt.TamesTo(a, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already tames to something")

	err = rt.TamesTo(c, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already untames to something")

	err = rt.TamesTo(b, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already tame")

	err = rt.TamesTo(c, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already feral")

	assert.True(t, IsConfigurationError(rt.TamesTo(ir.Int(1), a)))
	assert.True(t, IsConfigurationError(rt.TamesTo(a, ir.String("x"))))
}

func TestTamesToSelf(t *testing.T) {
	rt := newTestRuntime(t)
	r := ir.NewRecord(ir.P("mutable", ir.Int(1)))
	require.NoError(t, rt.TamesToSelf(r))

	v, ok := rt.Tame(r)
	require.True(t, ok)
	assert.Same(t, r, ir.AsObject(v))
}
