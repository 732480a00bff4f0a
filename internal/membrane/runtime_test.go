package membrane

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
)

func TestNew_InstallsRootConstructors(t *testing.T) {
	rt := newTestRuntime(t)

	for _, ctor := range []*ir.Object{rt.ObjectCtor(), rt.ArrayCtor(), rt.ErrorCtor()} {
		assert.Equal(t, Constructor, rt.ShapeOf(ctor), ctor.String())
		assert.True(t, ctor.IsFrozen(), ctor.String())
	}
	assert.Nil(t, rt.SuperConstructor(rt.ObjectCtor()))
	assert.Same(t, rt.ObjectCtor(), rt.SuperConstructor(rt.ArrayCtor()))
}

func TestNew_FailingBaselineCheckRefusesToStart(t *testing.T) {
	_, err := New(
		WithLogger(newTestRuntime(t).Logger()),
		WithBaselineCheck(func(*Runtime) error { return errors.New("tampered") }),
	)
	require.Error(t, err)
	assert.Equal(t, ErrCodeBaseline, CodeOf(err))
	assert.Contains(t, err.Error(), "tampered")
}

func TestNew_BaselineChecksSeeWorkingRuntime(t *testing.T) {
	called := false
	rt := newTestRuntime(t, WithBaselineCheck(func(rt *Runtime) error {
		called = true
		if rt.CanRead(ir.NewRecord(ir.P("x__", ir.Int(1))), "x__") {
			return errors.New("reserved readable")
		}
		return nil
	}))
	assert.True(t, called)
	assert.NotNil(t, rt)
}

func TestNew_BaselineDoesNotReachObserver(t *testing.T) {
	log := &faultLog{}
	newTestRuntime(t, WithObserver(log))
	assert.Empty(t, log.faults)
}

func TestWithReservedSuffix_AddsToBase(t *testing.T) {
	rt := newTestRuntime(t, WithReservedSuffix("_internal"))
	r := ir.NewRecord(ir.P("a_internal", ir.Int(1)), ir.P("b__", ir.Int(2)), ir.P("c", ir.Int(3)))

	assert.False(t, rt.CanRead(r, "a_internal"))
	assert.False(t, rt.CanRead(r, "b__"))
	keys, err := rt.OwnKeys(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, keys)
}

type substituteKeeper struct {
	DenyKeeper
}

func (substituteKeeper) HandleRead(*ir.Object, string) (ir.Value, error) {
	return ir.String("redacted"), nil
}

func TestWithKeeper_OverridesSubset(t *testing.T) {
	rt := newTestRuntime(t, WithKeeper(substituteKeeper{}))
	r := ir.NewRecord(ir.P("x__", ir.Int(1)))

	v, err := rt.ReadSlot(r, "x__")
	require.NoError(t, err)
	assert.Equal(t, ir.String("redacted"), v)

	err = rt.WriteSlot(r, "y__", ir.Int(1))
	assert.True(t, IsNotSettable(err))
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(
			WithLogger(newTestRuntime(t).Logger()),
			WithBaselineCheck(func(*Runtime) error { return errors.New("no") }),
		)
	})
}
