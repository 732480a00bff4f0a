package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
)

func TestSealerUnsealer_RoundTrip(t *testing.T) {
	k := newTestKit(t)
	su := NewSealerUnsealer(k.Runtime())
	secret := ir.NewRecord(ir.P("k", ir.String("v")))

	box := su.Seal(secret)
	assert.True(t, box.IsFrozen())
	assert.Empty(t, box.Keys())

	v, err := su.Unseal(box)
	require.NoError(t, err)
	assert.Same(t, secret, ir.AsObject(v))
}

func TestSealerUnsealer_ForeignBox(t *testing.T) {
	k := newTestKit(t)
	a := NewSealerUnsealer(k.Runtime())
	b := NewSealerUnsealer(k.Runtime())
	box := a.Seal(ir.Int(1))

	_, ok := b.OptUnseal(box)
	assert.False(t, ok)
	_, err := b.Unseal(box)
	assert.Equal(t, ErrCodeBadBox, CodeOf(err))
	_, ok = a.OptUnseal(ir.Int(1))
	assert.False(t, ok)
}

func TestSealerUnsealer_GuestObject(t *testing.T) {
	k := newTestKit(t)
	rt := k.Runtime()
	obj := NewSealerUnsealer(rt).Object()

	box, err := rt.InvokeSlot(obj, "seal", []ir.Value{ir.String("hidden")})
	require.NoError(t, err)

	got, err := rt.InvokeSlot(obj, "optUnseal", []ir.Value{box})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.String("hidden")}, ir.AsObject(got).Elems())

	got, err = rt.InvokeSlot(obj, "optUnseal", []ir.Value{ir.NewRecord()})
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, got)
}
