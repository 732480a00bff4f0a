package module

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membrane/internal/ir"
)

func TestNormalHandler_SessionAndObserver(t *testing.T) {
	rt := newTestRuntime(t)
	log := &outcomeLog{}
	h := newTestHandler(rt, WithOutcomeObserver(log))
	assert.Equal(t, "s1", h.Session())

	u := returning(ir.Int(1))
	u.Meta.ID = "m1"
	_, err := NewLoader(rt, WithHandler(h)).LoadModule(u)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1/m1"}, log.entries)
	assert.True(t, log.last.Success)
}

func TestNormalHandler_DefaultSessionIsUUID(t *testing.T) {
	h := NewNormalHandler(newTestRuntime(t), WithHandlerLogger(discardLogger()))
	assert.Len(t, h.Session(), 36)
}

func TestNormalHandler_SetImports(t *testing.T) {
	h := newTestHandler(newTestRuntime(t))
	mine := ir.NewRecord()
	h.SetImports(mine)
	assert.Same(t, mine, h.Imports())
}

func TestNormalHandler_NoOutcomeYet(t *testing.T) {
	h := newTestHandler(newTestRuntime(t))
	_, ok := h.LastOutcome()
	assert.False(t, ok)
	assert.Equal(t, ir.Undefined{}, h.LastValue())
}

func TestHandleUncaughtException(t *testing.T) {
	rt := newTestRuntime(t)
	var buf bytes.Buffer
	h := newTestHandler(rt, WithHandlerLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	h.HandleUncaughtException(errors.New("bad"), ir.Undefined{}, "page.html", "12")

	outcome, ok := h.LastOutcome()
	require.True(t, ok)
	assert.False(t, outcome.Success)
	assert.Contains(t, buf.String(), "page.html:12: bad")
}

func TestHandleUncaughtException_OnErrorSuppresses(t *testing.T) {
	rt := newTestRuntime(t)
	var buf bytes.Buffer
	h := newTestHandler(rt, WithHandlerLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	var got []ir.Value
	onerror := ir.NewFunction("onerror", 3, func(_ ir.Value, args []ir.Value) (ir.Value, error) {
		got = args
		return ir.Bool(false), nil
	})
	require.NoError(t, rt.MarkPlain(onerror, "onerror"))

	h.HandleUncaughtException(errors.New("bad"), onerror, "page.html", "3")
	assert.Equal(t, []ir.Value{ir.String("bad"), ir.String("page.html"), ir.String("3")}, got)
	assert.NotContains(t, buf.String(), "page.html:3")

	buf.Reset()
	h.HandleUncaughtException(errors.New("quiet"), ir.Null{}, "p", "1")
	assert.NotContains(t, buf.String(), "p:1: quiet")
}
