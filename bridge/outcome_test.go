package bridge

import (
	"fmt"
	"testing"

	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_SetOnce(t *testing.T) {
	var s Slot[string]
	assert.False(t, s.IsSet())

	_, err := s.Get()
	assert.ErrorIs(t, err, errors.ErrSlotUnset)

	require.NoError(t, s.Set(Ok("blue")))
	assert.True(t, s.IsSet())

	assert.ErrorIs(t, s.Set(Ok("green")), errors.ErrSlotAlreadySet)

	out, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "blue", out.Value(), "the first write must win")
}

func TestOutcome_Variants(t *testing.T) {
	domainErr := fmt.Errorf("bad input")

	ok := Ok(7)
	assert.Equal(t, KindOk, ok.Kind())
	v, err := ok.Unwrap()
	assert.NoError(t, err)
	assert.Equal(t, 7, v)

	failed := Failed[int](domainErr)
	assert.Equal(t, KindErr, failed.Kind())
	assert.Zero(t, failed.Value())
	_, err = failed.Unwrap()
	assert.Same(t, domainErr, err)

	interrupted := Interrupted[int]("boom", []byte("stack"))
	assert.Equal(t, KindInterrupted, interrupted.Kind())
	assert.Equal(t, "boom", interrupted.Payload())
	assert.Nil(t, interrupted.Err())
	assert.PanicsWithValue(t, "boom", func() {
		_, _ = interrupted.Unwrap()
	})
}

func TestOutcome_ZeroIsUnset(t *testing.T) {
	var out Outcome[string]
	assert.Equal(t, "unset", out.Kind().String())
	assert.PanicsWithError(t, errors.ErrSlotUnset.Error(), func() {
		_, _ = out.Unwrap()
	})
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "ok", KindOk.String())
	assert.Equal(t, "err", KindErr.String())
	assert.Equal(t, "interrupted", KindInterrupted.String())
}
