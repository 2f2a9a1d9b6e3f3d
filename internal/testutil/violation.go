package testutil

import (
	"testing"

	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/stretchr/testify/require"
)

// ProtocolViolation runs fn and returns the violation it panicked with. The
// test fails if fn returns or panics with anything else.
func ProtocolViolation(t *testing.T, fn func()) (violation *errors.ProtocolViolationError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		violation, ok = r.(*errors.ProtocolViolationError)
		require.True(t, ok, "unexpected panic value %#v", r)
	}()
	fn()
	return nil
}
