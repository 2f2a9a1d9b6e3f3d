// Package view provides a zero-copy, non-owning view over text handed across
// a foreign function boundary, and the conversions between views and Go strings.
//
// A StringView is only valid for the duration of the call that produced it.
// It must never be stored, and the bytes it references are claimed, not
// verified, to be UTF-8 until one of the decoding functions checks them.
package view

import (
	"fmt"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/reglet-dev/clue-ffi/domain/errors"
	"golang.org/x/text/encoding/unicode"
)

// StringView is a borrowed pointer and byte length. Its layout matches the
// C record { const char *s; size_t len; }.
type StringView struct {
	Data unsafe.Pointer
	Len  uintptr
}

// ToView builds a view over s without allocating. The view must not outlive s.
func ToView(s string) StringView {
	if len(s) == 0 {
		return StringView{}
	}
	return StringView{
		Data: unsafe.Pointer(unsafe.StringData(s)),
		Len:  uintptr(len(s)),
	}
}

// FromBytes builds a view over b without allocating. The view must not
// outlive b, and b must not be modified while the view is in use.
func FromBytes(b []byte) StringView {
	if len(b) == 0 {
		return StringView{}
	}
	return StringView{
		Data: unsafe.Pointer(unsafe.SliceData(b)),
		Len:  uintptr(len(b)),
	}
}

// Bytes returns the referenced bytes as a borrowed slice of exactly Len bytes.
// Panics if Data is nil and Len is non-zero.
func (v StringView) Bytes() []byte {
	if v.Len == 0 {
		return nil
	}
	if v.Data == nil {
		panic(fmt.Sprintf("view: invalid view - null pointer with non-zero length (%d)", v.Len))
	}
	//nolint:gosec // G103: the view is a borrowed pointer/length pair from the caller
	return unsafe.Slice((*byte)(v.Data), v.Len)
}

// IsEmpty reports whether the view references no bytes.
func (v StringView) IsEmpty() bool {
	return v.Len == 0
}

// Valid reports whether the referenced bytes are valid UTF-8.
func Valid(v StringView) bool {
	return utf8.Valid(v.Bytes())
}

// FromView interprets the referenced bytes as UTF-8 text. The returned string
// aliases the view's memory and is only valid as long as that memory is.
func FromView(v StringView) (string, error) {
	b := v.Bytes()
	if len(b) == 0 {
		return "", nil
	}
	if !utf8.Valid(b) {
		return "", errors.NewEncodingError(b, validUpTo(b))
	}
	return unsafe.String(unsafe.SliceData(b), len(b)), nil
}

// FromViewOwned interprets the referenced bytes as UTF-8 text and copies them
// into memory owned by the Go runtime.
func FromViewOwned(v StringView) (string, error) {
	s, err := FromView(v)
	if err != nil {
		return "", err
	}
	return strings.Clone(s), nil
}

// FromViewLossy interprets the referenced bytes as UTF-8 text, replacing each
// invalid byte with U+FFFD. It always succeeds and always returns owned memory.
// For valid input the result equals FromViewOwned.
func FromViewLossy(v StringView) string {
	b := v.Bytes()
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		// The UTF-8 decoder replaces rather than rejects, so this only
		// happens if the transformer itself misbehaves.
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}

// validUpTo returns the length of the longest valid UTF-8 prefix of b.
func validUpTo(b []byte) int {
	i := 0
	for i < len(b) {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return i
}
