// Package convert defines how Go values are built from data a foreign library
// delivers through a callback.
//
// A target type opts in by having a Converter whose Raw parameter is the shape
// the foreign callback delivers and whose Convert method builds the value.
// Conversion is bound statically through type parameters; there is no
// registry. A Converter reports bad input by returning an error; a panic
// inside Convert is treated as an interruption by the bridge, not as bad input.
package convert

import (
	"github.com/reglet-dev/clue-ffi/view"
)

// Converter builds a T from one instance of foreign-supplied raw data.
// Raw must stay meaningful only for the duration of Convert: implementations
// copy anything they keep.
type Converter[Raw, T any] interface {
	Convert(raw Raw) (T, error)
}

// ConverterFunc adapts a plain function to the Converter interface.
type ConverterFunc[Raw, T any] func(raw Raw) (T, error)

// Convert calls f(raw).
func (f ConverterFunc[Raw, T]) Convert(raw Raw) (T, error) {
	return f(raw)
}

// Any erases the target type of c, for callers that pick a converter at run
// time. A failed conversion yields a nil value.
func Any[Raw, T any](c Converter[Raw, T]) Converter[Raw, any] {
	return ConverterFunc[Raw, any](func(raw Raw) (any, error) {
		v, err := c.Convert(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// String converts a StringView into an owned Go string. Invalid UTF-8 yields
// an *errors.EncodingError.
type String struct{}

// Convert implements Converter.
func (String) Convert(raw view.StringView) (string, error) {
	return view.FromViewOwned(raw)
}

// LossyString converts a StringView into an owned Go string, replacing
// invalid UTF-8 with U+FFFD. It never fails, so it also hides upstream
// encoding defects; use it only where the foreign side is not trusted to
// honor its UTF-8 contract.
type LossyString struct{}

// Convert implements Converter.
func (LossyString) Convert(raw view.StringView) (string, error) {
	return view.FromViewLossy(raw), nil
}

// Bytes copies the referenced bytes without interpreting them.
type Bytes struct{}

// Convert implements Converter.
func (Bytes) Convert(raw view.StringView) ([]byte, error) {
	b := raw.Bytes()
	if b == nil {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

var (
	_ Converter[view.StringView, string] = String{}
	_ Converter[view.StringView, string] = LossyString{}
	_ Converter[view.StringView, []byte] = Bytes{}
)
