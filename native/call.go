//go:build cgo

package native

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/reglet-dev/clue-ffi/bridge"
	"github.com/reglet-dev/clue-ffi/convert"
	"github.com/reglet-dev/clue-ffi/view"
)

// Call runs entry and converts the view it delivers with conv.
func Call[T any](entry Entry, conv convert.Converter[view.StringView, T], opts ...bridge.Option) (T, error) {
	opts = append([]bridge.Option{bridge.WithName(entry.name)}, opts...)
	return bridge.Call[view.StringView, T](conv, func(env bridge.Env, _ bridge.Callback[view.StringView]) {
		invoke(entry, env)
	}, opts...)
}

// GetString runs entry and returns the string it delivers.
func GetString(entry Entry, opts ...bridge.Option) (string, error) {
	return Call[string](entry, convert.String{}, opts...)
}

// Echo passes s to C as a borrowed view and returns what C hands back.
func Echo(s string, opts ...bridge.Option) (string, error) {
	opts = append([]bridge.Option{bridge.WithName("clue_sample_echo")}, opts...)
	return bridge.Call[view.StringView, string](convert.String{}, func(env bridge.Env, _ bridge.Callback[view.StringView]) {
		echo(env, s)
	}, opts...)
}

// Library is a set of named entry points linked into the binary.
type Library struct {
	entries map[string]Entry
}

// NewLibrary creates a Library from entries.
func NewLibrary(entries ...Entry) *Library {
	l := &Library{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		l.entries[e.name] = e
	}
	return l
}

// SampleLibrary returns the sample entry points as a Library.
func SampleLibrary() *Library {
	return NewLibrary(slices.Collect(maps.Values(Samples()))...)
}

// Exports returns the sorted entry point names.
func (l *Library) Exports() []string {
	return slices.Sorted(maps.Keys(l.entries))
}

// Invoke runs the entry point named export with a type-erased converter.
// Native calls cannot be cancelled, so ctx is only checked before the call.
func (l *Library) Invoke(ctx context.Context, export string, conv convert.Converter[view.StringView, any], opts ...bridge.Option) (any, error) {
	entry, ok := l.entries[export]
	if !ok {
		return nil, fmt.Errorf("entry point %q not found", export)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Call(entry, conv, opts...)
}
