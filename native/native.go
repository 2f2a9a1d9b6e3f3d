//go:build cgo

package native

/*
#include "clue.h"
*/
import "C"

import (
	"log/slog"
	"unsafe"

	"github.com/reglet-dev/clue-ffi/bridge"
	"github.com/reglet-dev/clue-ffi/view"
)

// Entry is a C function of type clue_entry.
type Entry struct {
	name string
	fn   C.clue_entry
}

// NewEntry wraps a C function pointer of type clue_entry, for example one
// resolved from a shared library. fn must stay valid while the Entry is used.
func NewEntry(name string, fn unsafe.Pointer) Entry {
	return Entry{name: name, fn: C.clue_entry(fn)}
}

// Name returns the label used in diagnostics.
func (e Entry) Name() string {
	return e.name
}

// Sample entry points compiled into this package.
var (
	// Color delivers "blue".
	Color = Entry{name: "clue_sample_color", fn: C.clue_entry(C.clue_sample_color)}

	// Empty delivers a null view of length zero.
	Empty = Entry{name: "clue_sample_empty", fn: C.clue_entry(C.clue_sample_empty)}

	// Invalid delivers bytes that are not UTF-8.
	Invalid = Entry{name: "clue_sample_invalid", fn: C.clue_entry(C.clue_sample_invalid)}

	// JSON delivers a JSON object describing a color.
	JSON = Entry{name: "clue_sample_json", fn: C.clue_entry(C.clue_sample_json)}

	// Silent returns without calling back.
	Silent = Entry{name: "clue_sample_silent", fn: C.clue_entry(C.clue_sample_silent)}

	// Twice calls back twice.
	Twice = Entry{name: "clue_sample_twice", fn: C.clue_entry(C.clue_sample_twice)}
)

// Samples lists the sample entry points by name.
func Samples() map[string]Entry {
	return map[string]Entry{
		Color.name:   Color,
		Empty.name:   Empty,
		Invalid.name: Invalid,
		JSON.name:    JSON,
		Silent.name:  Silent,
		Twice.name:   Twice,
	}
}

//export clueGoDeliverString
func clueGoDeliverString(ctx unsafe.Pointer, v C.clue_string_view) {
	env := bridge.Env(uintptr(ctx))
	raw := view.StringView{Data: unsafe.Pointer(v.s), Len: uintptr(v.len)}
	if err := bridge.Deliver(env, raw); err != nil {
		slog.Error("native: dropped string delivery", "env", uint64(env), "error", err)
	}
}

func invoke(entry Entry, env bridge.Env) {
	C.clue_invoke(entry.fn, C.uintptr_t(env))
}

func echo(env bridge.Env, s string) {
	v := view.ToView(s)
	C.clue_invoke_echo(C.uintptr_t(env), (*C.char)(v.Data), C.size_t(v.Len))
}
