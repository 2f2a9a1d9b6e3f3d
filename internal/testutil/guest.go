// Package testutil builds the WebAssembly guest used by tests across the
// module, and shared assertions on bridged calls.
package testutil

import (
	"github.com/reglet-dev/clue-ffi/internal/abi"
)

// Guest memory layout.
const (
	ColorPtr   = 16
	InvalidPtr = 32
	JSONPtr    = 64
)

// Data placed in guest memory.
var (
	ColorData   = []byte("blue")
	InvalidData = []byte{'a', 'b', 0xff, 'c'}
	JSONData    = []byte(`{"name":"blue","hex":"#0000ff"}`)
)

// DeliverStringName is the host function the guest imports.
const DeliverStringName = "deliver_string"

const (
	opUnreachable = 0x00
	opEnd         = 0x0b
	opCall        = 0x10
	opLocalGet    = 0x20
	opI32Const    = 0x41
	opI64Const    = 0x42

	typeFunc = 0x60
	typeI32  = 0x7f
	typeI64  = 0x7e

	kindFunc   = 0x00
	kindMemory = 0x02
)

// Type indices in the test module.
const (
	typeDeliver = iota // (i64, i64) -> ()
	typeEntry          // (i64) -> ()
	typeVersion        // () -> i32
)

type guestFunc struct {
	name string
	typ  byte
	code []byte
}

// deliver calls the imported deliver_string (function 0) with the entry's
// env and a view of length bytes at ptr.
func deliver(ptr, length uint32) []byte {
	code := []byte{opLocalGet, 0x00, opI64Const}
	code = append(code, sleb128(int64(packed(ptr, length)))...)
	return append(code, opCall, 0x00)
}

// packed encodes ptr/len without the null pointer guard, so the test module
// can deliver malformed views.
func packed(ptr, length uint32) uint64 {
	if ptr == 0 {
		return uint64(length)
	}
	return abi.PackPtrLen(ptr, length)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// guestFuncs are the test module's functions, in function index order after
// the import.
var guestFuncs = []guestFunc{
	{name: "clue_color", typ: typeEntry, code: deliver(ColorPtr, uint32(len(ColorData)))},
	{name: "clue_empty", typ: typeEntry, code: deliver(ColorPtr, 0)},
	{name: "clue_invalid", typ: typeEntry, code: deliver(InvalidPtr, uint32(len(InvalidData)))},
	{name: "clue_json", typ: typeEntry, code: deliver(JSONPtr, uint32(len(JSONData)))},
	{name: "clue_null", typ: typeEntry, code: deliver(0, 4)},
	{name: "clue_oob", typ: typeEntry, code: deliver(65534, 4)},
	{name: "clue_silent", typ: typeEntry},
	{name: "clue_stray", typ: typeEntry, code: concat(
		[]byte{opI64Const, 0x00, opI64Const},
		sleb128(int64(packed(ColorPtr, uint32(len(ColorData))))),
		[]byte{opCall, 0x00},
	)},
	{name: "clue_trap", typ: typeEntry, code: []byte{opUnreachable}},
	{name: "clue_trap_after", typ: typeEntry, code: concat(
		deliver(ColorPtr, uint32(len(ColorData))),
		[]byte{opUnreachable},
	)},
	{name: "clue_twice", typ: typeEntry, code: concat(
		deliver(ColorPtr, uint32(len(ColorData))),
		deliver(InvalidPtr, uint32(len(InvalidData))),
	)},
	{name: "version", typ: typeVersion, code: []byte{opI32Const, 0x01}},
}

// GuestExports returns the names of the guest's entry points, sorted.
func GuestExports() []string {
	var names []string
	for _, f := range guestFuncs {
		if f.typ == typeEntry {
			names = append(names, f.name)
		}
	}
	return names
}

// GuestModule assembles a WebAssembly binary importing deliver_string from
// hostModule, exporting guestFuncs and one page of memory holding the test data.
func GuestModule(hostModule string) []byte {
	types := vec(
		[]byte{typeFunc, 0x02, typeI64, typeI64, 0x00},
		[]byte{typeFunc, 0x01, typeI64, 0x00},
		[]byte{typeFunc, 0x00, 0x01, typeI32},
	)

	imports := vec(concat(wasmName(hostModule), wasmName(DeliverStringName), []byte{kindFunc, typeDeliver}))

	var funcTypes, exports, bodies [][]byte
	for i, f := range guestFuncs {
		funcTypes = append(funcTypes, []byte{f.typ})
		exports = append(exports, concat(wasmName(f.name), []byte{kindFunc}, uleb128(uint64(i+1))))
		body := concat([]byte{0x00}, f.code, []byte{opEnd})
		bodies = append(bodies, concat(uleb128(uint64(len(body))), body))
	}
	exports = append(exports, concat(wasmName("memory"), []byte{kindMemory, 0x00}))

	memory := vec([]byte{0x00, 0x01})

	data := vec(
		segment(ColorPtr, ColorData),
		segment(InvalidPtr, InvalidData),
		segment(JSONPtr, JSONData),
	)

	return concat(
		[]byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00},
		section(1, types),
		section(2, imports),
		section(3, vec(funcTypes...)),
		section(5, memory),
		section(7, vec(exports...)),
		section(10, vec(bodies...)),
		section(11, data),
	)
}

func segment(offset int64, b []byte) []byte {
	return concat(
		[]byte{0x00, opI32Const}, sleb128(offset), []byte{opEnd},
		uleb128(uint64(len(b))), b,
	)
}

func section(id byte, content []byte) []byte {
	return concat([]byte{id}, uleb128(uint64(len(content))), content)
}

func vec(items ...[]byte) []byte {
	return concat(uleb128(uint64(len(items))), concat(items...))
}

func wasmName(s string) []byte {
	return concat(uleb128(uint64(len(s))), []byte(s))
}

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb128(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
