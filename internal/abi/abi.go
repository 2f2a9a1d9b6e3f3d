// Package abi provides the packed pointer/length encoding used to pass string
// views across the WebAssembly boundary as a single i64.
package abi

import "fmt"

// PtrHighBits is the shift applied to the pointer half of a packed value.
const PtrHighBits = 32

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
// Panics if ptr is 0 and length > 0, indicating an invalid state.
func PackPtrLen(ptr, length uint32) uint64 {
	if ptr == 0 && length > 0 {
		panic(fmt.Sprintf("abi: invalid pack - null pointer (0x0) with non-zero length (%d)", length))
	}
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its original pointer and length.
// Unlike PackPtrLen it does not panic: packed values arrive from foreign code,
// so a null pointer with a non-zero length is reported through ok.
func UnpackPtrLen(packed uint64) (ptr, length uint32, ok bool) {
	ptr = uint32(packed >> PtrHighBits) //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed)              //nolint:gosec // G115: Packed format stores 32-bit values
	if ptr == 0 && length > 0 {
		return ptr, length, false
	}
	return ptr, length, true
}

// InRange reports whether [ptr, ptr+length) fits in a memory of size bytes.
func InRange(ptr, length, size uint32) bool {
	end := uint64(ptr) + uint64(length)
	return end <= uint64(size)
}
