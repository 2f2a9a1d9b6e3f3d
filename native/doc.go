// Package native binds C entry points that deliver text through a
// clue_string_callback, using cgo.
//
// The C side sees only the types in clue.h: an entry point receives an opaque
// void* ctx and a callback, and must call the callback exactly once with
// ctx and a clue_string_view before returning. The ctx is a bridge handle,
// never a Go pointer, so C code may pass it around freely for the duration
// of the call.
//
// The package is empty when cgo is disabled.
package native
