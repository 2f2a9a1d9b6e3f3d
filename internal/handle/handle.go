// Package handle maps Go values to opaque integers that can be handed to
// foreign code in place of Go pointers, and resolved again when that code
// calls back.
package handle

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// table keeps every live value reachable so the GC cannot collect it while
// foreign code holds its handle. Zero is never issued.
var table = struct {
	values *xsync.MapOf[uintptr, any]
	next   atomic.Uintptr
}{
	values: xsync.NewMapOf[uintptr, any](),
}

// New registers v and returns its handle. Each call returns a distinct handle,
// even for the same value. The handle must be released with Delete.
func New(v any) uintptr {
	h := table.next.Add(1)
	if h == 0 {
		panic("handle: handles exhausted")
	}
	table.values.Store(h, v)
	return h
}

// Value returns the value registered under h.
func Value(h uintptr) (any, bool) {
	if h == 0 {
		return nil, false
	}
	return table.values.Load(h)
}

// Delete releases h. Deleting an unknown handle is a no-op.
func Delete(h uintptr) {
	table.values.Delete(h)
}

// Live returns the number of handles not yet deleted.
func Live() int {
	return table.values.Size()
}
