package bridge

import (
	"github.com/reglet-dev/clue-ffi/domain/errors"
)

// Kind identifies which variant an Outcome holds.
type Kind uint8

const (
	// KindOk holds a converted value.
	KindOk Kind = iota + 1
	// KindErr holds a domain conversion error.
	KindErr
	// KindInterrupted holds a panic payload captured during conversion.
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindErr:
		return "err"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unset"
	}
}

// Outcome is the result of one conversion: exactly one of a value, a domain
// error, or a captured panic payload.
type Outcome[T any] struct {
	value   T
	err     error
	payload any
	stack   []byte
	kind    Kind
}

// Ok returns an Outcome holding v.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{kind: KindOk, value: v}
}

// Failed returns an Outcome holding the domain error err.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{kind: KindErr, err: err}
}

// Interrupted returns an Outcome holding a recovered panic payload and the
// stack captured where it was recovered.
func Interrupted[T any](payload any, stack []byte) Outcome[T] {
	return Outcome[T]{kind: KindInterrupted, payload: payload, stack: stack}
}

// Kind reports which variant o holds. The zero Outcome reports 0 ("unset").
func (o Outcome[T]) Kind() Kind {
	return o.kind
}

// Value returns the converted value, or the zero T for other variants.
func (o Outcome[T]) Value() T {
	return o.value
}

// Err returns the domain error, or nil for other variants.
func (o Outcome[T]) Err() error {
	return o.err
}

// Payload returns the captured panic payload, or nil for other variants.
func (o Outcome[T]) Payload() any {
	return o.payload
}

// Stack returns the stack captured with an interruption.
func (o Outcome[T]) Stack() []byte {
	return o.stack
}

// Unwrap returns the value or domain error. An interrupted outcome is
// re-raised with its original payload.
func (o Outcome[T]) Unwrap() (T, error) {
	switch o.kind {
	case KindOk:
		return o.value, nil
	case KindErr:
		var zero T
		return zero, o.err
	case KindInterrupted:
		panic(o.payload)
	default:
		panic(errors.ErrSlotUnset)
	}
}

// Slot is a single-assignment cell holding an Outcome. It has no locking:
// the bridge and the callback never touch it at the same time.
type Slot[T any] struct {
	outcome Outcome[T]
	set     bool
}

// Set stores o. A second call leaves the first outcome in place and returns
// errors.ErrSlotAlreadySet.
func (s *Slot[T]) Set(o Outcome[T]) error {
	if s.set {
		return errors.ErrSlotAlreadySet
	}
	s.outcome = o
	s.set = true
	return nil
}

// Get returns the stored outcome, or errors.ErrSlotUnset.
func (s *Slot[T]) Get() (Outcome[T], error) {
	if !s.set {
		return Outcome[T]{}, errors.ErrSlotUnset
	}
	return s.outcome, nil
}

// IsSet reports whether the slot holds an outcome.
func (s *Slot[T]) IsSet() bool {
	return s.set
}
