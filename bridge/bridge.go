// Package bridge drives foreign entry points that deliver one value through a
// callback, and turns what the callback received into an ordinary Go result.
//
// A bridged call proceeds in three steps:
//   - An empty Slot is registered under an opaque Env handle.
//   - The entry point runs with that Env and a trampoline. When the foreign
//     code calls the trampoline, the raw data is converted under recover and
//     the Outcome is written into the Slot.
//   - After the entry point returns, the Slot is inspected. A value or domain
//     error is returned; a captured panic is re-raised in the caller's
//     goroutine; an empty Slot is a protocol violation and panics.
//
// Panics never unwind through the entry point: they are recovered inside the
// trampoline and only re-raised once the foreign frames are gone.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/reglet-dev/clue-ffi/convert"
	"github.com/reglet-dev/clue-ffi/domain/errors"
	"github.com/reglet-dev/clue-ffi/internal/handle"
)

// Env is the opaque context handed to foreign code. It identifies one bridged
// call and carries no Go pointer.
type Env uintptr

// Callback receives one raw value on behalf of the call identified by env.
type Callback[Raw any] func(env Env, raw Raw)

// EntryPoint calls into foreign code, passing env and cb through. The foreign
// code is expected to invoke cb exactly once, synchronously, before returning.
type EntryPoint[Raw any] func(env Env, cb Callback[Raw])

// FallibleEntryPoint is an EntryPoint whose foreign call reports its own
// failure, independent of what the callback received.
type FallibleEntryPoint[Raw any] func(env Env, cb Callback[Raw]) error

// receiver is the Raw-only view of a sink, which is all the trampoline needs.
type receiver[Raw any] interface {
	receive(raw Raw)
}

// sink pairs a converter with the slot its outcome is written to.
type sink[Raw, T any] struct {
	conv       convert.Converter[Raw, T]
	slot       Slot[T]
	deliveries int
}

func (s *sink[Raw, T]) receive(raw Raw) {
	s.deliveries++
	if s.slot.IsSet() {
		return
	}
	// The slot was checked above, so Set cannot fail here.
	_ = s.slot.Set(s.convert(raw))
}

func (s *sink[Raw, T]) convert(raw Raw) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Interrupted[T](r, debug.Stack())
		}
	}()

	v, err := s.conv.Convert(raw)
	if err != nil {
		return Failed[T](err)
	}
	return Ok(v)
}

// Deliver hands raw to the call registered under env. It is the body of every
// trampoline, whatever the foreign runtime, and never panics. An unknown env
// is reported as a *errors.ProtocolViolationError.
func Deliver[Raw any](env Env, raw Raw) error {
	v, ok := handle.Value(uintptr(env))
	if !ok {
		return &errors.ProtocolViolationError{Reason: errors.ReasonUnknownEnv}
	}
	r, ok := v.(receiver[Raw])
	if !ok {
		return &errors.ProtocolViolationError{
			Reason: errors.ReasonUnknownEnv,
			Entry:  fmt.Sprintf("env %d (raw type %T)", env, raw),
		}
	}
	r.receive(raw)
	return nil
}

// Trampoline is the Callback passed to pure-Go entry points. Deliveries that
// cannot be routed are logged and dropped; the owning call then observes an
// empty slot.
func Trampoline[Raw any](env Env, raw Raw) {
	if err := Deliver(env, raw); err != nil {
		slog.Error("bridge: dropped callback delivery", "env", uint64(env), "error", err)
	}
}

// CallOutcome runs entry and returns the Outcome the callback produced,
// without re-raising a captured panic. A broken callback contract still
// panics with a *errors.ProtocolViolationError.
func CallOutcome[Raw, T any](conv convert.Converter[Raw, T], entry EntryPoint[Raw], opts ...Option) Outcome[T] {
	cfg := newConfig(opts)
	out, _ := run(cfg, conv, infallible(entry))
	return out
}

// Call runs entry and returns the converted value or the domain error. A
// panic captured during conversion is re-raised here with its original
// payload, unless WithInterruptPolicy(ErrorPolicy) is set. A broken callback
// contract panics with a *errors.ProtocolViolationError.
func Call[Raw, T any](conv convert.Converter[Raw, T], entry EntryPoint[Raw], opts ...Option) (T, error) {
	return CallFallible(conv, infallible(entry), opts...)
}

// CallFallible is Call for entry points whose foreign call can itself fail,
// such as a WebAssembly export that traps. If the callback never ran and the
// entry point failed, the failure is returned as a *errors.ForeignCallError
// instead of being treated as a protocol violation.
func CallFallible[Raw, T any](conv convert.Converter[Raw, T], entry FallibleEntryPoint[Raw], opts ...Option) (T, error) {
	cfg := newConfig(opts)
	out, foreignErr := run(cfg, conv, entry)

	var zero T
	if out.Kind() == KindInterrupted {
		if cfg.policy == ErrorPolicy {
			return zero, &errors.PanicError{Value: out.Payload(), Stack: out.Stack(), Entry: cfg.name}
		}
		panic(out.Payload())
	}
	if foreignErr != nil {
		return zero, foreignErr
	}
	return out.Unwrap()
}

func infallible[Raw any](entry EntryPoint[Raw]) FallibleEntryPoint[Raw] {
	return func(env Env, cb Callback[Raw]) error {
		entry(env, cb)
		return nil
	}
}

// run performs one bridged call. It returns the slot's outcome and, when the
// entry point reported a failure, a *errors.ForeignCallError.
func run[Raw, T any](cfg config, conv convert.Converter[Raw, T], entry FallibleEntryPoint[Raw]) (Outcome[T], error) {
	s := &sink[Raw, T]{conv: conv}
	h := handle.New(receiver[Raw](s))
	defer handle.Delete(h)

	entryErr := entry(Env(h), Trampoline[Raw])

	ctx := context.Background()
	if s.deliveries > 1 {
		violation := &errors.ProtocolViolationError{Reason: errors.ReasonInvokedTwice, Entry: cfg.name}
		cfg.logger.ErrorContext(ctx, "bridge: callback contract broken",
			"entry", cfg.name, "deliveries", s.deliveries, "error", violation)
		panic(violation)
	}

	var foreignErr error
	if entryErr != nil {
		foreignErr = &errors.ForeignCallError{Err: entryErr, Entry: cfg.name}
		cfg.logger.ErrorContext(ctx, "bridge: foreign call failed", "entry", cfg.name, "error", entryErr)
	}

	out, err := s.slot.Get()
	if err != nil {
		if foreignErr != nil {
			return out, foreignErr
		}
		violation := &errors.ProtocolViolationError{Reason: errors.ReasonNotInvoked, Entry: cfg.name}
		cfg.logger.ErrorContext(ctx, "bridge: callback contract broken", "entry", cfg.name, "error", violation)
		panic(violation)
	}

	switch out.Kind() {
	case KindInterrupted:
		cfg.logger.DebugContext(ctx, "bridge: panic captured during conversion",
			"entry", cfg.name, "payload", fmt.Sprint(out.Payload()), "stack", string(out.Stack()))
	case KindErr:
		cfg.logger.DebugContext(ctx, "bridge: conversion failed", "entry", cfg.name, "error", out.Err())
	}
	return out, foreignErr
}
