// Package errors provides the error taxonomy of the conversion boundary.
// All error types support error unwrapping via errors.As() and errors.Is().
//
// Three classes of failure exist. Domain errors (EncodingError, DecodeError,
// ValidationError, BoundsError) are ordinary values returned to the caller.
// A PanicError wraps an interruption captured inside a callback when the
// caller asked for it to be surfaced as an error instead of re-raised.
// A ProtocolViolationError means the foreign side broke the callback contract
// and is raised with panic, never returned.
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/clue-ffi/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is implemented by error types that can describe themselves
// as a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// Sentinel errors for the output slot.
var (
	// ErrSlotAlreadySet is returned when a slot is written a second time.
	ErrSlotAlreadySet = stdErrors.New("output slot already set")

	// ErrSlotUnset is returned when a slot is read before it was written.
	ErrSlotUnset = stdErrors.New("output slot unset")
)

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// EncodingError reports bytes that are not valid UTF-8 text.
type EncodingError struct {
	// Preview holds up to the first 32 bytes of the offending input.
	Preview []byte

	// ValidUpTo is the length of the longest valid UTF-8 prefix.
	ValidUpTo int

	// Len is the total length of the input.
	Len int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid utf-8 sequence of %d bytes from index %d: %x", e.Len, e.ValidUpTo, e.Preview)
}

// ToErrorDetail implements DetailedError.
func (e *EncodingError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "encoding",
		Code:    "invalid_utf8",
		Details: map[string]any{"valid_up_to": e.ValidUpTo, "len": e.Len},
	}
}

// NewEncodingError builds an EncodingError for data whose first invalid byte
// is at validUpTo.
func NewEncodingError(data []byte, validUpTo int) *EncodingError {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &EncodingError{
		Preview:   append([]byte(nil), preview...),
		ValidUpTo: validUpTo,
		Len:       len(data),
	}
}

// DecodeError reports structured data that could not be decoded into its
// target type.
type DecodeError struct {
	Err    error
	Target string
	Format string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode into %s failed: %v", e.Format, e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "decode", Code: e.Format}
}

// ValidationError reports a decoded value that failed struct validation.
type ValidationError struct {
	Err    error
	Target string
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("validation of %s failed for fields %v: %v", e.Target, e.Fields, e.Err)
	}
	return fmt.Sprintf("validation of %s failed: %v", e.Target, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ValidationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "validation",
		Code:    e.Target,
		Details: map[string]any{"fields": e.Fields},
	}
}

// BoundsError reports a view whose range falls outside the memory it claims
// to reference, or exceeds a configured limit.
type BoundsError struct {
	Ptr   uint32
	Len   uint32
	Limit uint32
}

func (e *BoundsError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("view of %d bytes at 0x%x exceeds limit of %d bytes", e.Len, e.Ptr, e.Limit)
	}
	return fmt.Sprintf("view of %d bytes at 0x%x is out of range", e.Len, e.Ptr)
}

// ToErrorDetail implements DetailedError.
func (e *BoundsError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "bounds", Code: "view_range"}
}

// ViolationReason identifies how the foreign side broke the callback contract.
type ViolationReason string

const (
	// ReasonNotInvoked means the entry point returned without calling back.
	ReasonNotInvoked ViolationReason = "not_invoked"
	// ReasonInvokedTwice means the callback ran more than once for one call.
	ReasonInvokedTwice ViolationReason = "invoked_twice"
	// ReasonUnknownEnv means the callback received a context it was never given.
	ReasonUnknownEnv ViolationReason = "unknown_env"
)

// ProtocolViolationError is the panic value raised when the foreign code
// breaks the callback contract. It is never returned as an ordinary error.
type ProtocolViolationError struct {
	Reason ViolationReason
	Entry  string
}

func (e *ProtocolViolationError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonNotInvoked:
		msg = "the foreign code failed to set a value"
	case ReasonInvokedTwice:
		msg = "the foreign code invoked the callback more than once"
	case ReasonUnknownEnv:
		msg = "the foreign code passed an unknown context to the callback"
	default:
		msg = "the foreign code broke the callback contract"
	}
	if e.Entry != "" {
		return fmt.Sprintf("protocol violation in %s: %s", e.Entry, msg)
	}
	return "protocol violation: " + msg
}

// ToErrorDetail implements DetailedError.
func (e *ProtocolViolationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "protocol", Code: string(e.Reason), IsFatal: true}
}

// PanicError carries an interruption captured inside a callback. It is only
// produced when the caller opts out of re-raising.
type PanicError struct {
	// Value is the original panic payload, unmodified.
	Value any
	Stack []byte
	Entry string
}

func (e *PanicError) Error() string {
	var msg string
	switch v := e.Value.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprintf("%v", v)
	}
	if e.Entry != "" {
		return fmt.Sprintf("panic during conversion in %s: %s", e.Entry, msg)
	}
	return "panic during conversion: " + msg
}

// Unwrap exposes the payload when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ToErrorDetail implements DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "panic", Code: "recovered", Stack: e.Stack}
}

// ForeignCallError reports a failure of the foreign call itself, such as a
// WebAssembly trap, that prevented the callback from running.
type ForeignCallError struct {
	Err   error
	Entry string
}

func (e *ForeignCallError) Error() string {
	return fmt.Sprintf("foreign call %s failed: %v", e.Entry, e.Err)
}

func (e *ForeignCallError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ForeignCallError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "foreign", Code: e.Entry}
}
