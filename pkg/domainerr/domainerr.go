// Package domainerr defines the typed failures reported by the cash engine.
//
// Every failure carries a Code. Sentinel values exist for each code so callers
// can match with errors.Is regardless of the field or message attached:
//
//	if errors.Is(err, domainerr.ErrNoExactAllocation) { ... }
package domainerr

import (
	"errors"
	"fmt"
)

// Code identifies a class of engine failure.
type Code string

const (
	// CodeInvalidDenomination indicates a key outside the denomination catalog.
	CodeInvalidDenomination Code = "INVALID_DENOMINATION"
	// CodeNegativeCount indicates a negative item count or value.
	CodeNegativeCount Code = "NEGATIVE_COUNT"
	// CodeInvalidInput indicates a missing, non-numeric or out-of-range field.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeInsufficientFunds indicates the available inventory is worth less than the target.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	// CodeInsufficientCombinedFunds indicates safe and till together cannot reach both targets.
	CodeInsufficientCombinedFunds Code = "INSUFFICIENT_COMBINED_FUNDS"
	// CodeNoExactAllocation indicates the greedy rule cannot land exactly on the target.
	CodeNoExactAllocation Code = "NO_EXACT_ALLOCATION"
	// CodeRecordSettled indicates a mutation was attempted on a settled record.
	CodeRecordSettled Code = "RECORD_SETTLED"
	// CodeIncompleteData indicates settlement was attempted before all float sections were counted.
	CodeIncompleteData Code = "INCOMPLETE_DATA"
)

// Sentinels for errors.Is matching.
var (
	ErrInvalidDenomination       = &Error{Code: CodeInvalidDenomination}
	ErrNegativeCount             = &Error{Code: CodeNegativeCount}
	ErrInvalidInput              = &Error{Code: CodeInvalidInput}
	ErrInsufficientFunds         = &Error{Code: CodeInsufficientFunds}
	ErrInsufficientCombinedFunds = &Error{Code: CodeInsufficientCombinedFunds}
	ErrNoExactAllocation         = &Error{Code: CodeNoExactAllocation}
	ErrRecordSettled             = &Error{Code: CodeRecordSettled}
	ErrIncompleteData            = &Error{Code: CodeIncompleteData}
)

// Error is a structured engine failure.
type Error struct {
	Code    Code
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with code, field and message.
func New(code Code, field, message string) error {
	return &Error{Code: code, Field: field, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, field, format string, args ...any) error {
	return &Error{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an existing error. The cause stays reachable
// through errors.Is and errors.As.
func Wrap(code Code, field string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Field: field, Message: string(code), Err: err}
}

// CodeOf returns the code of the first *Error in the chain, or "" when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
