// Package errs defines the three error kinds from the error-handling
// design: invalid-input, malformed-iso, and internal. All are exposed as
// a single base kind so callers can match broadly (errors.Is(err,
// errs.ErrBase)) or narrowly (errors.Is(err, errs.ErrMalformedISO)).
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the three error categories.
type Kind int

const (
	InvalidInput Kind = iota
	MalformedISO
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid-input"
	case MalformedISO:
		return "malformed-iso"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// ErrBase is the root sentinel every *Error matches with errors.Is.
var ErrBase = errors.New("voliso error")

// Kind-level sentinels so callers can do errors.Is(err, errs.ErrMalformedISO).
var (
	ErrInvalidInput = fmt.Errorf("%w: invalid-input", ErrBase)
	ErrMalformedISO = fmt.Errorf("%w: malformed-iso", ErrBase)
	ErrInternal     = fmt.Errorf("%w: internal", ErrBase)
)

// Error is the concrete error type produced by this module. Block/Offset
// are only meaningful for MalformedISO errors raised while parsing an
// on-disk structure.
type Error struct {
	Kind    Kind
	Message string
	Block   int64
	Offset  int64
	Err     error
}

func (e *Error) Error() string {
	if e.Block != 0 || e.Offset != 0 {
		return fmt.Sprintf("%s: %s (block %d, offset %d)", e.Kind, e.Message, e.Block, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Kind {
	case InvalidInput:
		return ErrInvalidInput
	case MalformedISO:
		return ErrMalformedISO
	default:
		return ErrInternal
	}
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrBase:
		return true
	case ErrInvalidInput:
		return e.Kind == InvalidInput
	case ErrMalformedISO:
		return e.Kind == MalformedISO
	case ErrInternal:
		return e.Kind == Internal
	}
	return false
}

// InvalidInputf builds an invalid-input error.
func InvalidInputf(format string, a ...interface{}) error {
	return &Error{Kind: InvalidInput, Message: fmt.Sprintf(format, a...)}
}

// Malformedf builds a malformed-iso error carrying a block/offset location.
func Malformedf(block, offset int64, format string, a ...interface{}) error {
	return &Error{Kind: MalformedISO, Message: fmt.Sprintf(format, a...), Block: block, Offset: offset}
}

// MalformedWrap wraps an underlying decode error as malformed-iso.
func MalformedWrap(block, offset int64, err error, format string, a ...interface{}) error {
	return &Error{Kind: MalformedISO, Message: fmt.Sprintf(format, a...), Block: block, Offset: offset, Err: err}
}

// Internalf builds an internal invariant-violation error.
func Internalf(format string, a ...interface{}) error {
	return &Error{Kind: Internal, Message: fmt.Sprintf(format, a...)}
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
