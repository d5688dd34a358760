package allocation

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by stores and reference data providers.  The
// orchestrator translates them into typed *Error values; callers outside
// this package should inspect the Kind instead.
var (
	ErrNotFound          = errors.New("not found")
	ErrNoSeats           = errors.New("no seats available")
	ErrSequenceExhausted = errors.New("sequence exhausted")
	ErrAlreadyAllocated  = errors.New("applicant already allocated")
	ErrConflict          = errors.New("concurrent update conflict")
)

// Kind classifies allocation failures for callers.
type Kind string

const (
	KindValidation            Kind = "ValidationError"
	KindLookupNotFound        Kind = "LookupNotFound"
	KindInvalidConcessionTier Kind = "InvalidConcessionTier"
	KindNoSeatsAvailable      Kind = "NoSeatsAvailable"
	KindSequenceExhausted     Kind = "SequenceExhausted"
	KindConcurrencyConflict   Kind = "ConcurrencyConflict"
	KindAlreadyAllocated      Kind = "AlreadyAllocated"
)

// Error is the error returned by the allocation engine.  Err holds the
// underlying cause when there is one.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or "" when err is not an allocation
// error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// classify maps a store sentinel to an allocation error.  Errors that are
// already typed pass through; unknown errors are returned unchanged.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return wrapError(KindLookupNotFound, err, "%s not found", what)
	case errors.Is(err, ErrNoSeats):
		return wrapError(KindNoSeatsAvailable, err, "no seats left for %s", what)
	case errors.Is(err, ErrSequenceExhausted):
		return wrapError(KindSequenceExhausted, err, "%s sequence exhausted", what)
	case errors.Is(err, ErrAlreadyAllocated):
		return wrapError(KindAlreadyAllocated, err, "%s already has a seat", what)
	case errors.Is(err, ErrConflict):
		return wrapError(KindConcurrencyConflict, err, "concurrent update on %s", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
