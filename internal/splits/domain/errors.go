package splits

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingPayments is returned when a run is started without payment rows.
	ErrMissingPayments = errors.New("splits: missing payment rows")
	// ErrMissingFees is returned when a run is started without fee rows.
	ErrMissingFees = errors.New("splits: missing fee rows")
	// ErrNoResolvableBills is returned when no row carries a bill id.
	ErrNoResolvableBills = errors.New("splits: no rows with a resolvable bill id")
	// ErrInvalidSignature is returned when an inbound signature does not match.
	ErrInvalidSignature = errors.New("splits: invalid signature")
	// ErrReportNotFound is returned when no stored report exists.
	ErrReportNotFound = errors.New("splits: report not found")
)

// ErrorKind is the machine-readable class of a pipeline failure.
type ErrorKind string

const (
	KindInvalidInput  ErrorKind = "invalid_input"
	KindMissingInput  ErrorKind = "missing_input"
	KindInvalidPolicy ErrorKind = "invalid_policy"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindNotFound      ErrorKind = "not_found"
	KindRenderFailed  ErrorKind = "render_failed"
	KindUpstream      ErrorKind = "upstream"
	KindInternal      ErrorKind = "internal"
)

// Error is a structured failure surfaced to callers of the pipeline.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError wraps err with a kind and a human-readable message.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf reports the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) && target.Message != "" {
		return target.Message
	}
	return err.Error()
}
