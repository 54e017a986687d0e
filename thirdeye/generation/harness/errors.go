package harness

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindRateLimited    Kind = "rate_limited"
	KindTimeout        Kind = "timeout"
	KindInvalidRequest Kind = "invalid_request"
	KindInvalidInput   Kind = "invalid_input"
	KindUpstream       Kind = "upstream"
	KindMalformed      Kind = "malformed"
)

// Retryable reports whether a failure of this kind may succeed on another attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindUpstream, KindMalformed:
		return true
	default:
		return false
	}
}

// BackendError is returned by providers and by the Client once retries are
// exhausted.
type BackendError struct {
	Op     string // "generate" | "embed"
	Kind   Kind
	Status int // HTTP status when known
	Err    error
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrRateLimited    = &BackendError{Kind: KindRateLimited}
	ErrTimeout        = &BackendError{Kind: KindTimeout}
	ErrInvalidRequest = &BackendError{Kind: KindInvalidRequest}
	ErrInvalidInput   = &BackendError{Kind: KindInvalidInput}
	ErrUpstream       = &BackendError{Kind: KindUpstream}
	ErrMalformed      = &BackendError{Kind: KindMalformed}
)

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is matches another BackendError of the same kind. An empty Op on the target
// matches any operation.
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf extracts the failure kind from err. Errors that are not backend
// errors count as upstream failures, except context errors which are
// reported as a zero Kind.
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ""
	}
	return KindUpstream
}

// NewBackendError builds a BackendError for op.
func NewBackendError(op string, kind Kind, status int, err error) *BackendError {
	return &BackendError{Op: op, Kind: kind, Status: status, Err: err}
}
