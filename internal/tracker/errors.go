package tracker

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by tracker calls.
//
// Every failure returned by Client is an *Error whose Kind matches exactly
// one of these sentinels, so callers can branch with errors.Is():
//
//	if errors.Is(err, tracker.ErrNotFound) {
//	    // remote object was deleted out-of-band
//	}
var (
	// ErrNotFound is returned when the remote object does not exist
	// (or is no longer visible to the caller).
	ErrNotFound = errors.New("tracker object not found")

	// ErrPermissionDenied is returned when the credentials are valid but
	// lack the permission for this operation.
	ErrPermissionDenied = errors.New("tracker permission denied")

	// ErrUnauthorized is returned when the credentials are missing,
	// expired or rejected.
	ErrUnauthorized = errors.New("tracker authentication failed")

	// ErrRateLimited is returned when the tracker throttles the caller.
	ErrRateLimited = errors.New("tracker rate limit exceeded")

	// ErrTransport is returned when no HTTP response was received.
	ErrTransport = errors.New("tracker transport error")

	// ErrOther covers any other tracker error payload.
	ErrOther = errors.New("tracker request failed")
)

// Kind classifies a tracker failure.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindUnauthorized     Kind = "unauthorized"
	KindRateLimited      Kind = "rate_limited"
	KindTransport        Kind = "transport"
	KindOther            Kind = "other"
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindUnauthorized:
		return ErrUnauthorized
	case KindRateLimited:
		return ErrRateLimited
	case KindTransport:
		return ErrTransport
	default:
		return ErrOther
	}
}

// Error is a typed tracker failure.
type Error struct {
	Kind       Kind
	StatusCode int // 0 for transport errors
	Message    string
	Method     string
	Path       string

	// RetryAfter is the server-suggested wait for rate limited calls.
	RetryAfter time.Duration

	// Err is the underlying cause for transport errors.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s %s: %s (status %d): %s", e.Method, e.Path, e.Kind, e.StatusCode, e.Message)
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a tracker error, or "" if err is not one.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// classifyStatus maps an HTTP status code to a Kind.
func classifyStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		return KindNotFound
	case statusCode == http.StatusForbidden, statusCode == http.StatusPaymentRequired:
		return KindPermissionDenied
	case statusCode == http.StatusUnauthorized:
		return KindUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindOther
	}
}

// IsRetryable returns true if the call is likely to succeed if repeated later.
// The client never retries on its own; this is for callers that want to.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	if errors.Is(err, ErrTransport) {
		return true
	}

	var te *Error
	if errors.As(err, &te) && te.StatusCode >= 500 {
		return true
	}

	return false
}

// IsFatal returns true if no further tracker call with the same credentials
// can succeed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
