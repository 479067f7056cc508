package augment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FailureKind classifies why an augmentation request failed.
type FailureKind int

const (
	// KindNone is returned by KindOf for nil or foreign errors.
	KindNone FailureKind = iota
	// KindTransport covers connection refused, DNS failures and timeouts.
	KindTransport
	// KindUpstreamStatus is a non-2xx response.
	KindUpstreamStatus
	// KindEmptyResult is a 2xx response without usable text.
	KindEmptyResult
	// KindConfiguration means the endpoint or key is missing.
	KindConfiguration
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindEmptyResult:
		return "empty_result"
	case KindConfiguration:
		return "configuration"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Error is the error type returned by Client.
type Error struct {
	Kind FailureKind

	// Status is the HTTP status (KindUpstreamStatus only).
	Status int

	// Reason is the service's explanation, when it sent one.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindUpstreamStatus:
		msg = fmt.Sprintf("augment: %s (HTTP %d)", e.Kind, e.Status)
	default:
		msg = fmt.Sprintf("augment: %s", e.Kind)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the short text shown to the user in place of the result.
func (e *Error) Message() string {
	switch e.Kind {
	case KindTransport:
		if errors.Is(e.Err, context.DeadlineExceeded) {
			return "Request timed out"
		}
		return "Network error"
	case KindUpstreamStatus:
		switch e.Status {
		case http.StatusUnauthorized:
			return "Invalid API key"
		case http.StatusUnprocessableEntity:
			if e.Reason != "" {
				return capitalize(e.Reason)
			}
			return "Invalid request"
		case http.StatusTooManyRequests:
			return "Rate limited, try again later"
		case http.StatusInternalServerError:
			return "Server error"
		case http.StatusBadGateway:
			return "Invalid response from model"
		case http.StatusServiceUnavailable:
			return "Service unavailable"
		default:
			return fmt.Sprintf("Server returned %d", e.Status)
		}
	case KindEmptyResult:
		return "Empty response"
	case KindConfiguration:
		return "Not configured"
	default:
		return "Unknown error"
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-('a'-'A')) + s[1:]
}

// KindOf returns the FailureKind of err, or KindNone.
func KindOf(err error) FailureKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// UserMessage returns the user-facing text for any error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	if err == nil {
		return ""
	}
	return "Unknown error"
}

// Retryable reports whether another attempt could succeed: transport
// failures other than caller cancellation, empty results, rate limiting
// and 5xx responses.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransport:
		return !errors.Is(e.Err, context.Canceled)
	case KindEmptyResult:
		return true
	case KindUpstreamStatus:
		return e.Status == http.StatusTooManyRequests || (e.Status >= 500 && e.Status < 600)
	default:
		return false
	}
}
