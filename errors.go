package goAuthClient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthExpired is matched by responses carrying the configured auth-expired status.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrRefreshFailed is matched by every rejection produced by a failed refresh cycle.
	ErrRefreshFailed = errors.New("credential refresh failed")
	// ErrRefreshTimeout is the refresh cause when the refresh call exceeds Refresh.Timeout.
	ErrRefreshTimeout = errors.New("credential refresh timed out")
	// ErrRetryExhausted is matched when an already replayed request hits ErrAuthExpired again.
	ErrRetryExhausted = errors.New("authentication retry exhausted")
	// ErrInvalidRequest is returned for nil or malformed request descriptors.
	ErrInvalidRequest = errors.New("invalid request descriptor")
	// ErrGatewayNotReady is returned when a Gateway was not produced by Builder.Build.
	ErrGatewayNotReady = errors.New("gateway not initialized")
)

// StatusError is returned by Gateway.Send for every non-2xx response.
//
// The response body is kept so callers can decode backend error payloads.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Header     http.Header
	Body       []byte

	authExpired bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is reports ErrAuthExpired for responses that carried the auth-expired status.
func (e *StatusError) Is(target error) bool {
	return target == ErrAuthExpired && e.authExpired
}

// AuthExpired reports whether the response signaled an invalid or expired credential.
func (e *StatusError) AuthExpired() bool {
	return e != nil && e.authExpired
}

// RefreshError is delivered to the originating caller and every pending caller
// of a refresh cycle that failed.
//
// Original is the caller's own authentication failure; Cause is the refresh
// failure shared by the whole cycle.
type RefreshError struct {
	Original error
	Cause    error
}

func (e *RefreshError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v: %v", ErrRefreshFailed, e.Original)
	}
	return fmt.Sprintf("%v: %v (refresh: %v)", ErrRefreshFailed, e.Original, e.Cause)
}

func (e *RefreshError) Unwrap() []error {
	out := []error{ErrRefreshFailed}
	if e.Original != nil {
		out = append(out, e.Original)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func retryExhausted(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryExhausted, err)
}
