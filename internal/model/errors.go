package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportError is a network-level failure: timeout, reset, DNS.
// Always retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is an HTTP 5xx or 429 from the model endpoint. Retryable.
type ServerError struct {
	StatusCode int
	Err        error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (status %d): %v", e.StatusCode, e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// ClientError is an HTTP 4xx other than 429, or a malformed request.
// Not retryable; surfaced immediately.
type ClientError struct {
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error (status %d): %v", e.StatusCode, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// ProtocolError means tool-call syntax was present but unparsable, or
// the turn-count cap was exceeded. Fatal for the current turn but does
// not corrupt history.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// ClassifyStatus converts an HTTP status code from the model endpoint
// into the engine's error taxonomy.
func ClassifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return &ServerError{StatusCode: status, Err: err}
	case status >= 400:
		return &ClientError{StatusCode: status, Err: err}
	default:
		return &TransportError{Err: err}
	}
}

// Retryable reports whether the retry coordinator may schedule another
// attempt for this error. Transport and server failures are retryable;
// client and protocol failures are not.
func Retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		return true
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return false
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return false
	}
	// Raw network errors that escaped classification.
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
