// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnexpected ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeCancelled
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeStatus:
		return "status"
	case ErrTypeCancelled:
		return "cancelled"
	default:
		return "unexpected"
	}
}

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int // set for ErrTypeStatus
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by Type so errors.Is(err, ErrTimeout) works for any
// timeout, whatever its message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// Sentinel errors for errors.Is checks.
var (
	ErrConnection = &ClientError{Type: ErrTypeConnection}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout}
	ErrStatus     = &ClientError{Type: ErrTypeStatus}
	ErrCancelled  = &ClientError{Type: ErrTypeCancelled}
	ErrUnexpected = &ClientError{Type: ErrTypeUnexpected}
)

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsConnection reports whether the server could not be reached.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsCancelled reports whether the caller cancelled the request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// classify maps a transport error onto the failure taxonomy. parent is the
// caller's context: its cancellation wins over everything else, because a
// hide-triggered cancel must not be reported as a network fault.
func classify(parent context.Context, err error) *ClientError {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce
	}

	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return &ClientError{Type: ErrTypeCancelled, Message: "request cancelled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr):
		return &ClientError{Type: ErrTypeConnection, Message: "cannot resolve host", Cause: err}
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return &ClientError{Type: ErrTypeConnection, Message: "cannot connect", Cause: err}
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return &ClientError{Type: ErrTypeConnection, Message: "connection failed", Cause: err}
	}

	return &ClientError{Type: ErrTypeUnexpected, Message: "unexpected error", Cause: err}
}

func statusError(resp *http.Response, detail string) *ClientError {
	e := &ClientError{
		Type:       ErrTypeStatus,
		Message:    "server returned " + resp.Status,
		StatusCode: resp.StatusCode,
	}
	if detail != "" {
		e.Cause = errors.New(detail)
	}
	return e
}

// =============================================================================
// USER-FACING MESSAGES
// =============================================================================

// explain renders the single message shown to the user in place of a reply.
// Cancelled requests return "" because nobody is looking.
func explain(e *ClientError, host, model string, timeout time.Duration) string {
	switch e.Type {
	case ErrTypeConnection:
		return fmt.Sprintf("Connection error: please ensure Ollama is running at %s.", host)
	case ErrTypeTimeout:
		return fmt.Sprintf("The request timed out after %s. The model might be taking too long to respond.", timeout)
	case ErrTypeStatus:
		msg := fmt.Sprintf("Error: unable to connect to the model %q (HTTP %d). Make sure Ollama is running and the model is pulled.", model, e.StatusCode)
		if e.Cause != nil {
			msg += " Server said: " + e.Cause.Error()
		}
		return msg
	case ErrTypeCancelled:
		return ""
	default:
		detail := e.Message
		if e.Cause != nil {
			detail = e.Cause.Error()
		}
		return "An unexpected error occurred: " + detail
	}
}
