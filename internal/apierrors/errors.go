// Package apierrors provides the shared error taxonomy for the Rubika client.
package apierrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrCrypto is matched by every CryptoError.
	ErrCrypto = errors.New("crypto failure")

	// ErrTransport is matched by every TransportError.
	ErrTransport = errors.New("transport failure")

	// ErrAuth is matched by every AuthError.
	ErrAuth = errors.New("authentication failed")

	// ErrTransfer is matched by every TransferError.
	ErrTransfer = errors.New("file transfer failed")

	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotRegistered is returned when the server no longer recognises the
	// session. The session record has already been terminated when this is seen.
	ErrNotRegistered = errors.New("session is not registered")

	// ErrInvalidAuth is returned when the server rejects the auth key.
	ErrInvalidAuth = errors.New("invalid auth")

	// ErrTooManyRequests is returned when the server rate limits the client.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrInvalidInput is returned when the server rejects the method input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotAuthenticated is returned when a signed call is attempted without
	// a long-lived auth key.
	ErrNotAuthenticated = errors.New("session is not authenticated")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")
)

// Server status_det values with a sentinel mapping.
const (
	StatusDetNotRegistered   = "NOT_REGISTERED"
	StatusDetInvalidAuth     = "INVALID_AUTH"
	StatusDetTooManyRequests = "TOO_REQUESTS"
	StatusDetInvalidInput    = "INVALID_INPUT"
)

// CryptoError is a cipher, signature or key failure. It is never retried.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("crypto %s failed", e.Op)
}

// Unwrap returns the underlying error.
func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *CryptoError) Is(target error) bool {
	return target == ErrCrypto
}

// TransportError represents a network, TLS or timeout failure.
type TransportError struct {
	Method  string
	URL     string
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("transport error calling %s at %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("transport error at %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// APIError is a logical failure reported by the server.
type APIError struct {
	Method    string
	Status    string
	StatusDet string
	// Message is the server's client_show_message text, if any.
	Message string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error calling %s: %s", e.Method, e.Status)
	if e.StatusDet != "" {
		msg += " (" + e.StatusDet + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusDet {
	case StatusDetNotRegistered:
		return target == ErrNotRegistered
	case StatusDetInvalidAuth:
		return target == ErrInvalidAuth
	case StatusDetTooManyRequests:
		return target == ErrTooManyRequests
	case StatusDetInvalidInput:
		return target == ErrInvalidInput
	}
	return false
}

// AuthError is a login flow failure the interactive caller may retry.
type AuthError struct {
	Step   string
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("auth %s: %s: %v", e.Step, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("auth %s: %v", e.Step, e.Err)
	default:
		return fmt.Sprintf("auth %s: %s", e.Step, e.Reason)
	}
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// TransferError is a chunk read or write failure mid-transfer.
type TransferError struct {
	Op     string // "upload" or "download"
	Offset int64
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed at offset %d: %v", e.Op, e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransfer
}

// ValidationError is a local input check failure. No request was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is implements errors.Is for sentinel error matching.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
