package rubika

import "github.com/rubikalib/client-go/internal/apierrors"

// Sentinel errors for errors.Is() checks
var (
	ErrCrypto           = apierrors.ErrCrypto
	ErrTransport        = apierrors.ErrTransport
	ErrAuth             = apierrors.ErrAuth
	ErrTransfer         = apierrors.ErrTransfer
	ErrValidation       = apierrors.ErrValidation
	ErrNotRegistered    = apierrors.ErrNotRegistered
	ErrInvalidAuth      = apierrors.ErrInvalidAuth
	ErrTooManyRequests  = apierrors.ErrTooManyRequests
	ErrInvalidInput     = apierrors.ErrInvalidInput
	ErrNotAuthenticated = apierrors.ErrNotAuthenticated
	ErrClientClosed     = apierrors.ErrClientClosed
)

// Error types. Use errors.As to inspect them.
type (
	CryptoError     = apierrors.CryptoError
	TransportError  = apierrors.TransportError
	APIError        = apierrors.APIError
	AuthError       = apierrors.AuthError
	TransferError   = apierrors.TransferError
	ValidationError = apierrors.ValidationError
)
