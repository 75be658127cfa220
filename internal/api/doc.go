// Package api implements the RPC dispatcher for the Rubika web protocol.
//
// Every call is a JSON payload encrypted with the session's active key and
// wrapped in an envelope:
//
//	{"api_version": "6", "data_enc": "...", "tmp_session": "..."}
//	{"api_version": "6", "data_enc": "...", "auth": "...", "sign": "..."}
//
// Before login the raw tmp key is sent as tmp_session and calls are
// unsigned. After login the long-lived key is sent in its inverted wire form
// as auth, and data_enc is signed with the session's RSA key.
//
// # Endpoints
//
// API and socket URLs come from a bootstrap call ([Bootstrap]) and are kept in
// an [EndpointCache]. A cached set is trusted as is. Each call posts to a
// random URL from the set. After [Dispatcher] sees a configurable number of
// consecutive transport failures it drops the cached set and bootstraps again
// on the next call.
//
// # Retry Behavior
//
// By default a transport failure is returned to the caller. With
// [WithRetries] the call is re-sent to a different URL after an exponential
// backoff with jitter. Server-reported errors are never retried.
//
// # Error Handling
//
// Errors are the typed values from the apierrors package:
//
//   - TransportError for network, TLS, timeout and HTTP status failures.
//   - APIError for any status other than OK or SendPassKey.
//   - CryptoError when a payload cannot be encrypted, signed or decrypted.
//
// A NOT_REGISTERED status terminates the session through the
// [CredentialSource] before the APIError is returned.
//
// # Thread Safety
//
// [Dispatcher] is safe for concurrent use. Calls are independent; no
// ordering is provided between them.
package api
