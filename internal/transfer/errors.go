package transfer

import "errors"

// ErrMissingAccessHash is returned when the last upload part is accepted
// without an access_hash_rec.
var ErrMissingAccessHash = errors.New("upload finished without access hash")
