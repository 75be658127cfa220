package crypto

import (
	"io"

	"github.com/rubikalib/client-go/internal/apierrors"
)

const tmpKeyAlphabet = "abcdefghijklmnopqrstuvwxyz"

// NewTmpKey returns a fresh short-lived session key: KeySize random
// lowercase letters.
func NewTmpKey() (string, error) {
	buf := make([]byte, KeySize)
	if _, err := io.ReadFull(random(), buf); err != nil {
		return "", &apierrors.CryptoError{Op: "generate tmp key", Err: err}
	}
	for i, b := range buf {
		buf[i] = tmpKeyAlphabet[int(b)%len(tmpKeyAlphabet)]
	}
	return string(buf), nil
}
