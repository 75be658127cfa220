package crypto

import (
	"fmt"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// DerivePhrase turns a 32-byte auth key into the AES key used for every
// payload encrypted with that auth key.
//
// The key is split into four segments a, b, c, d and reordered as c‖a‖d‖b.
// Then digits rotate forward by 5 and lowercase letters forward by 9. All
// other bytes are copied unchanged.
func DerivePhrase(authKey string) ([]byte, error) {
	if len(authKey) != KeySize {
		return nil, &apierrors.CryptoError{
			Op:  "derive phrase",
			Err: fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(authKey), KeySize),
		}
	}

	a := authKey[0:segmentSize]
	b := authKey[segmentSize : 2*segmentSize]
	c := authKey[2*segmentSize : 3*segmentSize]
	d := authKey[3*segmentSize:]

	phrase := []byte(c + a + d + b)
	for i, ch := range phrase {
		switch {
		case ch >= '0' && ch <= '9':
			phrase[i] = '0' + (ch-'0'+5)%10
		case ch >= 'a' && ch <= 'z':
			phrase[i] = 'a' + (ch-'a'+9)%26
		}
	}
	return phrase, nil
}

// InvertPhrase produces the wire form of an auth key or encoded public key.
// Lowercase letters map to (32-offset) mod 26, uppercase letters to
// (29-offset) mod 26 and digits to (13-offset) mod 10. Other bytes pass
// through. The transform is its own inverse.
func InvertPhrase(s string) string {
	out := []byte(s)
	for i, ch := range out {
		switch {
		case ch >= 'a' && ch <= 'z':
			out[i] = 'a' + byte((32-int(ch-'a'))%26)
		case ch >= 'A' && ch <= 'Z':
			out[i] = 'A' + byte((29-int(ch-'A'))%26)
		case ch >= '0' && ch <= '9':
			out[i] = '0' + byte((13-int(ch-'0'))%10)
		}
	}
	return string(out)
}
