package session

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// CountryPrefix is prepended to national numbers.
const CountryPrefix = "98"

// identityHashSize is the digest size in bytes. Hex encoding doubles it to
// the 32 characters the record cipher expects.
const identityHashSize = 16

// Identity addresses one account's session record.
type Identity struct {
	// Phone is the canonical 98XXXXXXXXXX form.
	Phone string
	// Hash is the hex digest of Phone.
	Hash string
}

// NewIdentity normalizes phone and derives its hash.
func NewIdentity(phone string) (Identity, error) {
	canonical, err := NormalizePhone(phone)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Phone: canonical, Hash: hashPhone(canonical)}, nil
}

// NormalizePhone strips a leading '+' plus any spaces or dashes and returns
// the 12-digit canonical form. Only 10-digit national numbers and 12-digit
// numbers carrying the country prefix are accepted.
func NormalizePhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		switch r {
		case '+', ' ', '-':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", &apierrors.ValidationError{Field: "phone", Reason: "must contain only digits"}
		}
	}

	switch len(digits) {
	case 10:
		return CountryPrefix + digits, nil
	case 12:
		if !strings.HasPrefix(digits, CountryPrefix) {
			return "", &apierrors.ValidationError{Field: "phone", Reason: "12-digit numbers must start with " + CountryPrefix}
		}
		return digits, nil
	default:
		return "", &apierrors.ValidationError{Field: "phone", Reason: "must be 10 or 12 digits"}
	}
}

func hashPhone(canonical string) string {
	h, _ := blake2b.New(identityHashSize, nil)
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}
