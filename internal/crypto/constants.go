package crypto

const (
	// KeySize is the length of auth keys, tmp keys and derived phrases.
	KeySize = 32

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32

	// RSAKeyBits is the modulus size of the per-login RSA keypair.
	RSAKeyBits = 1024

	// segmentSize is the length of each of the four key segments reordered
	// by DerivePhrase.
	segmentSize = KeySize / 4
)
