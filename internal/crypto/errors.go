package crypto

import "errors"

var (
	// ErrInvalidKeySize is returned when key material is not KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidCiphertext is returned when a ciphertext is not a whole
	// number of AES blocks.
	ErrInvalidCiphertext = errors.New("ciphertext is not a multiple of the block size")

	// ErrNotPrivateKey is returned when signing or decrypting is attempted
	// with something other than an RSA private key.
	ErrNotPrivateKey = errors.New("key is not an RSA private key")

	// ErrInvalidPEM is returned when key material has no PEM block.
	ErrInvalidPEM = errors.New("no PEM block found")

	// ErrDecryptionFailed is returned when RSA-OAEP decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
)
