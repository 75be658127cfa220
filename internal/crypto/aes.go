package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// zeroIV is the fixed IV used by the platform for every CBC operation.
var zeroIV = make([]byte, aes.BlockSize)

// Encrypt encrypts plaintext with AES-256-CBC under the phrase derived from
// keyMaterial and returns standard base64.
func Encrypt(plaintext []byte, keyMaterial string) (string, error) {
	key, err := DerivePhrase(keyMaterial)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", &apierrors.CryptoError{Op: "encrypt", Err: fmt.Errorf("create cipher: %w", err)}
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(ciphertext, padded)

	return ToBase64(ciphertext), nil
}

// Decrypt reverses Encrypt.
//
// Padding removal reads the last byte as a count p and drops p bytes when
// 0 < p <= 16. The padding bytes themselves are not checked, so a ciphertext
// produced under another key decrypts to garbage instead of failing.
func Decrypt(ciphertextB64 string, keyMaterial string) ([]byte, error) {
	key, err := DerivePhrase(keyMaterial)
	if err != nil {
		return nil, err
	}

	ciphertext, err := FromBase64(ciphertextB64)
	if err != nil {
		return nil, &apierrors.CryptoError{Op: "decrypt", Err: fmt.Errorf("decode base64: %w", err)}
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, &apierrors.CryptoError{
			Op:  "decrypt",
			Err: fmt.Errorf("%w: %d bytes", ErrInvalidCiphertext, len(ciphertext)),
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &apierrors.CryptoError{Op: "decrypt", Err: fmt.Errorf("create cipher: %w", err)}
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(plaintext, ciphertext)

	return trimPadding(plaintext, aes.BlockSize), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

func trimPadding(data []byte, blockSize int) []byte {
	if len(data) == 0 {
		return data
	}
	p := int(data[len(data)-1])
	if p > 0 && p <= blockSize && p <= len(data) {
		return data[:len(data)-p]
	}
	return data
}
