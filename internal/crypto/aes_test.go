package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubikalib/client-go/internal/apierrors"
)

const testKey = "abcdefghijklmnopqrstuvwxyz012345"

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello world")},
		{"block aligned", bytes.Repeat([]byte("x"), 32)},
		{"json", []byte(`{"method":"getUserInfo","input":{},"client":{"app_name":"Main"}}`)},
		{"large", bytes.Repeat([]byte{0x42}, 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(tt.plaintext, testKey)
			require.NoError(t, err)

			decoded, err := FromBase64(ciphertext)
			require.NoError(t, err)
			assert.Zero(t, len(decoded)%16)
			assert.Greater(t, len(decoded), len(tt.plaintext))

			decrypted, err := Decrypt(ciphertext, testKey)
			require.NoError(t, err)
			assert.Equal(t, string(tt.plaintext), string(decrypted))
		})
	}
}

func TestEncrypt_DeterministicWithZeroIV(t *testing.T) {
	c1, err := Encrypt([]byte("same input"), testKey)
	require.NoError(t, err)
	c2, err := Encrypt([]byte("same input"), testKey)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestEncrypt_UsesDerivedPhrase(t *testing.T) {
	other := "qrstuvwxabcdefghyz012345ijklmnop" // c‖a‖d‖b without rotation
	c1, err := Encrypt([]byte("payload"), testKey)
	require.NoError(t, err)
	c2, err := Encrypt([]byte("payload"), other)
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestDecrypt_InvalidBase64(t *testing.T) {
	_, err := Decrypt("not base64 !!", testKey)
	assert.ErrorIs(t, err, apierrors.ErrCrypto)
}

func TestDecrypt_PartialBlock(t *testing.T) {
	_, err := Decrypt(ToBase64([]byte("short")), testKey)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecrypt_InvalidKeySize(t *testing.T) {
	_, err := Decrypt(ToBase64(make([]byte, 16)), "short")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestDecrypt_WrongKeyDoesNotFailLoudly(t *testing.T) {
	ciphertext, err := Encrypt([]byte("secret message"), testKey)
	require.NoError(t, err)

	wrong := "zyxwvutsrqponmlkjihgfedcba543210"
	plaintext, err := Decrypt(ciphertext, wrong)
	if err == nil {
		assert.NotEqual(t, "secret message", string(plaintext))
	}
}

func TestTrimPadding(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", []byte{}, []byte{}},
		{"one byte pad", []byte{'a', 'b', 1}, []byte{'a', 'b'}},
		{"zero last byte", []byte{'a', 0}, []byte{'a', 0}},
		{"too large", []byte{'a', 17}, []byte{'a', 17}},
		{"longer than data", []byte{'a', 5}, []byte{'a', 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimPadding(tt.in, 16))
		})
	}
}
