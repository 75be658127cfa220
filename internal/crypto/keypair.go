package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// randReader is the random source used for key generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func random() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// Keypair is the RSA keypair generated for one login attempt.
type Keypair struct {
	// PublicKey is the wire form: PKIX DER, standard base64, then InvertPhrase.
	PublicKey string
	// PrivateKeyPEM is the PKCS#1 PEM encoding persisted in the session.
	PrivateKeyPEM string

	private *rsa.PrivateKey
}

// Private returns the parsed private key.
func (k *Keypair) Private() *rsa.PrivateKey {
	return k.private
}

// GenerateKeypair creates a new RSA-1024 keypair.
func GenerateKeypair() (*Keypair, error) {
	priv, err := rsa.GenerateKey(random(), RSAKeyBits)
	if err != nil {
		return nil, &apierrors.CryptoError{Op: "generate keypair", Err: err}
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, &apierrors.CryptoError{Op: "generate keypair", Err: fmt.Errorf("marshal public key: %w", err)}
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	return &Keypair{
		PublicKey:     InvertPhrase(ToBase64(der)),
		PrivateKeyPEM: string(privPEM),
		private:       priv,
	}, nil
}

// ParsePrivateKey parses a PKCS#1 or PKCS#8 PEM private key.
func ParsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, &apierrors.CryptoError{Op: "parse private key", Err: ErrInvalidPEM}
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &apierrors.CryptoError{Op: "parse private key", Err: fmt.Errorf("%w: %v", ErrNotPrivateKey, err)}
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &apierrors.CryptoError{Op: "parse private key", Err: ErrNotPrivateKey}
	}
	return key, nil
}

// Sign signs data (the base64 data_enc string) with RSA PKCS#1 v1.5 over
// SHA-256 and returns standard base64.
func Sign(data []byte, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", &apierrors.CryptoError{Op: "sign", Err: ErrNotPrivateKey}
	}

	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(random(), key, crypto.SHA256, digest[:])
	if err != nil {
		return "", &apierrors.CryptoError{Op: "sign", Err: err}
	}
	return ToBase64(sig), nil
}

// DecryptOAEP decrypts the auth key delivered by signIn.
func DecryptOAEP(ciphertextB64 string, key *rsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, &apierrors.CryptoError{Op: "decrypt oaep", Err: ErrNotPrivateKey}
	}

	ciphertext, err := FromBase64(ciphertextB64)
	if err != nil {
		return nil, &apierrors.CryptoError{Op: "decrypt oaep", Err: fmt.Errorf("decode base64: %w", err)}
	}

	plaintext, err := rsa.DecryptOAEP(sha1.New(), random(), key, ciphertext, nil)
	if err != nil {
		return nil, &apierrors.CryptoError{Op: "decrypt oaep", Err: fmt.Errorf("%w: %v", ErrDecryptionFailed, err)}
	}
	return plaintext, nil
}
