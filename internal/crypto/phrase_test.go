package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubikalib/client-go/internal/apierrors"
)

func TestDerivePhrase_Fixture(t *testing.T) {
	// segments: a=abcdefgh b=ijklmnop c=qrstuvwx d=yz012345
	phrase, err := DerivePhrase("abcdefghijklmnopqrstuvwxyz012345")
	require.NoError(t, err)
	assert.Equal(t, "zabcdefgjklmnopqhi567890rstuvwxy", string(phrase))
}

func TestDerivePhrase_LeavesOtherBytes(t *testing.T) {
	phrase, err := DerivePhrase("AAAAAAAABBBBBBBBCCCCCCCC--------")
	require.NoError(t, err)
	assert.Equal(t, "CCCCCCCCAAAAAAAA--------BBBBBBBB", string(phrase))
}

func TestDerivePhrase_Deterministic(t *testing.T) {
	for i := 0; i < 20; i++ {
		key, err := NewTmpKey()
		require.NoError(t, err)

		first, err := DerivePhrase(key)
		require.NoError(t, err)
		second, err := DerivePhrase(key)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, first, KeySize)
	}
}

func TestDerivePhrase_InvalidSize(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"short", "abcdef"},
		{"long", "abcdefghijklmnopqrstuvwxyz0123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DerivePhrase(tt.key)
			assert.ErrorIs(t, err, ErrInvalidKeySize)
			assert.ErrorIs(t, err, apierrors.ErrCrypto)
		})
	}
}

func TestInvertPhrase_Fixtures(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a", "g"},
		{"abcdefgh", "gfedcbaz"},
		{"A", "D"},
		{"Z", "E"},
		{"0", "3"},
		{"9", "4"},
		{"aA0+/=", "gD3+/="},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, InvertPhrase(tt.in))
		})
	}
}

func TestInvertPhrase_SelfInverse(t *testing.T) {
	buf := make([]byte, 256)
	_, err := rand.Read(buf)
	require.NoError(t, err)

	in := ToBase64(buf)
	assert.Equal(t, in, InvertPhrase(InvertPhrase(in)))
}

func TestNewTmpKey(t *testing.T) {
	k1, err := NewTmpKey()
	require.NoError(t, err)
	k2, err := NewTmpKey()
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.NotEqual(t, k1, k2)
	for _, ch := range k1 {
		assert.True(t, ch >= 'a' && ch <= 'z', "unexpected char %q", ch)
	}
}
