package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubikalib/client-go/internal/apierrors"
	"github.com/rubikalib/client-go/internal/crypto"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func openTestStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	id, err := NewIdentity("9123456789")
	require.NoError(t, err)

	s, err := Open(context.Background(), repo, id, WithLogger(quietLogger()))
	require.NoError(t, err)
	return s
}

func TestOpen_FreshRecord(t *testing.T) {
	repo := NewMemoryRepository()
	s := openTestStore(t, repo)

	rec := s.Record()
	assert.Equal(t, StepNone, rec.LoginStep)
	assert.Equal(t, "989123456789", rec.Phone)
	assert.Len(t, rec.TmpKey, crypto.KeySize)
	assert.Empty(t, rec.AuthKey)
	assert.NotEmpty(t, rec.UserAgent)

	blob, err := repo.Load(context.Background(), s.Identity().Hash)
	require.NoError(t, err)
	assert.NotNil(t, blob, "fresh record must be persisted immediately")
}

func TestOpen_EncryptedAtRest(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(dir)
	s := openTestStore(t, repo)

	require.NoError(t, s.Update(context.Background(), func(r *Record) {
		r.PhoneCodeHash = "phone-code-hash-value"
	}))

	raw, err := os.ReadFile(filepath.Join(dir, s.Identity().Hash+sessionFileExt))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "phone-code-hash-value")
	assert.NotContains(t, string(raw), "989123456789")

	plaintext, err := crypto.Decrypt(string(raw), s.Identity().Hash)
	require.NoError(t, err)
	assert.Contains(t, string(plaintext), "phone-code-hash-value")
}

func TestOpen_ReloadsPersistedRecord(t *testing.T) {
	repo := NewMemoryRepository()
	s := openTestStore(t, repo)

	require.NoError(t, s.Update(context.Background(), func(r *Record) {
		r.LoginStep = StepAwaitingCode
		r.PhoneCodeHash = "hash"
		r.CodeDigitsCount = 6
	}))

	reopened := openTestStore(t, repo)
	rec := reopened.Record()
	assert.Equal(t, StepAwaitingCode, rec.LoginStep)
	assert.Equal(t, "hash", rec.PhoneCodeHash)
	assert.Equal(t, 6, rec.CodeDigitsCount)
	assert.Equal(t, s.Record().UserAgent, rec.UserAgent)
	assert.Equal(t, s.Record().TmpKey, rec.TmpKey)
}

func TestOpen_CorruptRecord(t *testing.T) {
	repo := NewMemoryRepository()
	id, err := NewIdentity("9123456789")
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), id.Hash, []byte("not-ciphertext")))

	_, err = Open(context.Background(), repo, id, WithLogger(quietLogger()))
	assert.ErrorIs(t, err, apierrors.ErrCrypto)
}

func TestUpdate_AuthKeyClearsTmpKey(t *testing.T) {
	s := openTestStore(t, NewMemoryRepository())

	require.NoError(t, s.Update(context.Background(), func(r *Record) {
		r.SetAuthKey("abcdefghijklmnopqrstuvwxyz012345")
	}))

	rec := s.Record()
	assert.Empty(t, rec.TmpKey)
	key, tmp := rec.ActiveKey()
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz012345", key)
	assert.False(t, tmp)
}

type failingRepo struct {
	*MemoryRepository
	failSave bool
}

func (f *failingRepo) Save(ctx context.Context, hash string, blob []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryRepository.Save(ctx, hash, blob)
}

func TestUpdate_FailedWriteKeepsRecord(t *testing.T) {
	repo := &failingRepo{MemoryRepository: NewMemoryRepository()}
	s := openTestStore(t, repo)
	before := s.Record()

	repo.failSave = true
	err := s.Update(context.Background(), func(r *Record) { r.LoginStep = StepReady })
	require.Error(t, err)
	assert.Equal(t, before, s.Record())
}

func TestRecord_ReturnsCopy(t *testing.T) {
	s := openTestStore(t, NewMemoryRepository())
	require.NoError(t, s.Update(context.Background(), func(r *Record) {
		r.Profile = &Profile{UserGUID: "u0abc", FirstName: "Ali"}
	}))

	rec := s.Record()
	rec.Profile.FirstName = "changed"
	assert.Equal(t, "Ali", s.Record().Profile.FirstName)
}

func TestRegenerate(t *testing.T) {
	s := openTestStore(t, NewMemoryRepository())
	ua := s.Record().UserAgent

	require.NoError(t, s.Update(context.Background(), func(r *Record) {
		r.LoginStep = StepAwaitingCode
		r.PhoneCodeHash = "hash"
		r.CodeDigitsCount = 5
		r.Profile = &Profile{UserGUID: "u0abc"}
	}))

	require.NoError(t, s.Regenerate(context.Background()))

	rec := s.Record()
	assert.Equal(t, StepNone, rec.LoginStep)
	assert.Equal(t, "989123456789", rec.Phone)
	assert.Equal(t, ua, rec.UserAgent)
	assert.Empty(t, rec.PhoneCodeHash)
	assert.Zero(t, rec.CodeDigitsCount)
	assert.Nil(t, rec.Profile)
	assert.False(t, rec.LoginDate.IsZero())
	assert.Len(t, rec.TmpKey, crypto.KeySize)
}

func TestTerminate_Idempotent(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := openTestStore(t, repo)
			ctx := context.Background()

			require.NoError(t, s.Terminate(ctx))
			require.NoError(t, s.Terminate(ctx))

			blob, err := repo.Load(ctx, s.Identity().Hash)
			require.NoError(t, err)
			assert.Nil(t, blob)

			rec := s.Record()
			assert.Equal(t, StepNone, rec.LoginStep)
			assert.Empty(t, rec.AuthKey)
		})
	}
}

func TestCredentials(t *testing.T) {
	s := openTestStore(t, NewMemoryRepository())

	creds, err := s.Credentials()
	require.NoError(t, err)
	assert.False(t, creds.Authenticated())
	assert.Nil(t, creds.PrivateKey)

	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	require.NoError(t, s.Update(context.Background(), func(r *Record) {
		r.SetAuthKey("abcdefghijklmnopqrstuvwxyz012345")
		r.PrivateKey = kp.PrivateKeyPEM
	}))

	creds, err = s.Credentials()
	require.NoError(t, err)
	assert.True(t, creds.Authenticated())
	require.NotNil(t, creds.PrivateKey)
	assert.True(t, creds.PrivateKey.Equal(kp.Private()))
}

func TestCredentials_BadPrivateKey(t *testing.T) {
	s := openTestStore(t, NewMemoryRepository())
	require.NoError(t, s.Update(context.Background(), func(r *Record) {
		r.PrivateKey = "garbage"
	}))

	_, err := s.Credentials()
	assert.ErrorIs(t, err, apierrors.ErrCrypto)
}

func TestLoginStep_Text(t *testing.T) {
	for _, step := range []LoginStep{StepNone, StepAwaitingCode, StepReady} {
		text, err := step.MarshalText()
		require.NoError(t, err)

		var got LoginStep
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, step, got)
	}

	var s LoginStep
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
	assert.Equal(t, "LoginStep(9)", LoginStep(9).String())
}
