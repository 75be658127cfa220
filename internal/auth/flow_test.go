package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/apierrors"
	"github.com/rubikalib/client-go/internal/crypto"
	"github.com/rubikalib/client-go/internal/rubikatest"
	"github.com/rubikalib/client-go/internal/session"
)

const serverAuthKey = "qwertyuiopasdfghjklzxcvbnm123456"

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	store *session.Store
	repo  *session.MemoryRepository
	srv   *rubikatest.Server
	flow  *Flow
}

func newFixture(t *testing.T, handler rubikatest.Handler) *fixture {
	t.Helper()

	repo := session.NewMemoryRepository()
	id, err := session.NewIdentity("+989123456789")
	require.NoError(t, err)
	store, err := session.Open(context.Background(), repo, id, session.WithLogger(quietLogger()))
	require.NoError(t, err)

	srv := rubikatest.New(t, handler)
	d, err := api.New(store, api.WithBootstrapURL(srv.BootstrapURL()), api.WithLogger(quietLogger()))
	require.NoError(t, err)

	return &fixture{
		store: store,
		repo:  repo,
		srv:   srv,
		flow:  New(store, d, WithLogger(quietLogger())),
	}
}

// encryptForClient plays the server side of signIn: it encrypts the account
// key under the public key the client sent.
func encryptForClient(t *testing.T, input json.RawMessage) string {
	t.Helper()

	var in struct {
		PublicKey string `json:"public_key"`
	}
	require.NoError(t, json.Unmarshal(input, &in))

	der, err := crypto.FromBase64(crypto.InvertPhrase(in.PublicKey))
	require.NoError(t, err)
	pub, err := x509.ParsePKIXPublicKey(der)
	require.NoError(t, err)

	ct, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub.(*rsa.PublicKey), []byte(serverAuthKey), nil)
	require.NoError(t, err)
	return crypto.ToBase64(ct)
}

type happyServer struct {
	t        *testing.T
	digits   int
	passKey  string
	register rubikatest.Reply

	mu    sync.Mutex
	codes []string
}

func (h *happyServer) handle(c rubikatest.Call) rubikatest.Reply {
	var in map[string]string
	_ = json.Unmarshal(c.Input, &in)

	switch c.Method {
	case "sendCode":
		if h.passKey != "" {
			switch in["pass_key"] {
			case "":
				return rubikatest.Reply{Status: "SendPassKey", Data: map[string]any{"status": "SendPassKey", "hint_pass_key": "pet name"}}
			case h.passKey:
			default:
				return rubikatest.OK(map[string]any{"status": "InvalidPassKey"})
			}
		}
		return rubikatest.OK(map[string]any{
			"status":            "OK",
			"phone_code_hash":   "hash-1",
			"code_digits_count": h.digits,
		})
	case "signIn":
		h.mu.Lock()
		h.codes = append(h.codes, in["phone_code"])
		h.mu.Unlock()
		if in["phone_code_hash"] != "hash-1" || in["phone_code"] != "12345" {
			return rubikatest.OK(map[string]any{"status": "CodeIsInvalid"})
		}
		return rubikatest.OK(map[string]any{
			"status": "OK",
			"auth":   encryptForClient(h.t, c.Input),
			"user": map[string]any{
				"user_guid":   "u0HXkpO07ea05449373fa9cfa8b81b65",
				"first_name":  "Sara",
				"phone":       "989123456789",
				"online_time": map[string]any{"type": "Recently"},
			},
		})
	case "registerDevice":
		h.mu.Lock()
		reply := h.register
		h.mu.Unlock()
		if reply.Status != "" {
			return reply
		}
		return rubikatest.OK(map[string]any{"device_guid": "d1"})
	}
	return rubikatest.Fail("ERROR_GENERIC", "INVALID_INPUT")
}

type scriptedPrompter struct {
	codes    []string
	passKeys []string

	digitsSeen []int
	hintsSeen  []string
}

func (p *scriptedPrompter) Code(_ context.Context, digits int) (string, error) {
	p.digitsSeen = append(p.digitsSeen, digits)
	if len(p.codes) == 0 {
		return "", errors.New("no more codes")
	}
	c := p.codes[0]
	p.codes = p.codes[1:]
	return c, nil
}

func (p *scriptedPrompter) PassKey(_ context.Context, hint string) (string, error) {
	p.hintsSeen = append(p.hintsSeen, hint)
	if len(p.passKeys) == 0 {
		return "", errors.New("no more passkeys")
	}
	k := p.passKeys[0]
	p.passKeys = p.passKeys[1:]
	return k, nil
}

func TestLogin_EndToEnd(t *testing.T) {
	h := &happyServer{t: t, digits: 5}
	f := newFixture(t, h.handle)

	assert.Equal(t, session.StepNone, f.store.Record().LoginStep)
	assert.Equal(t, StateUnauthenticated, f.flow.State())

	p := &scriptedPrompter{codes: []string{"1234", "12345"}}
	require.NoError(t, f.flow.Login(context.Background(), p))

	assert.Equal(t, []string{"sendCode", "signIn", "registerDevice"}, f.srv.Methods())
	assert.Equal(t, []string{"12345"}, h.codes, "short code must not reach the server")
	assert.Equal(t, []int{5, 5}, p.digitsSeen)

	rec := f.store.Record()
	assert.Equal(t, session.StepReady, rec.LoginStep)
	assert.Equal(t, serverAuthKey, rec.AuthKey)
	assert.Len(t, rec.AuthKey, crypto.KeySize)
	assert.Empty(t, rec.TmpKey)
	assert.Empty(t, rec.PhoneCodeHash)
	assert.NotEmpty(t, rec.PrivateKey)
	assert.False(t, rec.LoginDate.IsZero())
	require.NotNil(t, rec.Profile)
	assert.Equal(t, "Sara", rec.Profile.FirstName)
	assert.Equal(t, StateAuthenticated, f.flow.State())

	calls := f.srv.Calls()
	assert.False(t, calls[0].Signed())
	assert.False(t, calls[1].Signed())
	assert.True(t, calls[2].Signed())
	assert.Equal(t, serverAuthKey, calls[2].Key)

	var reg map[string]string
	require.NoError(t, json.Unmarshal(calls[2].Input, &reg))
	assert.Equal(t, session.DeviceHash(rec.UserAgent), reg["device_hash"])
	assert.Equal(t, "Web", reg["token_type"])

	// Already authenticated: nothing more is sent.
	require.NoError(t, f.flow.Login(context.Background(), p))
	assert.Len(t, f.srv.Calls(), 3)
}

func TestLogin_PassKeyLoop(t *testing.T) {
	h := &happyServer{t: t, digits: 5, passKey: "right"}
	f := newFixture(t, h.handle)

	p := &scriptedPrompter{
		passKeys: []string{"wrong", "right"},
		codes:    []string{"12345"},
	}
	require.NoError(t, f.flow.Login(context.Background(), p))

	assert.Equal(t, []string{"sendCode", "sendCode", "sendCode", "signIn", "registerDevice"}, f.srv.Methods())
	assert.Equal(t, []string{"pet name", ""}, p.hintsSeen)
	assert.Equal(t, session.StepReady, f.store.Record().LoginStep)
}

func TestSendCode_PassKeyRequired(t *testing.T) {
	h := &happyServer{t: t, digits: 6, passKey: "right"}
	f := newFixture(t, h.handle)

	res, err := f.flow.SendCode(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.PassKeyRequired)
	assert.Equal(t, "pet name", res.HintPassKey)
	assert.Equal(t, StateAwaitingTwoFactor, f.flow.State())
	assert.Equal(t, session.StepNone, f.store.Record().LoginStep)

	_, err = f.flow.SendCode(context.Background(), "wrong")
	var authErr *apierrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonPassKeyIsInvalid, authErr.Reason)

	res, err = f.flow.SendCode(context.Background(), "right")
	require.NoError(t, err)
	assert.False(t, res.PassKeyRequired)
	assert.Equal(t, 6, res.CodeDigitsCount)
	assert.Equal(t, StateAwaitingVerificationCode, f.flow.State())

	rec := f.store.Record()
	assert.Equal(t, session.StepAwaitingCode, rec.LoginStep)
	assert.Equal(t, "hash-1", rec.PhoneCodeHash)
	assert.Equal(t, 6, rec.CodeDigitsCount)
}

func TestLogin_ResumesAtVerificationCode(t *testing.T) {
	h := &happyServer{t: t, digits: 5}
	f := newFixture(t, h.handle)

	require.NoError(t, f.store.Update(context.Background(), func(r *session.Record) {
		r.LoginStep = session.StepAwaitingCode
		r.PhoneCodeHash = "hash-1"
		r.CodeDigitsCount = 5
	}))

	require.NoError(t, f.flow.Login(context.Background(), &scriptedPrompter{codes: []string{"12345"}}))
	assert.Equal(t, []string{"signIn", "registerDevice"}, f.srv.Methods())
}

func TestSignIn_WrongLengthRejectedLocally(t *testing.T) {
	f := newFixture(t, (&happyServer{t: t, digits: 5}).handle)
	_, err := f.flow.SendCode(context.Background(), "")
	require.NoError(t, err)
	before := len(f.srv.Calls())

	for _, code := range []string{"1234", "123456", "12a45", ""} {
		err := f.flow.SignIn(context.Background(), code)
		require.Error(t, err, code)
		assert.ErrorIs(t, err, apierrors.ErrAuth)
		assert.ErrorIs(t, err, apierrors.ErrValidation)

		var authErr *apierrors.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, ReasonCodeLength, authErr.Reason)
	}
	assert.Len(t, f.srv.Calls(), before)
}

func TestSignIn_InvalidCodeKeepsState(t *testing.T) {
	f := newFixture(t, (&happyServer{t: t, digits: 5}).handle)
	_, err := f.flow.SendCode(context.Background(), "")
	require.NoError(t, err)
	before := f.store.Record()

	err = f.flow.SignIn(context.Background(), "99999")
	var authErr *apierrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonCodeIsInvalid, authErr.Reason)
	assert.Equal(t, before, f.store.Record())
}

func TestSignIn_NoPendingCode(t *testing.T) {
	f := newFixture(t, nil)

	err := f.flow.SignIn(context.Background(), "12345")
	var authErr *apierrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonNoPendingCode, authErr.Reason)
	assert.Empty(t, f.srv.Calls())
}

func TestLogin_RegisterDeviceFailure(t *testing.T) {
	h := &happyServer{t: t, digits: 5, register: rubikatest.Fail("ERROR_ACTION", "INVALID_INPUT")}
	f := newFixture(t, h.handle)

	err := f.flow.Login(context.Background(), &scriptedPrompter{codes: []string{"12345"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrAuth)
	assert.ErrorIs(t, err, apierrors.ErrInvalidInput)

	rec := f.store.Record()
	assert.Equal(t, serverAuthKey, rec.AuthKey, "key is kept after failed registration")
	assert.NotEqual(t, session.StepReady, rec.LoginStep)

	h.mu.Lock()
	h.register = rubikatest.Reply{}
	h.mu.Unlock()
	require.NoError(t, f.flow.Login(context.Background(), &scriptedPrompter{}))
	assert.Equal(t, []string{"sendCode", "signIn", "registerDevice", "registerDevice"}, f.srv.Methods())
	assert.Equal(t, session.StepReady, f.store.Record().LoginStep)
}

func TestSendCode_ServerError(t *testing.T) {
	f := newFixture(t, func(rubikatest.Call) rubikatest.Reply {
		return rubikatest.Fail("ERROR_ACTION", "TOO_REQUESTS")
	})

	_, err := f.flow.SendCode(context.Background(), "")
	assert.ErrorIs(t, err, apierrors.ErrAuth)
	assert.ErrorIs(t, err, apierrors.ErrTooManyRequests)
	assert.Equal(t, session.StepNone, f.store.Record().LoginStep)
}

func TestLogin_TooManyAttempts(t *testing.T) {
	h := &happyServer{t: t, digits: 5}
	f := newFixture(t, h.handle)
	f.flow.maxAttempts = 2

	err := f.flow.Login(context.Background(), &scriptedPrompter{codes: []string{"11111", "22222", "12345"}})
	var authErr *apierrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonTooManyAttempts, authErr.Reason)
	assert.Equal(t, session.StepAwaitingCode, f.store.Record().LoginStep)
}

func TestRegisterDevice_RequiresAuthKey(t *testing.T) {
	f := newFixture(t, nil)
	err := f.flow.RegisterDevice(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrNotAuthenticated)
}

func TestDeviceModel(t *testing.T) {
	assert.Equal(t, "Chrome", deviceModel("Mozilla/5.0 AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36"))
	assert.Equal(t, "Edge", deviceModel("Mozilla/5.0 Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"))
	assert.Equal(t, "Firefox", deviceModel("Mozilla/5.0 Gecko/20100101 Firefox/121.0"))
	assert.Equal(t, "Web", deviceModel("curl/8.0"))
}
