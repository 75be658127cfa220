package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/apierrors"
	"github.com/rubikalib/client-go/internal/crypto"
	"github.com/rubikalib/client-go/internal/session"
)

// DefaultMaxAttempts bounds each interactive prompt loop.
const DefaultMaxAttempts = 5

// Caller is the subset of the dispatcher the flow needs.
type Caller interface {
	Call(ctx context.Context, method string, input any, opts ...api.CallOption) (*api.Response, error)
}

// Prompter supplies interactive secrets.
type Prompter interface {
	// PassKey asks for the two-factor passkey. hint is the server's hint,
	// possibly empty.
	PassKey(ctx context.Context, hint string) (string, error)
	// Code asks for the verification code of the given length.
	Code(ctx context.Context, digits int) (string, error)
}

// SendCodeResult is the outcome of one sendCode round-trip.
type SendCodeResult struct {
	// PassKeyRequired is set when the account has two-factor protection and
	// the call must be repeated with a passkey.
	PassKeyRequired bool
	HintPassKey     string
	CodeDigitsCount int
}

// Flow runs the login steps against one session.
type Flow struct {
	store       *session.Store
	caller      Caller
	logger      logrus.FieldLogger
	maxAttempts int

	mu                sync.Mutex
	awaitingTwoFactor bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithMaxAttempts bounds how often a code or passkey is asked for.
func WithMaxAttempts(n int) Option {
	return func(f *Flow) {
		f.maxAttempts = n
	}
}

// New creates a Flow.
func New(store *session.Store, caller Caller, opts ...Option) *Flow {
	f := &Flow{
		store:       store,
		caller:      caller,
		logger:      logrus.StandardLogger(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State reports the current login state.
func (f *Flow) State() State {
	rec := f.store.Record()
	switch {
	case rec.AuthKey != "":
		return StateAuthenticated
	case rec.LoginStep == session.StepAwaitingCode:
		return StateAwaitingVerificationCode
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.awaitingTwoFactor {
		return StateAwaitingTwoFactor
	}
	return StateUnauthenticated
}

// Login runs the whole flow, resuming from the persisted step.
func (f *Flow) Login(ctx context.Context, p Prompter) error {
	rec := f.store.Record()
	log := f.logger.WithFields(logrus.Fields{
		"function":   "Login",
		"identity":   f.store.Identity().Hash,
		"login_step": rec.LoginStep.String(),
	})

	switch {
	case rec.AuthKey != "" && rec.LoginStep == session.StepReady:
		log.Debug("Session already authenticated")
		return nil
	case rec.AuthKey != "":
		log.Info("Resuming at device registration")
		return f.RegisterDevice(ctx)
	case rec.LoginStep == session.StepAwaitingCode && rec.PhoneCodeHash != "":
		log.Info("Resuming at verification code")
	default:
		if err := f.sendCodeLoop(ctx, p); err != nil {
			return err
		}
	}

	if err := f.signInLoop(ctx, p); err != nil {
		return err
	}
	return f.RegisterDevice(ctx)
}

func (f *Flow) sendCodeLoop(ctx context.Context, p Prompter) error {
	passKey := ""
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		res, err := f.SendCode(ctx, passKey)

		var authErr *apierrors.AuthError
		switch {
		case errors.As(err, &authErr) && authErr.Reason == ReasonPassKeyIsInvalid:
			passKey, err = p.PassKey(ctx, "")
			if err != nil {
				return err
			}
			continue
		case err != nil:
			return err
		case res.PassKeyRequired:
			passKey, err = p.PassKey(ctx, res.HintPassKey)
			if err != nil {
				return err
			}
			continue
		}
		return nil
	}
	return &apierrors.AuthError{Step: "sendCode", Reason: ReasonTooManyAttempts}
}

func (f *Flow) signInLoop(ctx context.Context, p Prompter) error {
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		digits := f.store.Record().CodeDigitsCount
		code, err := p.Code(ctx, digits)
		if err != nil {
			return err
		}

		err = f.SignIn(ctx, code)
		var authErr *apierrors.AuthError
		if errors.As(err, &authErr) && (authErr.Reason == ReasonCodeLength || authErr.Reason == ReasonCodeIsInvalid) {
			f.logger.WithField("reason", authErr.Reason).Info("Verification code rejected")
			continue
		}
		return err
	}
	return &apierrors.AuthError{Step: "signIn", Reason: ReasonTooManyAttempts}
}

// SendCode requests a verification code. An empty passKey sends none. On
// success the phone code hash and digit count are persisted.
func (f *Flow) SendCode(ctx context.Context, passKey string) (*SendCodeResult, error) {
	input := map[string]string{
		"phone_number": f.store.Identity().Phone,
		"send_type":    "SMS",
	}
	if passKey != "" {
		input["pass_key"] = passKey
	}

	resp, err := f.caller.Call(ctx, "sendCode", input, api.TmpSession())
	if err != nil {
		return nil, &apierrors.AuthError{Step: "sendCode", Err: err}
	}

	var data struct {
		Status          string `json:"status"`
		PhoneCodeHash   string `json:"phone_code_hash"`
		CodeDigitsCount int    `json:"code_digits_count"`
		HintPassKey     string `json:"hint_pass_key"`
	}
	if !resp.Data.IsNull() {
		if err := resp.Data.Decode(&data); err != nil {
			return nil, &apierrors.AuthError{Step: "sendCode", Err: err}
		}
	}

	switch {
	case resp.NeedsPassKey() || data.Status == statusSendPassKey:
		if passKey != "" {
			return nil, &apierrors.AuthError{Step: "sendCode", Reason: ReasonPassKeyIsInvalid}
		}
		f.setTwoFactor(true)
		return &SendCodeResult{PassKeyRequired: true, HintPassKey: data.HintPassKey}, nil
	case data.Status == statusInvalidPassKey:
		f.setTwoFactor(true)
		return nil, &apierrors.AuthError{Step: "sendCode", Reason: ReasonPassKeyIsInvalid}
	case data.Status != "" && data.Status != statusOK:
		return nil, &apierrors.AuthError{Step: "sendCode", Reason: data.Status}
	}

	if data.PhoneCodeHash == "" || data.CodeDigitsCount <= 0 {
		return nil, &apierrors.AuthError{Step: "sendCode", Reason: "MissingCodeHash"}
	}

	err = f.store.Update(ctx, func(r *session.Record) {
		r.LoginStep = session.StepAwaitingCode
		r.PhoneCodeHash = data.PhoneCodeHash
		r.CodeDigitsCount = data.CodeDigitsCount
	})
	if err != nil {
		return nil, err
	}
	f.setTwoFactor(false)

	f.logger.WithFields(logrus.Fields{
		"function": "SendCode",
		"digits":   data.CodeDigitsCount,
	}).Info("Verification code sent")

	return &SendCodeResult{CodeDigitsCount: data.CodeDigitsCount}, nil
}

// SignIn submits the verification code. The code length is checked locally
// first. On success the session holds the long-lived key, private key and
// profile; the device is not registered yet.
func (f *Flow) SignIn(ctx context.Context, code string) error {
	rec := f.store.Record()
	if rec.LoginStep != session.StepAwaitingCode || rec.PhoneCodeHash == "" {
		return &apierrors.AuthError{Step: "signIn", Reason: ReasonNoPendingCode}
	}

	code = strings.TrimSpace(code)
	if err := validateCode(code, rec.CodeDigitsCount); err != nil {
		return &apierrors.AuthError{Step: "signIn", Reason: ReasonCodeLength, Err: err}
	}

	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return err
	}

	resp, err := f.caller.Call(ctx, "signIn", map[string]string{
		"phone_number":    rec.Phone,
		"phone_code_hash": rec.PhoneCodeHash,
		"phone_code":      code,
		"public_key":      kp.PublicKey,
	}, api.TmpSession())
	if err != nil {
		return &apierrors.AuthError{Step: "signIn", Err: err}
	}

	var data struct {
		Status string           `json:"status"`
		Auth   string           `json:"auth"`
		User   *session.Profile `json:"user"`
	}
	if err := resp.Data.Decode(&data); err != nil {
		return &apierrors.AuthError{Step: "signIn", Err: err}
	}
	if data.Status != "" && data.Status != statusOK {
		return &apierrors.AuthError{Step: "signIn", Reason: data.Status}
	}
	if data.Auth == "" {
		return &apierrors.AuthError{Step: "signIn", Reason: "MissingAuth"}
	}

	authKey, err := crypto.DecryptOAEP(data.Auth, kp.Private())
	if err != nil {
		return err
	}
	if len(authKey) != crypto.KeySize {
		return &apierrors.CryptoError{
			Op:  "decrypt auth key",
			Err: fmt.Errorf("%w: got %d bytes", crypto.ErrInvalidKeySize, len(authKey)),
		}
	}

	if err := f.store.Regenerate(ctx); err != nil {
		return err
	}
	err = f.store.Update(ctx, func(r *session.Record) {
		r.SetAuthKey(string(authKey))
		r.PrivateKey = kp.PrivateKeyPEM
		r.Profile = data.User
	})
	if err != nil {
		return err
	}

	f.logger.WithFields(logrus.Fields{
		"function": "SignIn",
		"identity": f.store.Identity().Hash,
	}).Info("Signed in")
	return nil
}

// RegisterDevice registers this client as a device of the account and marks
// the session ready. It needs a signed-in session.
func (f *Flow) RegisterDevice(ctx context.Context) error {
	rec := f.store.Record()
	if rec.AuthKey == "" {
		return &apierrors.AuthError{Step: "registerDevice", Err: apierrors.ErrNotAuthenticated}
	}

	_, err := f.caller.Call(ctx, "registerDevice", map[string]string{
		"token_type":     "Web",
		"token":          "",
		"app_version":    "WB_" + api.DefaultClientInfo.AppVersion,
		"lang_code":      api.DefaultClientInfo.LangCode,
		"system_version": session.DeviceOS(rec.UserAgent),
		"device_model":   deviceModel(rec.UserAgent),
		"device_hash":    session.DeviceHash(rec.UserAgent),
	})
	if err != nil {
		return &apierrors.AuthError{Step: "registerDevice", Err: err}
	}

	if err := f.store.Update(ctx, func(r *session.Record) {
		r.LoginStep = session.StepReady
	}); err != nil {
		return err
	}

	f.logger.WithField("function", "RegisterDevice").Info("Device registered")
	return nil
}

func (f *Flow) setTwoFactor(v bool) {
	f.mu.Lock()
	f.awaitingTwoFactor = v
	f.mu.Unlock()
}

func validateCode(code string, digits int) error {
	if len(code) != digits {
		return &apierrors.ValidationError{Field: "code", Reason: fmt.Sprintf("must be %d digits, got %d", digits, len(code))}
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return &apierrors.ValidationError{Field: "code", Reason: "must contain only digits"}
		}
	}
	return nil
}

func deviceModel(userAgent string) string {
	for _, browser := range []string{"Edg", "Firefox", "Chrome", "Safari"} {
		if strings.Contains(userAgent, browser+"/") {
			if browser == "Edg" {
				return "Edge"
			}
			return browser
		}
	}
	return "Web"
}
