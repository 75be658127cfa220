package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/apierrors"
	"github.com/rubikalib/client-go/internal/crypto"
	"github.com/rubikalib/client-go/internal/session"
)

// Defaults.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultFailoverThreshold = 3
)

// CredentialSource supplies key material at call time and is told when the
// server declares the session dead.
type CredentialSource interface {
	Credentials() (session.Credentials, error)
	Terminate(ctx context.Context) error
}

// Dispatcher sends encrypted RPC calls.
type Dispatcher struct {
	creds             CredentialSource
	cache             EndpointCache
	httpClient        *http.Client
	bootstrapURL      string
	retry             *RetryConfig
	failoverThreshold int
	logger            logrus.FieldLogger

	mu        sync.Mutex
	endpoints *EndpointSet
	failures  int
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client used for calls and bootstrap.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.httpClient = client
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.httpClient.Timeout = timeout
	}
}

// WithBootstrapURL overrides the discovery URL.
func WithBootstrapURL(url string) Option {
	return func(d *Dispatcher) {
		d.bootstrapURL = url
	}
}

// WithEndpointCache sets where the endpoint set is kept.
func WithEndpointCache(cache EndpointCache) Option {
	return func(d *Dispatcher) {
		d.cache = cache
	}
}

// WithRetries sets how many times a transport failure is retried.
func WithRetries(retries int) Option {
	return func(d *Dispatcher) {
		d.retry.MaxRetries = retries
	}
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(d *Dispatcher) {
		d.retry = cfg
	}
}

// WithFailoverThreshold sets how many consecutive transport failures drop
// the cached endpoints. Zero disables re-bootstrapping.
func WithFailoverThreshold(n int) Option {
	return func(d *Dispatcher) {
		d.failoverThreshold = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher reading credentials from creds.
func New(creds CredentialSource, opts ...Option) (*Dispatcher, error) {
	if creds == nil {
		return nil, fmt.Errorf("credential source is required")
	}

	d := &Dispatcher{
		creds:             creds,
		cache:             NewMemoryEndpointCache(nil),
		httpClient:        &http.Client{Timeout: DefaultTimeout},
		bootstrapURL:      DefaultBootstrapURL,
		retry:             DefaultRetryConfig(),
		failoverThreshold: DefaultFailoverThreshold,
		logger:            logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.retry.MaxRetries < 0 {
		return nil, fmt.Errorf("retries must not be negative")
	}
	return d, nil
}

// HTTPClient returns the client used for requests.
func (d *Dispatcher) HTTPClient() *http.Client {
	return d.httpClient
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

type callConfig struct {
	tmpSession bool
}

// TmpSession forces the call onto the short-lived key, unsigned.
func TmpSession() CallOption {
	return func(c *callConfig) {
		c.tmpSession = true
	}
}

// Call sends method with input and returns the classified response. The
// long-lived key is used when the session has one, otherwise the tmp key.
func (d *Dispatcher) Call(ctx context.Context, method string, input any, opts ...CallOption) (*Response, error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	creds, err := d.creds.Credentials()
	if err != nil {
		return nil, err
	}

	env, key, err := buildEnvelope(method, input, creds, cfg.tmpSession)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	log := d.logger.WithFields(logrus.Fields{
		"method":     method,
		"request_id": uuid.NewString(),
		"signed":     env.Sign != "",
	})

	raw, err := d.send(ctx, method, body, creds.UserAgent, log)
	if err != nil {
		return nil, err
	}

	payload, err := decodeResponse(raw, key)
	if err != nil {
		return nil, err
	}

	resp, err := classify(method, payload)
	if err != nil {
		log.WithFields(logrus.Fields{
			"status":     payload.Status,
			"status_det": payload.StatusDet,
		}).Warn("Call rejected")

		if errors.Is(err, apierrors.ErrNotRegistered) {
			if termErr := d.creds.Terminate(ctx); termErr != nil {
				log.WithError(termErr).Error("Failed to terminate unregistered session")
			}
		}
		return nil, err
	}

	log.WithField("status", resp.Status).Debug("Call completed")
	return resp, nil
}

// Endpoints returns the current endpoint set, bootstrapping if needed.
func (d *Dispatcher) Endpoints(ctx context.Context) (*EndpointSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endpointsLocked(ctx)
}

func (d *Dispatcher) endpointsLocked(ctx context.Context) (*EndpointSet, error) {
	if d.endpoints != nil {
		return d.endpoints, nil
	}

	set, err := d.cache.Load(ctx)
	if err != nil {
		log := d.logger.WithFields(logrus.Fields{"function": "Endpoints"})
		log.WithError(err).Warn("Discarding unreadable endpoint cache")
		if invErr := d.cache.Invalidate(ctx); invErr != nil {
			log.WithError(invErr).Warn("Failed to invalidate endpoint cache")
		}
		set = nil
	}
	if set != nil {
		d.endpoints = set
		return set, nil
	}

	creds, err := d.creds.Credentials()
	if err != nil {
		return nil, err
	}
	set, err = Bootstrap(ctx, d.httpClient, d.bootstrapURL, creds.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Store(ctx, set); err != nil {
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"function": "Endpoints",
		"api_urls": len(set.API),
		"sockets":  len(set.Socket),
	}).Info("Bootstrapped endpoints")

	d.endpoints = set
	return set, nil
}

func (d *Dispatcher) send(ctx context.Context, method string, body []byte, userAgent string, log logrus.FieldLogger) ([]byte, error) {
	var lastURL string

	for attempt := 0; ; attempt++ {
		set, err := d.Endpoints(ctx)
		if err != nil {
			return nil, err
		}
		url, ok := set.RandomAPIURL(lastURL)
		if !ok {
			return nil, &apierrors.TransportError{Method: method, Attempt: attempt + 1, Err: errors.New("no API URLs available")}
		}
		lastURL = url

		raw, err := post(ctx, d.httpClient, url, body, userAgent)
		if err == nil {
			d.recordSuccess()
			return raw, nil
		}

		tErr := &apierrors.TransportError{Method: method, URL: url, Attempt: attempt + 1, Err: err}
		log.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt + 1,
		}).WithError(err).Warn("Call transport failure")
		d.recordFailure(ctx)

		if ctx.Err() != nil || !d.retry.ShouldRetry(attempt, tErr) {
			return nil, tErr
		}
		if err := d.retry.Wait(ctx, attempt); err != nil {
			return nil, tErr
		}
	}
}

func (d *Dispatcher) recordSuccess() {
	d.mu.Lock()
	d.failures = 0
	d.mu.Unlock()
}

func (d *Dispatcher) recordFailure(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failures++
	if d.failoverThreshold <= 0 || d.failures < d.failoverThreshold {
		return
	}

	d.failures = 0
	d.endpoints = nil
	if err := d.cache.Invalidate(ctx); err != nil {
		d.logger.WithError(err).Warn("Failed to invalidate endpoint cache")
		return
	}
	d.logger.WithField("threshold", d.failoverThreshold).Warn("Endpoint cache invalidated after consecutive transport failures")
}

// buildEnvelope encrypts and, for the long-lived key, signs the payload. It
// returns the key the response must be decrypted with.
func buildEnvelope(method string, input any, creds session.Credentials, forceTmp bool) (*requestEnvelope, string, error) {
	if input == nil {
		input = struct{}{}
	}
	plaintext, err := json.Marshal(requestPayload{
		Method: method,
		Input:  input,
		Client: DefaultClientInfo,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode %s input: %w", method, err)
	}

	useTmp := forceTmp || !creds.Authenticated()
	if useTmp {
		if creds.TmpKey == "" {
			return nil, "", &apierrors.ValidationError{Field: "tmp_session", Reason: "session has no tmp key"}
		}
		dataEnc, err := crypto.Encrypt(plaintext, creds.TmpKey)
		if err != nil {
			return nil, "", err
		}
		return &requestEnvelope{
			APIVersion: APIVersion,
			DataEnc:    dataEnc,
			TmpSession: creds.TmpKey,
		}, creds.TmpKey, nil
	}

	dataEnc, err := crypto.Encrypt(plaintext, creds.AuthKey)
	if err != nil {
		return nil, "", err
	}
	sig, err := crypto.Sign([]byte(dataEnc), creds.PrivateKey)
	if err != nil {
		return nil, "", err
	}
	return &requestEnvelope{
		APIVersion: APIVersion,
		DataEnc:    dataEnc,
		Auth:       crypto.InvertPhrase(creds.AuthKey),
		Sign:       sig,
	}, creds.AuthKey, nil
}

func decodeResponse(raw []byte, key string) (*responsePayload, error) {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &apierrors.CryptoError{Op: "decode response", Err: err}
	}

	if env.DataEnc == "" {
		return &responsePayload{Status: env.Status, StatusDet: env.StatusDet}, nil
	}

	plaintext, err := crypto.Decrypt(env.DataEnc, key)
	if err != nil {
		return nil, err
	}
	var payload responsePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, &apierrors.CryptoError{Op: "decode response", Err: err}
	}
	return &payload, nil
}
