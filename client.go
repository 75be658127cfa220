package rubika

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/auth"
	"github.com/rubikalib/client-go/internal/realtime"
	"github.com/rubikalib/client-go/internal/session"
	"github.com/rubikalib/client-go/internal/transfer"
)

// Re-exported types.
type (
	// Value is a JSON value returned by the server.
	Value = api.Value
	// Response is a successful call result.
	Response = api.Response
	// Profile is the account profile kept with the session.
	Profile = session.Profile
	// Prompter supplies the verification code and passkey during Login.
	Prompter = auth.Prompter
	// LoginState is the login progress of the session.
	LoginState = auth.State
	// Activity is a typing, recording or uploading event.
	Activity = realtime.Activity
	// MessageHandler receives decrypted updates.
	MessageHandler = realtime.MessageHandler
	// ActivityHandler receives activity events.
	ActivityHandler = realtime.ActivityHandler
	// UploadResult identifies an uploaded file.
	UploadResult = transfer.UploadResult
	// ChunkStream yields a download's chunks.
	ChunkStream = transfer.ChunkStream
	// Chunk is one piece of a download.
	Chunk = transfer.Chunk
)

// Login states.
const (
	StateUnauthenticated          = auth.StateUnauthenticated
	StateAwaitingVerificationCode = auth.StateAwaitingVerificationCode
	StateAwaitingTwoFactor        = auth.StateAwaitingTwoFactor
	StateAuthenticated            = auth.StateAuthenticated
)

// Client is one account's connection to the platform.
type Client struct {
	store      *session.Store
	dispatcher *api.Dispatcher
	flow       *auth.Flow
	transfer   *transfer.Engine
	channel    *realtime.Channel
	logger     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

// buildDispatcher creates and configures a dispatcher from the given config.
func buildDispatcher(store *session.Store, cfg *clientConfig) (*api.Dispatcher, error) {
	opts := []api.Option{
		api.WithBootstrapURL(cfg.bootstrapURL),
		api.WithEndpointCache(cfg.endpoints()),
		api.WithRetries(cfg.retries),
		api.WithLogger(cfg.logger),
	}
	if cfg.httpClient != nil {
		opts = append(opts, api.WithHTTPClient(cfg.httpClient))
	} else if cfg.timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.timeout))
	}
	if cfg.failoverThreshold > 0 {
		opts = append(opts, api.WithFailoverThreshold(cfg.failoverThreshold))
	}
	return api.New(store, opts...)
}

func buildTransfer(store *session.Store, d *api.Dispatcher, cfg *clientConfig) *transfer.Engine {
	opts := []transfer.Option{
		transfer.WithHTTPClient(d.HTTPClient()),
		transfer.WithChunkSizes(cfg.uploadChunkSize, cfg.downloadChunkSize),
		transfer.WithLogger(cfg.logger),
	}
	if cfg.downloadURLTemplate != "" {
		opts = append(opts, transfer.WithDownloadURLTemplate(cfg.downloadURLTemplate))
	}
	return transfer.New(d, store, opts...)
}

// New opens the session for phone, creating it on first use. No request is
// sent until Login or Call.
func New(phone string, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	identity, err := session.NewIdentity(phone)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSetupTimeout)
	defer cancel()

	store, err := session.Open(ctx, cfg.sessionRepository(), identity, session.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	dispatcher, err := buildDispatcher(store, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		dispatcher: dispatcher,
		flow:       auth.New(store, dispatcher, auth.WithLogger(cfg.logger)),
		transfer:   buildTransfer(store, dispatcher, cfg),
		channel: realtime.New(realtime.Config{
			URL:           cfg.socketURL,
			Endpoints:     dispatcher,
			Credentials:   store,
			KeepAlive:     cfg.keepAlive,
			MaxReconnects: cfg.reconnects,
			ReconnectWait: cfg.reconnectWait,
			Logger:        cfg.logger,
		}),
		logger: cfg.logger,
	}, nil
}

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// Phone returns the canonical phone number of the account.
func (c *Client) Phone() string {
	return c.store.Identity().Phone
}

// State reports the login progress.
func (c *Client) State() LoginState {
	return c.flow.State()
}

// Profile returns a copy of the stored profile, or nil before sign-in.
func (c *Client) Profile() *Profile {
	return c.store.Record().Profile
}

// HTTPClient returns the client used for RPC and transfers.
func (c *Client) HTTPClient() *http.Client {
	return c.dispatcher.HTTPClient()
}

// Login authenticates the session, asking p for the code and passkey as
// needed. An interrupted login resumes where it stopped.
func (c *Client) Login(ctx context.Context, p Prompter) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.flow.Login(ctx, p)
}

// Call invokes method with input. input is marshalled to JSON. When the
// response carries the account's own user object the stored profile is
// refreshed.
func (c *Client) Call(ctx context.Context, method string, input any) (*Response, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	resp, err := c.dispatcher.Call(ctx, method, input)
	if err != nil {
		return nil, err
	}

	c.observeProfile(ctx, method, resp.Data)
	return resp, nil
}

func (c *Client) observeProfile(ctx context.Context, method string, data Value) {
	current := c.store.Record().Profile
	if current == nil || current.UserGUID == "" {
		return
	}

	user := data.Field("user")
	if user.IsNull() {
		return
	}

	var updated Profile
	if err := user.Decode(&updated); err != nil || updated.UserGUID != current.UserGUID {
		return
	}
	if updated == *current {
		return
	}

	err := c.store.Update(ctx, func(r *session.Record) {
		r.Profile = &updated
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"function": "observeProfile",
			"method":   method,
		}).WithError(err).Warn("Failed to store refreshed profile")
	}
}

// Upload sends the file at path and returns its identifiers.
func (c *Client) Upload(ctx context.Context, path string) (UploadResult, error) {
	if err := c.checkOpen(); err != nil {
		return UploadResult{}, err
	}
	return c.transfer.Upload(ctx, path)
}

// Download writes the file to outPath. A download interrupted by an error
// or cancellation resumes on the next call with the same arguments.
func (c *Client) Download(ctx context.Context, accessHash, fileID, dc, outPath string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	key := transfer.Key{AccessHash: accessHash, FileID: fileID, DC: dc}
	return c.transfer.Download(ctx, key, outPath)
}

// DownloadStream returns the file's chunks without writing anything.
func (c *Client) DownloadStream(accessHash, fileID, dc string) (*ChunkStream, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.transfer.DownloadStream(transfer.Key{AccessHash: accessHash, FileID: fileID, DC: dc})
}

// Subscribe registers update handlers. Either may be nil. Handlers run on
// the Listen goroutine. Call the returned function to unsubscribe.
func (c *Client) Subscribe(onMessage MessageHandler, onActivity ActivityHandler) func() {
	return c.channel.Subscribe(onMessage, onActivity)
}

// Listen connects the push channel and delivers updates until ctx is done
// or the connection is lost. It returns ctx.Err() on cancellation.
func (c *Client) Listen(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.channel.Run(ctx)
}

// Logout ends the session on the server and deletes it locally. The local
// record is removed even when the server no longer knows the session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	var callErr error
	if c.store.Record().AuthKey != "" {
		_, callErr = c.dispatcher.Call(ctx, "logout", struct{}{})
		if errors.Is(callErr, ErrNotRegistered) {
			callErr = nil
		}
	}

	if err := c.store.Terminate(ctx); err != nil {
		return err
	}
	return callErr
}

// Close releases the client. Subscriptions are dropped; a running Listen
// must be stopped through its context.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.channel.Close()
	return nil
}
