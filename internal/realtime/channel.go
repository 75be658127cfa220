package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/apierrors"
	"github.com/rubikalib/client-go/internal/crypto"
	"github.com/rubikalib/client-go/internal/session"
)

const (
	DefaultKeepAlive     = 30 * time.Second
	DefaultReconnectWait = 5 * time.Second
	writeTimeout         = 10 * time.Second
)

// EndpointSource provides socket URLs.
type EndpointSource interface {
	Endpoints(ctx context.Context) (*api.EndpointSet, error)
}

// CredentialSource provides the account key.
type CredentialSource interface {
	Credentials() (session.Credentials, error)
}

// Config configures a Channel.
type Config struct {
	// URL pins the socket address. When empty a random URL from Endpoints is
	// used, falling back to the set's default socket.
	URL         string
	Endpoints   EndpointSource
	Credentials CredentialSource
	Dialer      *websocket.Dialer

	// KeepAlive is the period of the empty keep-alive frame.
	KeepAlive time.Duration
	// MaxReconnects is how many times a dropped connection is redialed.
	// Zero makes the first drop fatal.
	MaxReconnects int
	ReconnectWait time.Duration

	Logger logrus.FieldLogger
}

// Channel is a push connection.
type Channel struct {
	cfg  Config
	subs *subscriptionManager

	mu            sync.RWMutex
	conn          *websocket.Conn
	writeMu       sync.Mutex
	attempts      int
	connected     chan struct{}
	connectedOnce sync.Once
	lastError     error
}

// New creates a Channel. It does not dial until Run.
func New(cfg Config) *Channel {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultReconnectWait
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &Channel{
		cfg:       cfg,
		subs:      newSubscriptionManager(),
		connected: make(chan struct{}),
	}
}

// Subscribe registers handlers for messages and activities. Either may be
// nil. The returned function unsubscribes. A frame already being dispatched
// when it is called may still reach the handlers.
func (c *Channel) Subscribe(onMessage MessageHandler, onActivity ActivityHandler) func() {
	return c.subs.subscribe(onMessage, onActivity)
}

// Connected returns a channel closed once the first handshake was sent.
func (c *Channel) Connected() <-chan struct{} {
	return c.connected
}

// LastError returns the last connection error, if any.
func (c *Channel) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// Run connects and delivers events until ctx is done or the connection
// fails beyond the reconnect budget. It returns ctx.Err() on cancellation.
func (c *Channel) Run(ctx context.Context) error {
	for {
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("connection closed")
		}
		if fatal(err) {
			c.setLastError(err)
			return err
		}

		c.mu.Lock()
		c.lastError = err
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()

		log := c.cfg.Logger.WithFields(logrus.Fields{
			"function": "Run",
			"attempt":  attempts,
		})
		if attempts > c.cfg.MaxReconnects {
			log.WithError(err).Error("Push connection lost")
			return err
		}

		wait := c.cfg.ReconnectWait * time.Duration(1<<(attempts-1))
		log.WithError(err).WithField("wait", wait).Warn("Push connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Channel) setLastError(err error) {
	c.mu.Lock()
	c.lastError = err
	c.mu.Unlock()
}

// fatal reports errors that a reconnect cannot fix.
func fatal(err error) bool {
	return errors.Is(err, apierrors.ErrCrypto) ||
		errors.Is(err, apierrors.ErrNotAuthenticated) ||
		errors.Is(err, apierrors.ErrValidation)
}

// Send writes v as a JSON text frame on the live connection.
func (c *Channel) Send(v any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return &apierrors.TransportError{Method: "socket", Err: errors.New("not connected")}
	}
	return c.write(conn, v)
}

func (c *Channel) write(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return &apierrors.TransportError{Method: "socket", URL: conn.RemoteAddr().String(), Err: err}
	}
	return nil
}

func (c *Channel) connect(ctx context.Context) error {
	creds, err := c.cfg.Credentials.Credentials()
	if err != nil {
		return err
	}
	if !creds.Authenticated() {
		return apierrors.ErrNotAuthenticated
	}

	url, err := c.socketURL(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Origin", api.HeaderOrigin)
	if creds.UserAgent != "" {
		header.Set("User-Agent", creds.UserAgent)
	}

	conn, _, err := c.cfg.Dialer.DialContext(ctx, url, header)
	if err != nil {
		return &apierrors.TransportError{Method: "handShake", URL: url, Err: err}
	}
	defer conn.Close()

	err = c.write(conn, handshakeFrame{
		APIVersion: api.APIVersion,
		Auth:       crypto.InvertPhrase(creds.AuthKey),
		Data:       "",
		Method:     "handShake",
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	c.connectedOnce.Do(func() {
		close(c.connected)
	})
	c.cfg.Logger.WithFields(logrus.Fields{
		"function": "connect",
		"url":      url,
	}).Info("Push connection established")

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	go c.keepAlive(connCtx, cancel, conn)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if connCtx.Err() != nil && ctx.Err() == nil {
				return errors.New("keep-alive failed")
			}
			return &apierrors.TransportError{Method: "socket", URL: url, Err: err}
		}
		if err := c.handleFrame(ctx, frame, creds.AuthKey); err != nil {
			return err
		}
	}
}

func (c *Channel) keepAlive(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(conn, struct{}{}); err != nil {
				c.cfg.Logger.WithError(err).Warn("Keep-alive write failed")
				cancel()
				return
			}
		}
	}
}

// handleFrame decodes and dispatches one inbound frame. Malformed frames are
// skipped; a frame that cannot be decrypted ends the connection since every
// later frame would fail the same way.
func (c *Channel) handleFrame(ctx context.Context, frame []byte, authKey string) error {
	text := strings.TrimSpace(string(frame))
	if strings.HasPrefix(text, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(text), &inner); err == nil {
			text = strings.TrimSpace(inner)
		}
	}
	if text == "" {
		return nil
	}

	var in inboundFrame
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		c.cfg.Logger.WithError(err).Debug("Skipping malformed frame")
		return nil
	}
	if in.DataEnc == "" {
		return nil
	}

	plaintext, err := crypto.Decrypt(in.DataEnc, authKey)
	if err != nil {
		return err
	}

	var act activityPayload
	if err := json.Unmarshal(plaintext, &act); err != nil {
		c.cfg.Logger.WithError(err).Debug("Skipping undecodable update")
		return nil
	}

	if len(act.ShowActivities) > 0 {
		for _, a := range act.ShowActivities {
			c.subs.notifyActivity(ctx, Activity{
				Kind:    a.Type,
				ChatID:  a.ObjectGUID,
				ActorID: a.UserGUID,
			})
		}
		return nil
	}

	c.subs.notifyMessage(ctx, api.RawValue(plaintext))
	return nil
}

func (c *Channel) socketURL(ctx context.Context) (string, error) {
	if c.cfg.URL != "" {
		return c.cfg.URL, nil
	}
	if c.cfg.Endpoints == nil {
		return "", errors.New("no socket URL configured")
	}

	set, err := c.cfg.Endpoints.Endpoints(ctx)
	if err != nil {
		return "", err
	}
	if url, ok := set.RandomSocketURL(); ok {
		return url, nil
	}
	if url := set.DefaultSocketURL(); url != "" {
		return url, nil
	}
	return "", &apierrors.TransportError{Method: "handShake", Err: errors.New("no socket URLs available")}
}

// Subscribers returns the number of registered handler pairs.
func (c *Channel) Subscribers() int {
	return c.subs.count()
}

// Close drops every subscription. A running Run is not stopped; cancel its
// context for that.
func (c *Channel) Close() {
	c.subs.clear()
}
