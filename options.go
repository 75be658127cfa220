package rubika

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/session"
)

const (
	defaultSessionDir    = ".rubika"
	defaultEndpointsFile = "endpoints.json"
	defaultTimeout       = 30 * time.Second
	defaultReconnectWait = 5 * time.Second
	defaultSetupTimeout  = 10 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	sessionDir        string
	repository        session.Repository
	endpointCache     api.EndpointCache
	endpointCachePath string
	bootstrapURL      string
	httpClient        *http.Client
	timeout           time.Duration
	retries           int
	failoverThreshold int
	logger            logrus.FieldLogger

	// Transfer configuration
	downloadURLTemplate string
	uploadChunkSize     int
	downloadChunkSize   int

	// Push channel configuration
	keepAlive     time.Duration
	socketURL     string
	reconnects    int
	reconnectWait time.Duration
}

// Option configures the client.
type Option func(*clientConfig)

func defaultConfig() *clientConfig {
	return &clientConfig{
		sessionDir:    defaultSessionDir,
		bootstrapURL:  api.DefaultBootstrapURL,
		timeout:       defaultTimeout,
		reconnectWait: defaultReconnectWait,
		logger:        logrus.StandardLogger(),
	}
}

func (c *clientConfig) sessionRepository() session.Repository {
	if c.repository != nil {
		return c.repository
	}
	return session.NewFileRepository(c.sessionDir)
}

func (c *clientConfig) endpoints() api.EndpointCache {
	if c.endpointCache != nil {
		return c.endpointCache
	}
	path := c.endpointCachePath
	if path == "" {
		path = filepath.Join(c.sessionDir, defaultEndpointsFile)
	}
	return api.NewFileEndpointCache(path)
}

// WithSessionDir sets the directory session files and the endpoint cache
// live in. Default: .rubika
func WithSessionDir(dir string) Option {
	return func(c *clientConfig) {
		c.sessionDir = dir
	}
}

// WithSessionRepository replaces the file-backed session storage, for
// example with a SQLite or in-memory repository.
func WithSessionRepository(repo session.Repository) Option {
	return func(c *clientConfig) {
		c.repository = repo
	}
}

// WithEndpointCache replaces the endpoint cache.
func WithEndpointCache(cache api.EndpointCache) Option {
	return func(c *clientConfig) {
		c.endpointCache = cache
	}
}

// WithEndpointCachePath sets the endpoint cache file.
// Default: <session dir>/endpoints.json
func WithEndpointCachePath(path string) Option {
	return func(c *clientConfig) {
		c.endpointCachePath = path
	}
}

// WithBootstrapURL sets the getDCs discovery URL.
func WithBootstrapURL(url string) Option {
	return func(c *clientConfig) {
		c.bootstrapURL = url
	}
}

// WithHTTPClient sets a custom HTTP client for RPC and file transfer.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets how often a call that failed in transport is re-sent to
// another API server. Default: 0
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithFailoverThreshold sets how many consecutive transport failures drop
// the endpoint cache. Default: 3
func WithFailoverThreshold(n int) Option {
	return func(c *clientConfig) {
		c.failoverThreshold = n
	}
}

// WithLogger sets the logger. Default: logrus.StandardLogger()
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithDownloadURLTemplate sets the fmt template mapping a dc id to its
// download address.
func WithDownloadURLTemplate(template string) Option {
	return func(c *clientConfig) {
		c.downloadURLTemplate = template
	}
}

// WithChunkSizes sets the upload and download part sizes in bytes.
// Default: 128 KiB up, 256 KiB down
func WithChunkSizes(upload, download int) Option {
	return func(c *clientConfig) {
		c.uploadChunkSize = upload
		c.downloadChunkSize = download
	}
}

// WithKeepAlive sets the push channel keep-alive period. Default: 30s
func WithKeepAlive(d time.Duration) Option {
	return func(c *clientConfig) {
		c.keepAlive = d
	}
}

// WithSocketURL pins the push socket address instead of picking one from
// the endpoint set.
func WithSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.socketURL = url
	}
}

// WithReconnect lets Listen redial a dropped socket up to n times, waiting
// wait, 2*wait, 4*wait and so on between attempts. Default: 0, a drop ends
// Listen.
func WithReconnect(n int, wait time.Duration) Option {
	return func(c *clientConfig) {
		c.reconnects = n
		if wait > 0 {
			c.reconnectWait = wait
		}
	}
}
