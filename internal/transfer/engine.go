package transfer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/apierrors"
	"github.com/rubikalib/client-go/internal/session"
)

// Default chunk sizes and download address.
const (
	DefaultUploadChunkSize     = 128 * 1024
	DefaultDownloadChunkSize   = 256 * 1024
	DefaultDownloadURLTemplate = "https://messenger%s.iranlms.ir/GetFile.ashx"
	DefaultTimeout             = 60 * time.Second
)

// Caller is the subset of the dispatcher the engine needs.
type Caller interface {
	Call(ctx context.Context, method string, input any, opts ...api.CallOption) (*api.Response, error)
}

// CredentialSource provides the key sent in the auth header of chunk
// requests.
type CredentialSource interface {
	Credentials() (session.Credentials, error)
}

// ProgressFunc is called after every chunk with the bytes done so far.
// total is -1 when unknown.
type ProgressFunc func(done, total int64)

// Engine runs uploads and downloads.
type Engine struct {
	caller        Caller
	creds         CredentialSource
	httpClient    *http.Client
	uploadChunk   int
	downloadChunk int
	urlTemplate   string
	progress      ProgressFunc
	logger        logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient sets the client used for chunk requests.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = client
	}
}

// WithChunkSizes overrides the part sizes. Non-positive values keep the
// defaults.
func WithChunkSizes(upload, download int) Option {
	return func(e *Engine) {
		if upload > 0 {
			e.uploadChunk = upload
		}
		if download > 0 {
			e.downloadChunk = download
		}
	}
}

// WithDownloadURLTemplate sets the fmt template that turns a dc id into the
// download address. It must contain one %s verb.
func WithDownloadURLTemplate(template string) Option {
	return func(e *Engine) {
		e.urlTemplate = template
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine.
func New(caller Caller, creds CredentialSource, opts ...Option) *Engine {
	e := &Engine{
		caller:        caller,
		creds:         creds,
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		uploadChunk:   DefaultUploadChunkSize,
		downloadChunk: DefaultDownloadChunkSize,
		urlTemplate:   DefaultDownloadURLTemplate,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DownloadURL returns the address files on dc are fetched from.
func (e *Engine) DownloadURL(dc string) string {
	return fmt.Sprintf(e.urlTemplate, dc)
}

// DownloadStream returns a stream over the file's chunks starting at
// offset 0. No file or journal is touched.
func (e *Engine) DownloadStream(key Key) (*ChunkStream, error) {
	creds, err := e.credentials()
	if err != nil {
		return nil, err
	}
	return e.newStream(key, 0, creds), nil
}

func (e *Engine) newStream(key Key, offset int64, creds session.Credentials) *ChunkStream {
	return &ChunkStream{
		engine:    e,
		key:       key,
		url:       e.DownloadURL(key.DC),
		authKey:   creds.AuthKey,
		userAgent: creds.UserAgent,
		next:      offset,
	}
}

func (e *Engine) credentials() (session.Credentials, error) {
	creds, err := e.creds.Credentials()
	if err != nil {
		return session.Credentials{}, err
	}
	if !creds.Authenticated() {
		return session.Credentials{}, apierrors.ErrNotAuthenticated
	}
	return creds, nil
}

func (e *Engine) report(done, total int64) {
	if e.progress != nil {
		e.progress(done, total)
	}
}
