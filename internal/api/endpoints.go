package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// DefaultBootstrapURL answers the getDCs discovery call.
const DefaultBootstrapURL = "https://getdcmess.iranlms.ir/"

// Static URL lists appended to every bootstrapped set.
var (
	StaticBootstrapURLs = []string{DefaultBootstrapURL}
	StaticWebURLs       = []string{"https://web.rubika.ir/", "https://m.rubika.ir/"}
)

// EndpointSet is the bootstrap data object plus the static lists.
type EndpointSet struct {
	API           map[string]string `json:"API"`
	Socket        map[string]string `json:"socket"`
	DefaultAPI    string            `json:"default_api,omitempty"`
	DefaultSocket string            `json:"default_socket,omitempty"`
	Storages      map[string]string `json:"storages,omitempty"`

	BootstrapURLs []string `json:"bootstrap_urls"`
	WebURLs       []string `json:"web_urls"`
}

// APIURLs returns the distinct API URLs in a stable order.
func (s *EndpointSet) APIURLs() []string {
	return sortedValues(s.API)
}

// SocketURLs returns the distinct socket URLs in a stable order.
func (s *EndpointSet) SocketURLs() []string {
	return sortedValues(s.Socket)
}

// DefaultSocketURL returns the URL the server marks as default, if any.
func (s *EndpointSet) DefaultSocketURL() string {
	return s.Socket[s.DefaultSocket]
}

// RandomAPIURL picks an API URL uniformly at random, avoiding exclude when
// another URL exists.
func (s *EndpointSet) RandomAPIURL(exclude string) (string, bool) {
	return pick(s.APIURLs(), exclude)
}

// RandomSocketURL picks a socket URL uniformly at random.
func (s *EndpointSet) RandomSocketURL() (string, bool) {
	return pick(s.SocketURLs(), "")
}

func (s *EndpointSet) validate() error {
	if len(s.API) == 0 {
		return errors.New("endpoint set has no API URLs")
	}
	return nil
}

func pick(urls []string, exclude string) (string, bool) {
	if len(urls) == 0 {
		return "", false
	}
	if exclude != "" && len(urls) > 1 {
		filtered := urls[:0:0]
		for _, u := range urls {
			if u != exclude {
				filtered = append(filtered, u)
			}
		}
		urls = filtered
	}
	return urls[rand.Intn(len(urls))], true
}

func sortedValues(m map[string]string) []string {
	seen := make(map[string]struct{}, len(m))
	out := make([]string, 0, len(m))
	for _, v := range m {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// EndpointCache persists the bootstrapped endpoint set. Load returns
// (nil, nil) when nothing is cached.
type EndpointCache interface {
	Load(ctx context.Context) (*EndpointSet, error)
	Store(ctx context.Context, set *EndpointSet) error
	Invalidate(ctx context.Context) error
}

// FileEndpointCache keeps the set as plaintext JSON in one file.
type FileEndpointCache struct {
	path string
}

// NewFileEndpointCache returns a cache backed by path.
func NewFileEndpointCache(path string) *FileEndpointCache {
	return &FileEndpointCache{path: path}
}

func (c *FileEndpointCache) Load(_ context.Context) (*EndpointSet, error) {
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read endpoint cache: %w", err)
	}

	var set EndpointSet
	if err := json.Unmarshal(b, &set); err != nil {
		return nil, fmt.Errorf("decode endpoint cache: %w", err)
	}
	return &set, nil
}

func (c *FileEndpointCache) Store(_ context.Context, set *EndpointSet) error {
	b, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode endpoint cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create endpoint cache dir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create endpoint cache: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("write endpoint cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close endpoint cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}

func (c *FileEndpointCache) Invalidate(_ context.Context) error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove endpoint cache: %w", err)
	}
	return nil
}

// MemoryEndpointCache keeps the set in process memory.
type MemoryEndpointCache struct {
	mu  sync.Mutex
	set *EndpointSet
}

// NewMemoryEndpointCache returns a cache, optionally pre-seeded.
func NewMemoryEndpointCache(seed *EndpointSet) *MemoryEndpointCache {
	return &MemoryEndpointCache{set: seed}
}

func (c *MemoryEndpointCache) Load(_ context.Context) (*EndpointSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set, nil
}

func (c *MemoryEndpointCache) Store(_ context.Context, set *EndpointSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = set
	return nil
}

func (c *MemoryEndpointCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = nil
	return nil
}

// Bootstrap performs the getDCs discovery call against url and appends the
// static URL lists to the result.
func Bootstrap(ctx context.Context, httpClient *http.Client, url, userAgent string) (*EndpointSet, error) {
	body, err := json.Marshal(bootstrapRequest{
		APIVersion: BootstrapAPIVersion,
		Method:     "getDCs",
		Client:     DefaultClientInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("encode bootstrap request: %w", err)
	}

	raw, err := post(ctx, httpClient, url, body, userAgent)
	if err != nil {
		return nil, &apierrors.TransportError{Method: "getDCs", URL: url, Attempt: 1, Err: err}
	}

	var resp bootstrapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &apierrors.TransportError{Method: "getDCs", URL: url, Attempt: 1, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Status != StatusOK {
		return nil, &apierrors.APIError{Method: "getDCs", Status: resp.Status, StatusDet: resp.StatusDet}
	}
	if resp.Data == nil {
		return nil, &apierrors.TransportError{Method: "getDCs", URL: url, Attempt: 1, Err: errors.New("response has no data")}
	}
	if err := resp.Data.validate(); err != nil {
		return nil, &apierrors.TransportError{Method: "getDCs", URL: url, Attempt: 1, Err: err}
	}

	set := resp.Data
	set.BootstrapURLs = append([]string(nil), StaticBootstrapURLs...)
	set.WebURLs = append([]string(nil), StaticWebURLs...)
	return set, nil
}

// post sends body with the fixed platform headers and returns the response
// body. Non-2xx statuses are errors.
func post(ctx context.Context, httpClient *http.Client, url string, body []byte, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Origin", HeaderOrigin)
	req.Header.Set("Referer", HeaderReferer)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &httpStatusError{StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return b, nil
}
