package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/apierrors"
)

// Chunk is one piece of a download.
type Chunk struct {
	Data []byte
	// Offset is the position of Data[0] in the file.
	Offset int64
}

// End returns the offset just past the chunk.
func (c Chunk) End() int64 {
	return c.Offset + int64(len(c.Data))
}

// ChunkStream yields a download's chunks in order. It is finite and cannot
// be rewound; after io.EOF or an error every further Next returns the same
// error.
type ChunkStream struct {
	engine    *Engine
	key       Key
	url       string
	authKey   string
	userAgent string
	next      int64
	err       error
}

// Offset returns the position of the next chunk.
func (s *ChunkStream) Offset() int64 {
	return s.next
}

// Next fetches the next chunk. It returns io.EOF once the server has sent
// a short chunk.
func (s *ChunkStream) Next(ctx context.Context) (Chunk, error) {
	if s.err != nil {
		return Chunk{}, s.err
	}
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}

	size := int64(s.engine.downloadChunk)
	data, err := s.fetch(ctx, s.next, s.next+size-1)
	if err != nil {
		if ctx.Err() == nil {
			s.err = err
		}
		return Chunk{}, err
	}

	chunk := Chunk{Data: data, Offset: s.next}
	s.next = chunk.End()
	if int64(len(data)) < size {
		s.err = io.EOF
	}
	if len(data) == 0 {
		return Chunk{}, io.EOF
	}
	return chunk, nil
}

func (s *ChunkStream) fetch(ctx context.Context, start, last int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Origin", api.HeaderOrigin)
	req.Header.Set("Referer", api.HeaderReferer)
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("auth", s.authKey)
	req.Header.Set("file-id", s.key.FileID)
	req.Header.Set("access-hash-rec", s.key.AccessHash)
	req.Header.Set("start-index", strconv.FormatInt(start, 10))
	req.Header.Set("last-index", strconv.FormatInt(last, 10))

	resp, err := s.engine.httpClient.Do(req)
	if err != nil {
		return nil, &apierrors.TransportError{Method: "GetFile", URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &apierrors.TransportError{
			Method: "GetFile",
			URL:    s.url,
			Err:    fmt.Errorf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	want := last - start + 1
	data, err := io.ReadAll(io.LimitReader(resp.Body, want+1))
	if err != nil {
		return nil, &apierrors.TransportError{Method: "GetFile", URL: s.url, Err: err}
	}
	if int64(len(data)) > want {
		return nil, errors.New("server sent more bytes than requested")
	}
	return data, nil
}
