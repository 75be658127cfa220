package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/api"
	"github.com/rubikalib/client-go/internal/apierrors"
)

// UploadResult identifies an uploaded file for later messages and
// downloads.
type UploadResult struct {
	FileID     string
	DC         string
	AccessHash string
}

// Key returns the download key of the uploaded file.
func (r UploadResult) Key() Key {
	return Key{AccessHash: r.AccessHash, FileID: r.FileID, DC: r.DC}
}

type sendFileInput struct {
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	Mime     string `json:"mime"`
}

type sendFileData struct {
	ID             idString `json:"id"`
	DCID           idString `json:"dc_id"`
	AccessHashSend string   `json:"access_hash_send"`
	UploadURL      string   `json:"upload_url"`
}

type partResponse struct {
	Status    string `json:"status"`
	StatusDet string `json:"status_det"`
	Data      *struct {
		AccessHashRec string `json:"access_hash_rec"`
	} `json:"data"`
}

// idString accepts a JSON string or number.
type idString string

func (s *idString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = idString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*s = idString(n.String())
	return nil
}

// Upload sends the file at path. The mime field carries the file extension
// without the dot, as the web client does.
func (e *Engine) Upload(ctx context.Context, path string) (UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, &apierrors.TransferError{Op: "upload", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return UploadResult{}, &apierrors.TransferError{Op: "upload", Err: err}
	}
	if info.IsDir() {
		return UploadResult{}, &apierrors.ValidationError{Field: "path", Reason: "is a directory"}
	}

	creds, err := e.credentials()
	if err != nil {
		return UploadResult{}, err
	}

	name := filepath.Base(path)
	size := info.Size()
	resp, err := e.caller.Call(ctx, "requestSendFile", sendFileInput{
		FileName: name,
		Size:     size,
		Mime:     strings.TrimPrefix(filepath.Ext(name), "."),
	})
	if err != nil {
		return UploadResult{}, err
	}

	var slot sendFileData
	if err := resp.Data.Decode(&slot); err != nil {
		return UploadResult{}, &apierrors.TransferError{Op: "upload", Err: err}
	}
	if slot.UploadURL == "" || slot.ID == "" {
		return UploadResult{}, &apierrors.TransferError{Op: "upload", Err: errors.New("requestSendFile returned no upload slot")}
	}

	log := e.logger.WithFields(logrus.Fields{
		"function":    "Upload",
		"transfer_id": uuid.NewString(),
		"file_id":     string(slot.ID),
		"dc":          string(slot.DCID),
		"size":        size,
	})

	chunk := int64(e.uploadChunk)
	total := max((size+chunk-1)/chunk, 1)
	buf := make([]byte, chunk)

	log.WithField("parts", total).Debug("Starting upload")

	var accessHash string
	for part := int64(1); part <= total; part++ {
		offset := (part - 1) * chunk
		if err := ctx.Err(); err != nil {
			return UploadResult{}, &apierrors.TransferError{Op: "upload", Offset: offset, Err: err}
		}

		n, err := io.ReadFull(f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return UploadResult{}, &apierrors.TransferError{Op: "upload", Offset: offset, Err: err}
		}

		hash, err := e.sendPart(ctx, slot, creds.AuthKey, creds.UserAgent, part, total, buf[:n])
		if err != nil {
			log.WithError(err).WithField("part", part).Warn("Upload part failed")
			return UploadResult{}, &apierrors.TransferError{Op: "upload", Offset: offset, Err: err}
		}
		accessHash = hash
		e.report(offset+int64(n), size)
	}

	if accessHash == "" {
		return UploadResult{}, &apierrors.TransferError{Op: "upload", Offset: size, Err: ErrMissingAccessHash}
	}

	log.Info("Upload complete")
	return UploadResult{FileID: string(slot.ID), DC: string(slot.DCID), AccessHash: accessHash}, nil
}

func (e *Engine) sendPart(ctx context.Context, slot sendFileData, authKey, userAgent string, part, total int64, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slot.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Origin", api.HeaderOrigin)
	req.Header.Set("Referer", api.HeaderReferer)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("auth", authKey)
	req.Header.Set("file-id", string(slot.ID))
	req.Header.Set("access-hash-send", slot.AccessHashSend)
	req.Header.Set("part-number", strconv.FormatInt(part, 10))
	req.Header.Set("total-part", strconv.FormatInt(total, 10))
	req.Header.Set("chunk-size", strconv.Itoa(len(data)))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", &apierrors.TransportError{Method: "uploadFile", URL: slot.UploadURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &apierrors.TransportError{
			Method: "uploadFile",
			URL:    slot.UploadURL,
			Err:    fmt.Errorf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	var pr partResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", &apierrors.TransportError{Method: "uploadFile", URL: slot.UploadURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	if pr.Status != api.StatusOK {
		return "", &apierrors.APIError{Method: "uploadFile", Status: pr.Status, StatusDet: pr.StatusDet}
	}
	if pr.Data != nil {
		return pr.Data.AccessHashRec, nil
	}
	return "", nil
}
