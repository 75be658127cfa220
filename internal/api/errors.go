package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rubikalib/client-go/internal/apierrors"
)

// Response statuses counted as success.
const (
	StatusOK          = "OK"
	StatusSendPassKey = "SendPassKey"
)

// ErrNullValue is returned when decoding an absent or null Value.
var ErrNullValue = errors.New("value is null")

// classify turns a decrypted payload into a Response or an APIError.
func classify(method string, p *responsePayload) (*Response, error) {
	switch p.Status {
	case StatusOK, StatusSendPassKey:
		return &Response{
			Status:    p.Status,
			StatusDet: p.StatusDet,
			Data:      p.Data,
		}, nil
	}

	return nil, &apierrors.APIError{
		Method:    method,
		Status:    p.Status,
		StatusDet: p.StatusDet,
		Message:   showMessage(p.ClientShowMessage),
	}
}

// showMessage extracts the text of client_show_message, which is either a
// bare string or an object carrying the text under "message" or "text".
func showMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Text
	}
	return ""
}

// httpStatusError is the cause wrapped in a TransportError when the server
// answers with a non-2xx status.
type httpStatusError struct {
	StatusCode int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}
