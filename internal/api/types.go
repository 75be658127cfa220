package api

import "encoding/json"

// Protocol versions.
const (
	APIVersion          = "6"
	BootstrapAPIVersion = "4"
)

// Fixed request headers.
const (
	HeaderOrigin  = "https://web.rubika.ir"
	HeaderReferer = "https://web.rubika.ir/"
)

// ClientInfo is the platform metadata attached to every payload.
type ClientInfo struct {
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	Platform   string `json:"platform"`
	Package    string `json:"package"`
	LangCode   string `json:"lang_code"`
}

// DefaultClientInfo identifies the client as the web app.
var DefaultClientInfo = ClientInfo{
	AppName:    "Main",
	AppVersion: "4.4.5",
	Platform:   "Web",
	Package:    "web.rubika.ir",
	LangCode:   "fa",
}

// Response is a successful call result.
type Response struct {
	Status    string
	StatusDet string
	// Data is the payload's data member. It is null for some SendPassKey
	// responses.
	Data Value
}

// NeedsPassKey reports whether the server asked for the two-factor passkey.
func (r *Response) NeedsPassKey() bool {
	return r.Status == StatusSendPassKey
}

type requestPayload struct {
	Method string     `json:"method"`
	Input  any        `json:"input"`
	Client ClientInfo `json:"client"`
}

type requestEnvelope struct {
	APIVersion string `json:"api_version"`
	DataEnc    string `json:"data_enc"`
	TmpSession string `json:"tmp_session,omitempty"`
	Auth       string `json:"auth,omitempty"`
	Sign       string `json:"sign,omitempty"`
}

// responseEnvelope also carries status fields because some rejections
// arrive unencrypted.
type responseEnvelope struct {
	DataEnc   string `json:"data_enc"`
	Status    string `json:"status"`
	StatusDet string `json:"status_det"`
}

type responsePayload struct {
	Status            string          `json:"status"`
	StatusDet         string          `json:"status_det"`
	Data              Value           `json:"data"`
	ClientShowMessage json.RawMessage `json:"client_show_message"`
}

type bootstrapRequest struct {
	APIVersion string     `json:"api_version"`
	Method     string     `json:"method"`
	Client     ClientInfo `json:"client"`
}

type bootstrapResponse struct {
	Status    string       `json:"status"`
	StatusDet string       `json:"status_det"`
	Data      *EndpointSet `json:"data"`
}
