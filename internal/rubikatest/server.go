// Package rubikatest provides an in-process fake of the Rubika RPC and
// bootstrap endpoints for tests.
package rubikatest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rubikalib/client-go/internal/crypto"
)

// Call is one decrypted RPC request seen by the server.
type Call struct {
	Method string
	Input  json.RawMessage
	Client json.RawMessage

	// Key is the key the payload was encrypted with.
	Key        string
	TmpSession string
	Auth       string
	Sign       string
	DataEnc    string
	Header     http.Header
}

// Signed reports whether the request carried a signature.
func (c Call) Signed() bool {
	return c.Sign != ""
}

// Reply describes the server's answer to a Call.
type Reply struct {
	Status            string
	StatusDet         string
	Data              any
	ClientShowMessage any
	// Plain sends status fields without data_enc.
	Plain bool
	// HTTPStatus, when set, is written instead of a body.
	HTTPStatus int
}

// OK returns a successful reply carrying data.
func OK(data any) Reply {
	return Reply{Status: "OK", Data: data}
}

// Fail returns an error reply.
func Fail(status, statusDet string) Reply {
	return Reply{Status: status, StatusDet: statusDet}
}

// Handler answers a decrypted call.
type Handler func(Call) Reply

// Server is a fake API and bootstrap server.
type Server struct {
	*httptest.Server
	t   testing.TB
	mux *http.ServeMux

	mu         sync.Mutex
	handler    Handler
	calls      []Call
	bootstraps int
}

// New starts a server. It is closed when the test ends.
func New(t testing.TB, handler Handler) *Server {
	t.Helper()

	s := &Server{
		t:       t,
		mux:     http.NewServeMux(),
		handler: handler,
	}
	s.mux.HandleFunc("/getdcs", s.serveBootstrap)
	s.mux.HandleFunc("/api", s.serveAPI)
	s.Server = httptest.NewServer(s.mux)
	t.Cleanup(s.Close)
	return s
}

// Handle registers an extra handler, for upload or download endpoints.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// BootstrapURL is the getDCs URL.
func (s *Server) BootstrapURL() string {
	return s.URL + "/getdcs"
}

// APIURL is the RPC URL advertised by bootstrap.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// SetHandler replaces the RPC handler.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Calls returns the RPC calls received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Methods returns the method names received so far, in order.
func (s *Server) Methods() []string {
	var out []string
	for _, c := range s.Calls() {
		out = append(out, c.Method)
	}
	return out
}

// Bootstraps returns how many getDCs calls were served.
func (s *Server) Bootstraps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootstraps
}

func (s *Server) serveBootstrap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIVersion string `json:"api_version"`
		Method     string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "getDCs" {
		http.Error(w, "bad bootstrap request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.bootstraps++
	s.mu.Unlock()

	sockets := map[string]string{"1": "ws" + strings.TrimPrefix(s.URL, "http") + "/socket"}

	writeJSON(w, map[string]any{
		"status": "OK",
		"data": map[string]any{
			"API":            map[string]string{"1": s.APIURL()},
			"default_api":    "1",
			"socket":         sockets,
			"default_socket": "1",
		},
	})
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	var env struct {
		APIVersion string `json:"api_version"`
		DataEnc    string `json:"data_enc"`
		TmpSession string `json:"tmp_session"`
		Auth       string `json:"auth"`
		Sign       string `json:"sign"`
	}
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "bad envelope", http.StatusBadRequest)
		return
	}

	key := env.TmpSession
	if env.Auth != "" {
		key = crypto.InvertPhrase(env.Auth)
	}

	plaintext, err := crypto.Decrypt(env.DataEnc, key)
	if err != nil {
		http.Error(w, "cannot decrypt", http.StatusBadRequest)
		return
	}
	var payload struct {
		Method string          `json:"method"`
		Input  json.RawMessage `json:"input"`
		Client json.RawMessage `json:"client"`
	}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	call := Call{
		Method:     payload.Method,
		Input:      payload.Input,
		Client:     payload.Client,
		Key:        key,
		TmpSession: env.TmpSession,
		Auth:       env.Auth,
		Sign:       env.Sign,
		DataEnc:    env.DataEnc,
		Header:     r.Header.Clone(),
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	handler := s.handler
	s.mu.Unlock()

	reply := OK(map[string]any{})
	if handler != nil {
		reply = handler(call)
	}

	if reply.HTTPStatus != 0 {
		w.WriteHeader(reply.HTTPStatus)
		return
	}
	if reply.Plain {
		writeJSON(w, map[string]any{"status": reply.Status, "status_det": reply.StatusDet})
		return
	}

	body := map[string]any{"status": reply.Status}
	if reply.StatusDet != "" {
		body["status_det"] = reply.StatusDet
	}
	if reply.Data != nil {
		body["data"] = reply.Data
	}
	if reply.ClientShowMessage != nil {
		body["client_show_message"] = reply.ClientShowMessage
	}

	b, err := json.Marshal(body)
	if err != nil {
		s.t.Errorf("rubikatest: encode reply: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	enc, err := crypto.Encrypt(b, key)
	if err != nil {
		s.t.Errorf("rubikatest: encrypt reply: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"data_enc": enc})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
