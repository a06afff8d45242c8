package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/history"
	"github.com/rconsole-project/rconsole/internal/rcon"
)

type fakeSession struct {
	reply         string
	err           error
	connected     bool
	authenticated bool
	executed      []string
}

func (f *fakeSession) Execute(ctx context.Context, command string) (string, error) {
	f.executed = append(f.executed, command)
	return f.reply, f.err
}

func (f *fakeSession) IsConnected() bool     { return f.connected }
func (f *fakeSession) IsAuthenticated() bool { return f.authenticated }
func (f *fakeSession) Address() string       { return "127.0.0.1:27015" }

type fakeHistory struct {
	entries []history.Entry
	err     error
}

func (f *fakeHistory) Recent(limit int) ([]history.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

func (f *fakeHistory) Search(term string, limit int) ([]history.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []history.Entry
	for _, e := range f.entries {
		if strings.Contains(e.Command, term) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistory) Count() (int64, error) {
	return int64(len(f.entries)), f.err
}

func newTestServer(cfg config.GatewayConfig, session Executor, hist HistoryReader) *Server {
	return NewServer(cfg, session, hist, nil)
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestGateway_ping(t *testing.T) {
	s := newTestServer(config.GatewayConfig{}, &fakeSession{}, nil)

	w := doRequest(t, s, http.MethodGet, "/api/public/ping", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGateway_commandRequiresToken(t *testing.T) {
	s := newTestServer(config.GatewayConfig{APIToken: "secret"}, &fakeSession{}, nil)

	w := doRequest(t, s, http.MethodPost, "/api/command", "", `{"command":"status"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/command", "wrong", `{"command":"status"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateway_commandSuccess(t *testing.T) {
	session := &fakeSession{reply: "hostname: srv\n", connected: true, authenticated: true}
	s := newTestServer(config.GatewayConfig{APIToken: "secret"}, session, nil)

	w := doRequest(t, s, http.MethodPost, "/api/command", "secret", `{"command":"status"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "status", resp["command"])
	assert.Equal(t, "hostname: srv\n", resp["reply"])
	assert.Equal(t, []string{"status"}, session.executed)
}

func TestGateway_commandMissingBody(t *testing.T) {
	s := newTestServer(config.GatewayConfig{}, &fakeSession{}, nil)

	w := doRequest(t, s, http.MethodPost, "/api/command", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGateway_commandErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{rcon.ErrNotConnected, http.StatusServiceUnavailable},
		{rcon.ErrNotAuthorized, http.StatusServiceUnavailable},
		{rcon.ErrSendUnavailable, http.StatusServiceUnavailable},
		{rcon.ErrRequestPending, http.StatusConflict},
		{rcon.ErrPacketTooLarge, http.StatusRequestEntityTooLarge},
		{rcon.ErrTimeout, http.StatusGatewayTimeout},
		{&rcon.TransportError{Cause: http.ErrAbortHandler}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		s := newTestServer(config.GatewayConfig{}, &fakeSession{err: tc.err}, nil)
		w := doRequest(t, s, http.MethodPost, "/api/command", "", `{"command":"status"}`)
		assert.Equal(t, tc.want, w.Code, "error %v", tc.err)
	}
}

func TestGateway_status(t *testing.T) {
	session := &fakeSession{connected: true, authenticated: true}
	hist := &fakeHistory{entries: []history.Entry{{Command: "status"}}}
	s := newTestServer(config.GatewayConfig{}, session, hist)

	w := doRequest(t, s, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "127.0.0.1:27015", resp["server"])
	assert.Equal(t, true, resp["connected"])
	assert.Equal(t, true, resp["authenticated"])
	assert.Equal(t, float64(1), resp["commands_recorded"])
}

func TestGateway_statusIsCached(t *testing.T) {
	session := &fakeSession{connected: true, authenticated: true}
	s := newTestServer(config.GatewayConfig{StatusCacheSec: 60}, session, nil)

	w := doRequest(t, s, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":true`)

	// State changes are invisible until the cache entry expires.
	session.connected = false
	w = doRequest(t, s, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":true`)
}

func TestGateway_history(t *testing.T) {
	hist := &fakeHistory{entries: []history.Entry{
		{Command: "kick player1"},
		{Command: "status"},
	}}
	s := newTestServer(config.GatewayConfig{}, &fakeSession{}, hist)

	w := doRequest(t, s, http.MethodGet, "/api/history", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []history.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)

	w = doRequest(t, s, http.MethodGet, "/api/history?q=kick", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "kick player1", resp.Entries[0].Command)
}

func TestGateway_historyBadLimit(t *testing.T) {
	s := newTestServer(config.GatewayConfig{}, &fakeSession{}, &fakeHistory{})

	w := doRequest(t, s, http.MethodGet, "/api/history?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/history?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGateway_historyDisabled(t *testing.T) {
	s := newTestServer(config.GatewayConfig{}, &fakeSession{}, nil)

	w := doRequest(t, s, http.MethodGet, "/api/history", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGateway_unknownRoute(t *testing.T) {
	s := newTestServer(config.GatewayConfig{}, &fakeSession{}, nil)

	w := doRequest(t, s, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
