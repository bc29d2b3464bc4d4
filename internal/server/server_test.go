package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ShapeBoard/internal/api"
	"ShapeBoard/internal/config"
	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/gateway"
	shapenet "ShapeBoard/internal/net"
	"ShapeBoard/internal/state"
	"ShapeBoard/internal/storage"
)

const validDoc = `{"title":"Sketch","objects":[{"id":"circle-1","type":"circle","x":10,"y":20}]}`

func newTestServer(t *testing.T, opts ...func(*config.ServerConfig)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default().Server
	cfg.JWTSecret = "test-secret"
	for _, o := range opts {
		o(&cfg)
	}

	srv, err := New(cfg, storage.NewMemoryStore(), log.New(io.Discard), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.hub.Close()
		ts.Close()
	})
	return srv, ts
}

func send(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func register(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	resp, body := send(t, http.MethodPost, ts.URL+api.PathRegister, "", api.Credentials{Username: username, Password: password})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out api.AuthResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, username, out.Username)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func message(t *testing.T, body []byte) string {
	t.Helper()
	var e api.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e.Message
}

func TestDrawingRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice", "secret1")

	resp, body := send(t, http.MethodGet, ts.URL+api.PathDrawing, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No drawing saved yet", message(t, body))

	resp, _ = send(t, http.MethodPut, ts.URL+api.PathDrawing, token, api.DrawingEnvelope{Drawing: validDoc})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = send(t, http.MethodGet, ts.URL+api.PathDrawing, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env api.DrawingEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, validDoc, env.Drawing)

	// drawings are per user
	other := register(t, ts, "bob", "secret2")
	resp, _ = send(t, http.MethodGet, ts.URL+api.PathDrawing, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPutRejectsInvalidDocument(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice", "secret1")

	tests := []struct {
		name    string
		drawing string
	}{
		{"not json", "{oops"},
		{"empty", ""},
		{"missing objects", `{"title":"x"}`},
		{"stray closing brace", `{"title":"x","objects":[]}}`},
		{"unknown kind", `{"title":"x","objects":[{"id":"a","type":"hexagon","x":1,"y":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := send(t, http.MethodPut, ts.URL+api.PathDrawing, token, api.DrawingEnvelope{Drawing: tt.drawing})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.True(t, strings.HasPrefix(message(t, body), "Invalid drawing: "), string(body))
		})
	}

	resp, _ := send(t, http.MethodGet, ts.URL+api.PathDrawing, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "rejected documents are not stored")
}

func TestPutRejectsOversizedBody(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.ServerConfig) { c.MaxBodyBytes = 128 })
	token := register(t, ts, "alice", "secret1")

	big := `{"title":"` + strings.Repeat("x", 512) + `","objects":[]}`
	resp, _ := send(t, http.MethodPut, ts.URL+api.PathDrawing, token, api.DrawingEnvelope{Drawing: big})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"short username", api.Credentials{Username: "ab", Password: "secret1"}, "username must be at least 3 characters"},
		{"non alphanumeric", api.Credentials{Username: "al ice", Password: "secret1"}, "username must contain only letters and digits"},
		{"short password", api.Credentials{Username: "alice", Password: "123"}, "password must be at least 6 characters"},
		{"missing password", map[string]string{"username": "alice"}, "password is required"},
		{"malformed", "{", "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := send(t, http.MethodPost, ts.URL+api.PathRegister, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, message(t, body))
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts, "alice", "secret1")

	resp, body := send(t, http.MethodPost, ts.URL+api.PathRegister, "", api.Credentials{Username: "alice", Password: "another"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Username already taken", message(t, body))
}

func TestLogin(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts, "alice", "secret1")

	resp, body := send(t, http.MethodPost, ts.URL+api.PathLogin, "", api.Credentials{Username: "alice", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out api.AuthResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.Token)

	resp, _ = send(t, http.MethodGet, ts.URL+api.PathDrawing, out.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "login token is accepted")

	for _, c := range []api.Credentials{
		{Username: "alice", Password: "wrong-password"},
		{Username: "nobody", Password: "secret1"},
	} {
		resp, body := send(t, http.MethodPost, ts.URL+api.PathLogin, "", c)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid username or password", message(t, body))
	}
}

func TestDrawingRequiresToken(t *testing.T) {
	_, ts := newTestServer(t)

	for _, token := range []string{"", "not-a-jwt"} {
		resp, _ := send(t, http.MethodGet, ts.URL+api.PathDrawing, token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp, _ = send(t, http.MethodPut, ts.URL+api.PathDrawing, token, api.DrawingEnvelope{Drawing: validDoc})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	other, err := NewTokenService("another-secret", time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue("alice")
	require.NoError(t, err)
	resp, _ := send(t, http.MethodGet, ts.URL+api.PathDrawing, forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	_, ts := newTestServer(t)
	token := register(t, ts, "alice", "secret1")

	resp, _ := send(t, http.MethodPost, ts.URL+api.PathLogout, "", api.LogoutRequest{Username: "bob", Token: token})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token belongs to another user")

	resp, _ = send(t, http.MethodPost, ts.URL+api.PathLogout, "", api.LogoutRequest{Username: "alice", Token: token})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := send(t, http.MethodGet, ts.URL+api.PathDrawing, token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has been revoked", message(t, body))
}

func TestExpiredToken(t *testing.T) {
	var offset atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }

	cfg := config.Default().Server
	cfg.JWTSecret = "test-secret"
	cfg.TokenTTL = config.Duration{Duration: time.Hour}
	srv, err := New(cfg, storage.NewMemoryStore(), log.New(io.Discard), WithBcryptCost(bcrypt.MinCost), WithClock(clock))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	token := register(t, ts, "alice", "secret1")
	offset.Store(int64(2 * time.Hour))

	resp, _ := send(t, http.MethodGet, ts.URL+api.PathDrawing, token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := send(t, http.MethodGet, ts.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	register(t, ts, "alice", "secret1")

	resp, body = send(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `shapeboard_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, string(body), `shapeboard_auth_attempts_total{action="register",result="success"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := send(t, http.MethodGet, ts.URL+"/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", message(t, body))
}

func eventsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + api.PathDrawingEvents
}

func TestDrawingEventsBroadcastOnPut(t *testing.T) {
	srv, ts := newTestServer(t)
	token := register(t, ts, "alice", "secret1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan api.Event, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		shapenet.Watch(ctx, eventsURL(ts), token, func(ev api.Event) { events <- ev })
	}()

	require.Eventually(t, func() bool { return srv.hub.Count("alice") == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, _ := send(t, http.MethodPut, ts.URL+api.PathDrawing, token, api.DrawingEnvelope{Drawing: validDoc})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case ev := <-events:
		assert.Equal(t, api.EventDrawingUpdated, ev.Type)
		_, err := time.Parse(time.RFC3339Nano, ev.UpdatedAt)
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	wg.Wait()
}

func TestDrawingEventsTokenInQuery(t *testing.T) {
	srv, ts := newTestServer(t)
	token := register(t, ts, "alice", "secret1")

	_, resp, err := websocket.DefaultDialer.Dial(eventsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(eventsURL(ts)+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.hub.Count("alice") == 1 }, 2*time.Second, 10*time.Millisecond)
}

type memSession struct {
	mu              sync.Mutex
	username, token string
}

func (m *memSession) Token() string    { m.mu.Lock(); defer m.mu.Unlock(); return m.token }
func (m *memSession) Username() string { m.mu.Lock(); defer m.mu.Unlock(); return m.username }
func (m *memSession) Save(u, t string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username, m.token = u, t
	return nil
}
func (m *memSession) Clear() error { return m.Save("", "") }

func TestAPIClientAgainstServer(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	sess := &memSession{}
	client := gateway.NewAPIClient(ts.URL, sess, gateway.WithLogger(log.New(io.Discard)))

	_, err := client.Pull(ctx)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized), "signed out")

	require.NoError(t, client.Register(ctx, "alice", "secret1"))
	assert.Equal(t, "alice", sess.Username())

	_, err = client.Pull(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeServerRejected))
	assert.Equal(t, "No drawing saved yet", errors.Message(err))

	store := state.NewStore(log.New(io.Discard))
	store.SetTitle("Garden")
	store.AddShape(state.Circle, 10, 20)
	store.AddShape(state.Triangle, 30, 40)
	require.NoError(t, gateway.Export(ctx, client, store))

	// a second client signed in as the same user sees the drawing
	other := gateway.NewAPIClient(ts.URL, &memSession{}, gateway.WithLogger(log.New(io.Discard)))
	require.NoError(t, other.Login(ctx, "alice", "secret1"))
	got, err := other.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), got)

	require.NoError(t, client.Logout(ctx))
	assert.Empty(t, sess.Token())
	err = client.Push(ctx, got)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}
