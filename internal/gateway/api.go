package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"ShapeBoard/internal/api"
	"ShapeBoard/internal/document"
	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/session"
	"ShapeBoard/internal/state"
)

// DefaultTimeout bounds a single API call when no client is supplied.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// APIClient talks to the drawing API. The bearer token and username come
// from the session store on every call.
type APIClient struct {
	baseURL string
	http    *http.Client
	session session.Store
	now     func() time.Time
	logger  *log.Logger
}

// APIOption configures an APIClient.
type APIOption func(*APIClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *APIClient) { a.http = c }
}

// WithLogger sets the client's logger.
func WithLogger(l *log.Logger) APIOption {
	return func(a *APIClient) { a.logger = l.WithPrefix("api") }
}

// NewAPIClient creates a client for the API at baseURL.
func NewAPIClient(baseURL string, sess session.Store, opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		session: sess,
		now:     time.Now,
		logger:  log.Default().WithPrefix("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was created with.
func (c *APIClient) BaseURL() string { return c.baseURL }

// SignedIn reports whether a token is stored.
func (c *APIClient) SignedIn() bool { return c.session.Token() != "" }

// Push implements Gateway: the drawing is encoded as a JSON string and sent
// wrapped in {"drawing": ...}.
func (c *APIClient) Push(ctx context.Context, d state.Drawing) error {
	token := c.session.Token()
	if token == "" {
		return errors.New(errors.CodeUnauthorized, "not signed in")
	}
	data, err := document.Encode(d, c.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(api.DrawingEnvelope{Drawing: string(data)})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encode envelope")
	}

	resp, err := c.do(ctx, http.MethodPut, api.PathDrawing, token, body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.logger.Info("drawing pushed", "title", d.Title, "objects", len(d.Objects))
	return nil
}

// Pull implements Gateway. The envelope's drawing field is itself a JSON
// document and is decoded in a second pass. A body that is not JSON is a
// parse failure; a JSON body without a string drawing is an invalid format.
func (c *APIClient) Pull(ctx context.Context) (state.Drawing, error) {
	token := c.session.Token()
	if token == "" {
		return state.Drawing{}, errors.New(errors.CodeUnauthorized, "not signed in")
	}
	resp, err := c.do(ctx, http.MethodGet, api.PathDrawing, token, nil)
	if err != nil {
		return state.Drawing{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return state.Drawing{}, errors.Wrap(errors.CodeTransportFailure, err, "read response")
	}
	var env struct {
		Drawing json.RawMessage `json:"drawing"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return state.Drawing{}, errors.Wrap(errors.CodeParseFailure, err, "parse response")
	}
	if len(env.Drawing) == 0 || string(env.Drawing) == "null" {
		return state.Drawing{}, errors.New(errors.CodeInvalidFormat, "response has no drawing")
	}
	var doc string
	if err := json.Unmarshal(env.Drawing, &doc); err != nil {
		return state.Drawing{}, errors.Wrap(errors.CodeInvalidFormat, err, "drawing must be a JSON string")
	}
	d, err := document.Decode([]byte(doc))
	if err != nil {
		return state.Drawing{}, err
	}
	c.logger.Info("drawing pulled", "title", d.Title, "objects", len(d.Objects))
	return d, nil
}

// Register creates an account and stores the returned session.
func (c *APIClient) Register(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, api.PathRegister, username, password)
}

// Login signs in and stores the returned session.
func (c *APIClient) Login(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, api.PathLogin, username, password)
}

func (c *APIClient) authenticate(ctx context.Context, path, username, password string) error {
	body, err := json.Marshal(api.Credentials{Username: username, Password: password})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encode credentials")
	}
	resp, err := c.do(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out api.AuthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return errors.Wrap(errors.CodeParseFailure, err, "parse auth response")
	}
	if out.Token == "" {
		return errors.New(errors.CodeServerRejected, "server returned no token")
	}
	if err := c.session.Save(out.Username, out.Token); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "save session")
	}
	c.logger.Info("signed in", "username", out.Username)
	return nil
}

// Logout invalidates the session on the server and clears local
// credentials. Local credentials are cleared even when the server call
// fails; the server error is still returned.
func (c *APIClient) Logout(ctx context.Context) error {
	token, username := c.session.Token(), c.session.Username()
	defer func() {
		if err := c.session.Clear(); err != nil {
			c.logger.Warn("clear session", "err", err)
		}
	}()
	if token == "" {
		return nil
	}

	body, err := json.Marshal(api.LogoutRequest{Username: username, Token: token})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encode logout")
	}
	resp, err := c.do(ctx, http.MethodPost, api.PathLogout, token, body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.logger.Info("signed out", "username", username)
	return nil
}

// EventsURL returns the websocket address for drawing change events.
func (c *APIClient) EventsURL() (string, error) {
	u, err := url.Parse(c.baseURL + api.PathDrawingEvents)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Token returns the stored bearer token.
func (c *APIClient) Token() string { return c.session.Token() }

// do sends one request and maps failures onto the error taxonomy. On success
// the caller owns resp.Body.
func (c *APIClient) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeTransportFailure, err, "%s %s", method, path)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	msg := readMessage(resp.Body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	c.logger.Warn("request rejected", "method", method, "path", path, "status", resp.StatusCode, "message", msg)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.New(errors.CodeUnauthorized, "%s", msg)
	}
	return nil, errors.New(errors.CodeServerRejected, "%s", msg)
}

func readMessage(r io.Reader) string {
	var e api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(r, maxBody)).Decode(&e); err != nil {
		return ""
	}
	return e.Message
}

var _ Gateway = (*APIClient)(nil)
