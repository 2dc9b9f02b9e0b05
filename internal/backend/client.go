// Package backend is the typed client for the asset REST backend.
//
// A Client holds the transport settings shared by every console user. Bind
// attaches one user's credentials and returns a Conn, which implements
// core.Backend and the account endpoints. Credentials are injected rather
// than read from process-wide state, so each console session talks to the
// backend with its own bearer token.
//
// The backend wraps most payloads in an envelope ({"success", "data"}) and
// pages lists as {"content": [...]}; both shapes are unwrapped here so the
// engine only ever sees rows.
//
// A 401 or 403 from any endpoint is returned as *core.AuthError and reported
// to the unauthorized hook, which tears the console session down.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// Credentials supplies the bearer token of one console session.
type Credentials interface {
	AccessToken() string
}

// Token is a fixed access token.
type Token string

// AccessToken implements Credentials.
func (t Token) AccessToken() string { return string(t) }

// UnauthorizedFunc is called when the backend rejects a session's token.
type UnauthorizedFunc func(creds Credentials, status int)

// Client talks to the asset backend. It is safe for concurrent use.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	onUnauthorized UnauthorizedFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUnauthorizedHook registers the session teardown hook.
func WithUnauthorizedHook(fn UnauthorizedFunc) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a client for the backend rooted at baseURL
// (e.g. "http://localhost:8080/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Bind returns a connection acting with creds. A nil creds sends no
// Authorization header (login and signup).
func (c *Client) Bind(creds Credentials) *Conn {
	return &Conn{client: c, creds: creds}
}

// Conn is a Client bound to one session's credentials.
type Conn struct {
	client *Client
	creds  Credentials
}

var _ core.Backend = (*Conn)(nil)

// StatusError is a non-2xx response other than 401/403.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// ErrRejected is returned when the backend answers {"success": false}.
var ErrRejected = errors.New("backend rejected the request")

// newRequest builds a request with the session's bearer token.
func (c *Conn) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	target := c.client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if tok := c.creds.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// send performs the request and checks the status. On success the caller
// owns the response body.
func (c *Conn) send(req *http.Request) (*http.Response, error) {
	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		slog.Warn("backend request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		slog.Warn("backend rejected credentials", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
		if c.client.onUnauthorized != nil {
			c.client.onUnauthorized(c.creds, resp.StatusCode)
		}
		return nil, &core.AuthError{Status: resp.StatusCode}
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	serr := &StatusError{
		Method: req.Method,
		Path:   req.URL.Path,
		Status: resp.StatusCode,
		Body:   errorMessage(raw),
	}
	slog.Warn("backend request failed", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
	return nil, serr
}

// do sends a JSON request and decodes the unwrapped payload into out.
// out may be nil when the response carries nothing of interest.
func (c *Conn) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	payload, err := unwrap(raw)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// envelope is the backend's ApiResponse wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// unwrap strips the {"success", "data"} envelope when present. Bodies that
// are not JSON objects pass through unchanged.
func unwrap(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		if env.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrRejected, env.Message)
		}
		return nil, ErrRejected
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return env.Data, nil
	}
	return trimmed, nil
}

// decodeRows accepts a bare array or a page object with a content array.
// Any other shape yields no rows.
func decodeRows(payload json.RawMessage) ([]core.Row, error) {
	var rows []core.Row
	if err := json.Unmarshal(payload, &rows); err == nil {
		return rows, nil
	}
	var page struct {
		Content []core.Row `json:"content"`
	}
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return page.Content, nil
}

// decodeStrings accepts an array of scalars and stringifies each.
func decodeStrings(payload json.RawMessage) ([]string, error) {
	var items []any
	if err := json.Unmarshal(payload, &items); err != nil {
		var page struct {
			Content []any `json:"content"`
		}
		if perr := json.Unmarshal(payload, &page); perr != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		items = page.Content
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(core.Stringify(it)); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// errorMessage pulls "message" out of a JSON error body, falling back to
// the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

// getRaw fetches path and returns the unwrapped payload.
func (c *Conn) getRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	var payload json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Conn) getRows(ctx context.Context, path string, query url.Values) ([]core.Row, error) {
	payload, err := c.getRaw(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	return decodeRows(payload)
}

func (c *Conn) getStrings(ctx context.Context, path string, query url.Values) ([]string, error) {
	payload, err := c.getRaw(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	return decodeStrings(payload)
}

// getScalar fetches a single value such as the next identifier.
func (c *Conn) getScalar(ctx context.Context, path string, query url.Values) (string, error) {
	payload, err := c.getRaw(ctx, path, query)
	if err != nil {
		return "", err
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		// Plain-text bodies carry the value as-is.
		return strings.TrimSpace(string(payload)), nil
	}
	return strings.TrimSpace(core.Stringify(v)), nil
}

// pageQuery is the listing query the console always sends.
func pageQuery() url.Values {
	return url.Values{"page": {"0"}, "size": {"1000"}}
}
