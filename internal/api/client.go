// Package api is the HTTP client for the chat backend's request/response
// endpoints. The push stream lives in package stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/logging"
	"github.com/soyeahso/dmschat/internal/version"
)

// ErrEmptyText is returned when a message or question is blank after trimming.
var ErrEmptyText = errors.New("api: empty text")

// StatusError is returned for non-2xx responses and for 2xx responses that
// carry {"ok": false}.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Jar     http.CookieJar
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client talks to the chat backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	now       func() time.Time
	log       *logging.Logger
}

// New creates a Client for opts.BaseURL.
func New(opts Options, log *logging.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       opts.Jar,
			Transport: opts.Transport,
		},
		userAgent: version.UserAgent(),
		now:       time.Now,
		log:       log.Sub("api"),
	}, nil
}

// BaseURL returns the backend's base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// StreamURL returns the push stream address for cid.
func (c *Client) StreamURL(cid string) string {
	return c.endpoint("/sse/stream/" + url.PathEscape(cid))
}

// StreamClient returns an HTTP client sharing this client's cookies and
// transport but without a request timeout, for long-lived streams.
func (c *Client) StreamClient() *http.Client {
	return &http.Client{Jar: c.http.Jar, Transport: c.http.Transport}
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// okResponse is the envelope most POST endpoints answer with.
type okResponse struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env okResponse
	_ = json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if msg == "" {
			msg = truncate(strings.TrimSpace(string(data)), 200)
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if env.OK != nil && !*env.OK {
		return &StatusError{Code: resp.StatusCode, Message: env.Error}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// Status polls agent presence. The timestamp query defeats caches.
func (c *Client) Status(ctx context.Context) (domain.Presence, error) {
	var p domain.Presence
	path := "/api/status?t=" + strconv.FormatInt(c.now().UnixMilli(), 10)
	err := c.do(ctx, http.MethodGet, path, nil, &p)
	return p, err
}

// History returns the conversation for cid, oldest first.
func (c *Client) History(ctx context.Context, cid string) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	if err := c.do(ctx, http.MethodGet, "/api/chat/history/"+url.PathEscape(cid), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Heartbeat tells the backend cid is alive.
func (c *Client) Heartbeat(ctx context.Context, cid string) error {
	return c.do(ctx, http.MethodPost, "/api/client/heartbeat", map[string]string{"cid": cid}, nil)
}

// SendMessage posts a visitor message and returns the server-assigned mid,
// which is empty when the backend does not report one.
func (c *Client) SendMessage(ctx context.Context, cid, text, tempID string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	var out struct {
		Mid string `json:"mid"`
	}
	err := c.do(ctx, http.MethodPost, "/api/client/message", map[string]string{
		"cid":    cid,
		"text":   text,
		"tempId": tempID,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Mid, nil
}

// Typing publishes who's typing state for cid.
func (c *Client) Typing(ctx context.Context, cid, who string, state bool) error {
	return c.do(ctx, http.MethodPost, "/api/typing", map[string]any{
		"cid":   cid,
		"who":   who,
		"state": state,
	}, nil)
}

// Seen acknowledges mids as read by who. The backend echoes the mids it
// marked.
func (c *Client) Seen(ctx context.Context, cid string, mids []string, who string) ([]string, error) {
	if mids == nil {
		mids = []string{}
	}
	var out struct {
		Mids []string `json:"mids"`
	}
	err := c.do(ctx, http.MethodPost, "/api/seen", map[string]any{
		"cid":  cid,
		"mids": mids,
		"who":  who,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Mids, nil
}

// Health is the backend's health report.
type Health struct {
	OK          bool `json:"ok"`
	AIKeyLoaded bool `json:"ai_key_loaded"`
}

// Health checks backend health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &h)
	return h, err
}

// Ask sends a question to the FAQ assistant and returns its answer.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyText
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ai", map[string]string{"question": question}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
