// Package testutil provides a fake chat backend for package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/dmschat/internal/domain"
)

// Request is one recorded call to the backend.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    map[string]any
	Cookies []*http.Cookie
}

// Mids returns the "mids" field of a seen request as strings.
func (r Request) Mids() []string {
	raw, _ := r.Body["mids"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Backend is an in-process stand-in for the chat server: it answers every
// endpoint the widget uses, records requests, and pushes stream events.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []Request
	online   bool
	history  map[string][]domain.HistoryEntry
	fail     map[string]int
	gates    map[string]chan struct{}
	noMid    bool
	retryMs  int
	nextMid  int
	streams  map[string]map[*sseConn]struct{}
	connects int
	closed   bool
}

type sseConn struct {
	out  chan string
	drop chan struct{}
}

// NewBackend starts a fake backend that is shut down when the test ends.
func NewBackend(t testing.TB) *Backend {
	b := &Backend{
		history: make(map[string][]domain.HistoryEntry),
		fail:    make(map[string]int),
		gates:   make(map[string]chan struct{}),
		streams: make(map[string]map[*sseConn]struct{}),
	}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Get("/api/status", b.handleStatus)
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ai_key_loaded": true})
	})
	r.Get("/api/chat/history/{cid}", b.handleHistory)
	r.Post("/api/client/heartbeat", okHandler)
	r.Post("/api/client/message", b.handleMessage)
	r.Post("/api/typing", okHandler)
	r.Post("/api/seen", b.handleSeen)
	r.Post("/api/ai", b.handleAI)
	r.Get("/sse/stream/{cid}", b.handleStream)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Close)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string { return b.Server.URL }

// Close drops every stream and stops the server.
func (b *Backend) Close() {
	b.mu.Lock()
	b.closed = true
	for _, conns := range b.streams {
		for c := range conns {
			closeOnce(c.drop)
		}
	}
	for path, g := range b.gates {
		closeOnce(g)
		delete(b.gates, path)
	}
	b.mu.Unlock()
	b.Server.CloseClientConnections()
	b.Server.Close()
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// SetOnline sets the presence reported by /api/status.
func (b *Backend) SetOnline(online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = online
}

// SetHistory sets the history returned for cid.
func (b *Backend) SetHistory(cid string, entries []domain.HistoryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history[cid] = entries
}

// Fail makes every request to path answer with code. Zero clears it.
func (b *Backend) Fail(path string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if code == 0 {
		delete(b.fail, path)
		return
	}
	b.fail[path] = code
}

// Hold blocks requests to path until the returned function is called.
// Requests are recorded before they block.
func (b *Backend) Hold(path string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gates[path] = ch
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		if b.gates[path] == ch {
			delete(b.gates, path)
		}
		b.mu.Unlock()
		closeOnce(ch)
	}
}

// OmitMid makes /api/client/message answer without a mid.
func (b *Backend) OmitMid(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noMid = omit
}

// SetRetry makes streams announce a reconnect delay.
func (b *Backend) SetRetry(ms int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retryMs = ms
}

// Requests returns recorded requests whose path starts with prefix.
func (b *Backend) Requests(prefix string) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Request
	for _, r := range b.requests {
		if strings.HasPrefix(r.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// WaitRequests waits until at least n requests to prefix were recorded.
func (b *Backend) WaitRequests(t testing.TB, prefix string, n int) []Request {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		reqs := b.Requests(prefix)
		if len(reqs) >= n {
			return reqs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d requests to %s, got %d", n, prefix, len(reqs))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// OpenStreams returns the number of live streams for cid.
func (b *Backend) OpenStreams(cid string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams[cid])
}

// TotalStreams returns the number of live streams across all cids.
func (b *Backend) TotalStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, conns := range b.streams {
		n += len(conns)
	}
	return n
}

// Connects returns how many stream connections were ever accepted.
func (b *Backend) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// Push sends a JSON event to every live stream for cid.
func (b *Backend) Push(cid, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	b.PushRaw(cid, fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))
}

// PushRaw writes a raw frame to every live stream for cid.
func (b *Backend) PushRaw(cid, frame string) {
	b.mu.Lock()
	conns := make([]*sseConn, 0, len(b.streams[cid]))
	for c := range b.streams[cid] {
		conns = append(conns, c)
	}
	b.mu.Unlock()
	for _, c := range conns {
		select {
		case c.out <- frame:
		case <-c.drop:
		}
	}
}

// DropStreams closes every live stream for cid from the server side.
func (b *Backend) DropStreams(cid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.streams[cid] {
		closeOnce(c.drop)
	}
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Cookies: r.Cookies(),
		}
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&req.Body)
		}

		b.mu.Lock()
		b.requests = append(b.requests, req)
		code := b.fail[r.URL.Path]
		gate := b.gates[r.URL.Path]
		b.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if code != 0 {
			writeJSON(w, code, map[string]any{"ok": false, "error": "injected"})
			return
		}

		// the body was consumed above; hand the decoded form to handlers
		ctx := withBody(r.Context(), req.Body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (b *Backend) handleStatus(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	online := b.online
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"online": online, "last_seen": 0, "ts": 0})
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	b.mu.Lock()
	entries := b.history[cid]
	b.mu.Unlock()
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (b *Backend) handleMessage(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	cid, _ := body["cid"].(string)
	text, _ := body["text"].(string)
	if strings.TrimSpace(cid) == "" || strings.TrimSpace(text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing_fields"})
		return
	}

	b.mu.Lock()
	b.nextMid++
	mid := fmt.Sprintf("u_%d", b.nextMid)
	noMid := b.noMid
	b.mu.Unlock()

	if noMid {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mid": mid})
}

func (b *Backend) handleSeen(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	mids, _ := body["mids"].([]any)
	if mids == nil {
		mids = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mids": mids})
}

func (b *Backend) handleAI(w http.ResponseWriter, r *http.Request) {
	q, _ := bodyFrom(r.Context())["question"].(string)
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "empty"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "text": "answer: " + q, "sources": []any{}})
}

func (b *Backend) handleStream(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	conn := &sseConn{out: make(chan string), drop: make(chan struct{})}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if b.streams[cid] == nil {
		b.streams[cid] = make(map[*sseConn]struct{})
	}
	b.streams[cid][conn] = struct{}{}
	b.connects++
	retry := b.retryMs
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.streams[cid], conn)
		b.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if retry > 0 {
		fmt.Fprintf(w, "retry: %d\n\n", retry)
	} else {
		fmt.Fprint(w, ": connected\n\n")
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.drop:
			return
		case frame := <-conn.out:
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
