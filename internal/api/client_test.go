package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/logging"
	"github.com/soyeahso/dmschat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) (*Client, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend(t)
	c, err := New(Options{BaseURL: backend.URL(), Timeout: 5 * time.Second}, logging.New(nil, "silent"))
	require.NoError(t, err)
	return c, backend
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost:5000"}, logging.New(nil, "silent"))
	assert.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	c, err := New(Options{BaseURL: "http://127.0.0.1:5000/"}, logging.New(nil, "silent"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000/sse/stream/client-1", c.StreamURL("client-1"))
	assert.Equal(t, "http://127.0.0.1:5000/sse/stream/a%2Fb", c.StreamURL("a/b"))
}

func TestStatus(t *testing.T) {
	c, backend := testClient(t)
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }
	backend.SetOnline(true)

	p, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Online)

	reqs := backend.Requests("/api/status")
	require.Len(t, reqs, 1)
	assert.Equal(t, "1700000000123", reqs[0].Query.Get("t"))
}

func TestHistory(t *testing.T) {
	c, backend := testClient(t)
	backend.SetHistory("client-1", []domain.HistoryEntry{
		{Role: "agent", Content: "Hi", Mid: "m1"},
		{Role: "user", Content: "Hello", Mid: "m2", SeenByClient: true},
	})

	entries, err := c.History(context.Background(), "client-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Hi", entries[0].Content)
	assert.False(t, bool(entries[0].SeenByClient))
	assert.Equal(t, "m2", entries[1].Mid)

	empty, err := c.History(context.Background(), "client-2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHeartbeat(t *testing.T) {
	c, backend := testClient(t)

	require.NoError(t, c.Heartbeat(context.Background(), "client-1"))
	reqs := backend.Requests("/api/client/heartbeat")
	require.Len(t, reqs, 1)
	assert.Equal(t, "client-1", reqs[0].Body["cid"])
}

func TestSendMessage(t *testing.T) {
	c, backend := testClient(t)

	mid, err := c.SendMessage(context.Background(), "client-1", "  Hello ", "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "u_1", mid)

	reqs := backend.Requests("/api/client/message")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Hello", reqs[0].Body["text"])
	assert.Equal(t, "abcd1234", reqs[0].Body["tempId"])
}

func TestSendMessage_NoMid(t *testing.T) {
	c, backend := testClient(t)
	backend.OmitMid(true)

	mid, err := c.SendMessage(context.Background(), "client-1", "Hello", "t1")
	require.NoError(t, err)
	assert.Empty(t, mid)
}

func TestSendMessage_Empty(t *testing.T) {
	c, backend := testClient(t)

	_, err := c.SendMessage(context.Background(), "client-1", "   ", "t1")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, backend.Requests("/api/client/message"))
}

func TestSendMessage_ServerError(t *testing.T) {
	c, backend := testClient(t)
	backend.Fail("/api/client/message", http.StatusInternalServerError)

	_, err := c.SendMessage(context.Background(), "client-1", "Hello", "t1")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "injected", se.Message)
}

func TestTyping(t *testing.T) {
	c, backend := testClient(t)

	require.NoError(t, c.Typing(context.Background(), "client-1", domain.WhoClient, true))
	reqs := backend.Requests("/api/typing")
	require.Len(t, reqs, 1)
	assert.Equal(t, "client", reqs[0].Body["who"])
	assert.Equal(t, true, reqs[0].Body["state"])
}

func TestSeen(t *testing.T) {
	c, backend := testClient(t)

	mids, err := c.Seen(context.Background(), "client-1", []string{"m1", "m2"}, domain.WhoClient)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, mids)

	reqs := backend.Requests("/api/seen")
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"m1", "m2"}, reqs[0].Mids())
	assert.Equal(t, "client", reqs[0].Body["who"])
}

func TestSeen_NilMidsSendsEmptyList(t *testing.T) {
	c, backend := testClient(t)

	_, err := c.Seen(context.Background(), "client-1", nil, domain.WhoClient)
	require.NoError(t, err)
	reqs := backend.Requests("/api/seen")
	require.Len(t, reqs, 1)
	assert.NotNil(t, reqs[0].Body["mids"])
}

func TestHealth(t *testing.T) {
	c, _ := testClient(t)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.OK)
	assert.True(t, h.AIKeyLoaded)
}

func TestAsk(t *testing.T) {
	c, _ := testClient(t)

	text, err := c.Ask(context.Background(), "What are your hours?")
	require.NoError(t, err)
	assert.Equal(t, "answer: What are your hours?", text)

	_, err = c.Ask(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestCookieJarSendsIdentity(t *testing.T) {
	backend := testutil.NewBackend(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	c, err := New(Options{BaseURL: backend.URL(), Jar: jar}, logging.New(nil, "silent"))
	require.NoError(t, err)
	jar.SetCookies(c.BaseURL(), []*http.Cookie{{Name: "dms_cid", Value: "client-1", Path: "/"}})

	require.NoError(t, c.Heartbeat(context.Background(), "client-1"))
	reqs := backend.Requests("/api/client/heartbeat")
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Cookies, 1)
	assert.Equal(t, "client-1", reqs[0].Cookies[0].Value)
}

func TestContextCanceled(t *testing.T) {
	c, backend := testClient(t)
	release := backend.Hold("/api/client/heartbeat")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Heartbeat(ctx, "client-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "api: status 500", (&StatusError{Code: 500}).Error())
	assert.Equal(t, "api: status 400: missing_fields", (&StatusError{Code: 400, Message: "missing_fields"}).Error())
}
