package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/testutil"
)

type result struct {
	out    string
	stderr string
	err    error
}

// run executes the root command in a fresh home directory per test.
func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	cmd := newRootCmd()
	var out, errb bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return result{out: out.String(), stderr: errb.String(), err: err}
}

func withHome(t *testing.T) {
	t.Helper()
	t.Setenv("DMSCHAT_HOME", t.TempDir())
	t.Setenv("DMSCHAT_SERVER_URL", "")
}

func TestConfigSetGetUnset(t *testing.T) {
	withHome(t)

	res := run(t, "", "config", "set", "widget.typingIdleMs", "900")
	require.NoError(t, res.err)
	assert.Equal(t, "widget.typingIdleMs = 900\n", res.out)

	res = run(t, "", "config", "get", "widget.typingIdleMs")
	require.NoError(t, res.err)
	assert.Equal(t, "900\n", res.out)

	res = run(t, "", "config", "get", "widget")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "typingIdleMs: 900")

	res = run(t, "", "config", "set", "server.baseUrl", "ftp://example.com")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "warning: server.baseUrl")

	res = run(t, "", "config", "unset", "widget.typingIdleMs")
	require.NoError(t, res.err)

	res = run(t, "", "config", "get", "widget.typingIdleMs")
	assert.Error(t, res.err)

	res = run(t, "", "config", "set", "a..b", "1")
	assert.Error(t, res.err)
}

func TestConfigPath(t *testing.T) {
	withHome(t)
	res := run(t, "", "--config", "/tmp/elsewhere.yaml", "config", "path")
	require.NoError(t, res.err)
	assert.Equal(t, "/tmp/elsewhere.yaml\n", res.out)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"-3", -3},
		{"1.5", 1.5},
		{"http://x", "http://x"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestIdentity_StableAndRotates(t *testing.T) {
	withHome(t)

	first := run(t, "", "identity")
	require.NoError(t, first.err)
	id := strings.TrimSpace(first.out)
	assert.True(t, strings.HasPrefix(id, "client-"), id)

	again := run(t, "", "identity")
	require.NoError(t, again.err)
	assert.Equal(t, id, strings.TrimSpace(again.out), "the id survives restarts")

	rotated := run(t, "", "identity", "--rotate")
	require.NoError(t, rotated.err)
	assert.NotEqual(t, id, strings.TrimSpace(rotated.out))

	after := run(t, "", "identity")
	assert.Equal(t, strings.TrimSpace(rotated.out), strings.TrimSpace(after.out))
}

func TestSend(t *testing.T) {
	withHome(t)
	b := testutil.NewBackend(t)

	id := strings.TrimSpace(run(t, "", "identity").out)

	res := run(t, "", "--server", b.URL(), "send", "hello", "there")
	require.NoError(t, res.err)
	assert.Equal(t, "u_1\n", res.out)

	reqs := b.Requests("/api/client/message")
	require.Len(t, reqs, 1)
	assert.Equal(t, "hello there", reqs[0].Body["text"])
	assert.Equal(t, id, reqs[0].Body["cid"])
	assert.Len(t, reqs[0].Body["tempId"], 8)

	var cookie string
	for _, c := range reqs[0].Cookies {
		if c.Name == "dms_cid" {
			cookie = c.Value
		}
	}
	assert.Equal(t, id, cookie, "requests carry the id cookie")
}

func TestSend_WithoutMidPrintsTempID(t *testing.T) {
	withHome(t)
	b := testutil.NewBackend(t)
	b.OmitMid(true)

	res := run(t, "", "--server", b.URL(), "send", "hi")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.out, "tmp_"), res.out)
}

func TestSend_Failure(t *testing.T) {
	withHome(t)
	b := testutil.NewBackend(t)
	b.Fail("/api/client/message", 500)

	res := run(t, "", "--server", b.URL(), "send", "hi")
	assert.ErrorContains(t, res.err, "sending message")
}

func TestHistory(t *testing.T) {
	withHome(t)
	b := testutil.NewBackend(t)
	id := strings.TrimSpace(run(t, "", "identity").out)

	res := run(t, "", "--server", b.URL(), "history")
	require.NoError(t, res.err)
	assert.Equal(t, "(no messages)\n", res.out)

	b.SetHistory(id, []domain.HistoryEntry{
		{Role: "user", Content: "hello", Mid: "u_1", SeenByAgent: true},
		{Role: "admin", Content: "hi, how can I help?", Mid: "a_1"},
	})
	res = run(t, "", "--server", b.URL(), "history")
	require.NoError(t, res.err)
	assert.Equal(t, "user  hello  ✓✓\nagent hi, how can I help?  (new)\n", res.out)

	res = run(t, "", "--server", b.URL(), "history", "--json")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, `"mid": "a_1"`)
}

func TestAsk(t *testing.T) {
	withHome(t)
	b := testutil.NewBackend(t)

	res := run(t, "", "--server", b.URL(), "ask", "opening", "hours?")
	require.NoError(t, res.err)
	assert.Equal(t, "answer: opening hours?\n", res.out)
}

func TestStatus(t *testing.T) {
	withHome(t)
	b := testutil.NewBackend(t)
	b.SetOnline(true)

	res := run(t, "", "--server", b.URL(), "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Presence: Admin Online")
	assert.Contains(t, res.out, "Backend:  ok=true")
	assert.Contains(t, res.out, "permission=default")
	assert.NotContains(t, res.out, "Validation issues")
}

func TestStatus_Unreachable(t *testing.T) {
	withHome(t)
	res := run(t, "", "--server", "http://127.0.0.1:1", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Backend:  unreachable")
}

func TestChatPlain(t *testing.T) {
	withHome(t)
	b := testutil.NewBackend(t)
	b.SetOnline(true)

	res := run(t, "hello\n/quit\n", "--server", b.URL(), "chat", "--plain")
	require.NoError(t, res.err)

	assert.Contains(t, res.out, "● Admin Online")
	assert.Contains(t, res.out, "-- chat opened --")
	assert.Contains(t, res.out, "you: hello")

	reqs := b.Requests("/api/client/message")
	require.Len(t, reqs, 1, "queued sends are drained before exit")
	assert.Equal(t, "hello", reqs[0].Body["text"])
}

func TestVersion(t *testing.T) {
	res := run(t, "", "version")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.out, "dmschat "), res.out)
}
