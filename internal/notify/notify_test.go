package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/soyeahso/dmschat/internal/hooks"
	"github.com/soyeahso/dmschat/internal/logging"
	"github.com/soyeahso/dmschat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger { return logging.New(nil, "silent") }

func testKV(t *testing.T) *store.KV {
	t.Helper()
	db, err := store.Open(store.Memory, testLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewKV(db)
}

type notification struct {
	title, body string
}

func recordNotifications(m *hooks.Manager) func() []notification {
	var mu sync.Mutex
	var got []notification
	m.On(hooks.EventNotification, "test", func(_ context.Context, p hooks.Payload) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, notification{p.Data["title"].(string), p.Data["body"].(string)})
		return nil
	})
	return func() []notification {
		m.Wait()
		mu.Lock()
		defer mu.Unlock()
		return append([]notification(nil), got...)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("no tty") }

func TestParsePermission(t *testing.T) {
	assert.Equal(t, PermissionGranted, ParsePermission("granted"))
	assert.Equal(t, PermissionDenied, ParsePermission("denied"))
	assert.Equal(t, PermissionDefault, ParsePermission("default"))
	assert.Equal(t, PermissionDefault, ParsePermission(""))
	assert.Equal(t, PermissionDefault, ParsePermission("maybe"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel", Truncate("hello", 3))
	assert.Equal(t, "héé", Truncate("héééé", 3))
	assert.Equal(t, "", Truncate("hello", 0))
}

func TestNotify_AllEffects(t *testing.T) {
	m := hooks.NewManager(testLog())
	got := recordNotifications(m)
	var bell bytes.Buffer
	vibrations := 0

	n := New(Options{
		Bell:       &bell,
		Hooks:      m,
		Vibrate:    func() error { vibrations++; return nil },
		Permission: PermissionGranted,
	}, testLog())

	n.Notify(context.Background(), "", "Hi there")

	assert.Equal(t, "\a", bell.String())
	assert.Equal(t, 1, vibrations)
	assert.Equal(t, []notification{{DefaultTitle, "Hi there"}}, got())
}

func TestNotify_BodyTruncated(t *testing.T) {
	m := hooks.NewManager(testLog())
	got := recordNotifications(m)
	n := New(Options{Hooks: m, Permission: PermissionGranted}, testLog())

	long := bytes.Repeat([]byte("x"), 200)
	n.Notify(context.Background(), "New reply", string(long))

	res := got()
	require.Len(t, res, 1)
	assert.Equal(t, "New reply", res[0].title)
	assert.Len(t, res[0].body, DefaultMaxBody)
}

func TestNotify_NoNotificationWithoutPermission(t *testing.T) {
	for _, p := range []Permission{PermissionDefault, PermissionDenied} {
		t.Run(string(p), func(t *testing.T) {
			m := hooks.NewManager(testLog())
			got := recordNotifications(m)
			var bell bytes.Buffer
			n := New(Options{Bell: &bell, Hooks: m, Permission: p, Prompt: func(context.Context) Permission { return PermissionDefault }}, testLog())

			n.Notify(context.Background(), "t", "b")
			assert.Empty(t, got())
			assert.Equal(t, "\a", bell.String(), "sound does not depend on permission")
		})
	}
}

func TestNotify_FailuresAreIndependent(t *testing.T) {
	m := hooks.NewManager(testLog())
	got := recordNotifications(m)
	m.On(hooks.EventNotification, "broken", func(context.Context, hooks.Payload) error {
		return errors.New("boom")
	})
	vibrated := false

	n := New(Options{
		Bell:       failingWriter{},
		Hooks:      m,
		Vibrate:    func() error { vibrated = true; return errors.New("no motor") },
		Permission: PermissionGranted,
	}, testLog())

	n.Notify(context.Background(), "t", "b")
	assert.Len(t, got(), 1)
	assert.True(t, vibrated)
}

func TestRequestPermission_OnlyWhenUndecided(t *testing.T) {
	prompts := 0
	n := New(Options{
		Prompt: func(context.Context) Permission { prompts++; return PermissionGranted },
	}, testLog())
	assert.Equal(t, PermissionDefault, n.Permission())

	assert.Equal(t, PermissionGranted, n.RequestPermission(context.Background()))
	assert.Equal(t, PermissionGranted, n.RequestPermission(context.Background()))
	assert.Equal(t, 1, prompts)
}

func TestRequestPermission_ConfiguredDecisionSkipsPrompt(t *testing.T) {
	n := New(Options{
		Permission: PermissionDenied,
		Prompt:     func(context.Context) Permission { t.Fatal("prompted"); return PermissionGranted },
	}, testLog())
	assert.Equal(t, PermissionDenied, n.RequestPermission(context.Background()))
}

func TestRequestPermission_UndecidedPromptKeepsDefault(t *testing.T) {
	prompts := 0
	n := New(Options{
		Prompt: func(context.Context) Permission { prompts++; return PermissionDefault },
	}, testLog())
	n.RequestPermission(context.Background())
	n.RequestPermission(context.Background())
	assert.Equal(t, 2, prompts)
	assert.Equal(t, PermissionDefault, n.Permission())
}

func TestRequestPermission_Persisted(t *testing.T) {
	kv := testKV(t)

	first := New(Options{Store: kv, Prompt: func(context.Context) Permission { return PermissionDenied }}, testLog())
	first.RequestPermission(context.Background())

	v, err := kv.Get(PermissionKey)
	require.NoError(t, err)
	assert.Equal(t, "denied", v)

	second := New(Options{Store: kv}, testLog())
	assert.Equal(t, PermissionDenied, second.Permission())
}

func TestDefaultPrompt_FollowsNotificationHooks(t *testing.T) {
	bare := New(Options{Hooks: hooks.NewManager(testLog())}, testLog())
	assert.Equal(t, PermissionDenied, bare.RequestPermission(context.Background()))

	m := hooks.NewManager(testLog())
	m.On(hooks.EventNotification, "cmd", func(context.Context, hooks.Payload) error { return nil })
	hooked := New(Options{Hooks: m}, testLog())
	assert.Equal(t, PermissionGranted, hooked.RequestPermission(context.Background()))
}
