package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soyeahso/dmschat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandHandler_ExportsPayload(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	h := CommandHandler(config.HookEntry{
		Command: `printf '%s|%s|%s' "$DMSCHAT_EVENT" "$DMSCHAT_TITLE" "$DMSCHAT_MIDS" > ` + out,
	})

	err := h(context.Background(), Payload{
		Event: EventNotification,
		Data:  map[string]any{"title": "New reply", "mids": []string{"m1", "m2"}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "notification|New reply|m1,m2", string(data))
}

func TestCommandHandler_StdinJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stdin.json")
	h := CommandHandler(config.HookEntry{Command: "cat > " + out})

	require.NoError(t, h(context.Background(), Payload{
		Event: EventMessageReceived,
		Data:  map[string]any{"mid": "m9"},
	}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"message_received","data":{"mid":"m9"}}`, string(data))
}

func TestCommandHandler_Failure(t *testing.T) {
	h := CommandHandler(config.HookEntry{Command: "echo broken >&2; exit 3"})
	err := h(context.Background(), Payload{Event: EventPanelOpened})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestCommandHandler_Timeout(t *testing.T) {
	h := CommandHandler(config.HookEntry{Command: "sleep 5", Timeout: 50})
	err := h(context.Background(), Payload{Event: EventPanelOpened})
	assert.Error(t, err)
}

func TestManager_RegisterConfig(t *testing.T) {
	m := testManager()
	dir := t.TempDir()

	n := m.RegisterConfig(config.HooksConfig{
		PanelOpened:  []config.HookEntry{{Command: "touch " + filepath.Join(dir, "opened")}},
		Notification: []config.HookEntry{{Command: ""}, {Command: "true"}},
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Count(EventPanelOpened))
	assert.Equal(t, 1, m.Count(EventNotification))
	assert.Equal(t, 0, m.Count(EventPanelClosed))

	m.Emit(context.Background(), EventPanelOpened, nil)
	_, err := os.Stat(filepath.Join(dir, "opened"))
	assert.NoError(t, err)
}

func TestConfigEvents_CoverAllHookLists(t *testing.T) {
	for name := range (config.HooksConfig{}).ByName() {
		event, ok := configEvents[name]
		require.True(t, ok, "no event for %s", name)
		assert.True(t, strings.Contains(strings.Join(AllEvents, " "), event))
	}
}
