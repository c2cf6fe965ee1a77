package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/soyeahso/dmschat/internal/config"
)

const defaultCommandTimeout = 10 * time.Second

// configEvents maps config hook list names to event names.
var configEvents = map[string]string{
	"messageReceived":    EventMessageReceived,
	"messageSent":        EventMessageSent,
	"messageSeen":        EventMessageSeen,
	"panelOpened":        EventPanelOpened,
	"panelClosed":        EventPanelClosed,
	"notification":       EventNotification,
	"streamConnected":    EventStreamConnected,
	"streamDisconnected": EventStreamDisconnected,
}

// RegisterConfig installs a shell-command handler for every hook entry in cfg.
// It returns the number of handlers registered.
func (m *Manager) RegisterConfig(cfg config.HooksConfig) int {
	n := 0
	byName := cfg.ByName()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		event, ok := configEvents[name]
		if !ok {
			continue
		}
		for i, entry := range byName[name] {
			if entry.Command == "" {
				continue
			}
			m.On(event, fmt.Sprintf("config:%s:%d", name, i), CommandHandler(entry))
			n++
		}
	}
	return n
}

// CommandHandler runs entry.Command through sh -c. Payload fields are exported
// as DMSCHAT_<KEY> variables and the whole payload is written to stdin as JSON.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := entry.TimeoutDuration(defaultCommandTimeout)
	return func(ctx context.Context, p Payload) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		input, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Env = append(os.Environ(), payloadEnv(p)...)
		cmd.Stdin = bytes.NewReader(input)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return fmt.Errorf("hook %q: %w: %s", entry.Command, err, msg)
			}
			return fmt.Errorf("hook %q: %w", entry.Command, err)
		}
		return nil
	}
}

func payloadEnv(p Payload) []string {
	env := []string{"DMSCHAT_EVENT=" + p.Event}
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var v string
		switch val := p.Data[k].(type) {
		case string:
			v = val
		case []string:
			v = strings.Join(val, ",")
		default:
			v = fmt.Sprint(val)
		}
		env = append(env, "DMSCHAT_"+strings.ToUpper(k)+"="+v)
	}
	return env
}
