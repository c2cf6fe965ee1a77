package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_BaseURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"http://127.0.0.1:5000", true},
		{"https://chat.example.com", true},
		{"ftp://chat.example.com", false},
		{"chat.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := Defaults()
			cfg.Server.BaseURL = tt.url
			issues := Validate(&cfg)
			if tt.valid {
				assert.Empty(t, issues)
			} else {
				require.NotEmpty(t, issues)
				assert.Equal(t, "server.baseUrl", issues[0].Path)
			}
		})
	}
}

func TestValidate_NonPositiveTimers(t *testing.T) {
	cfg := Defaults()
	cfg.Widget.TypingIdleMs = 0
	cfg.Widget.HeartbeatIntervalMs = -5
	issues := Validate(&cfg)

	var paths []string
	for _, issue := range issues {
		paths = append(paths, issue.Path)
	}
	assert.Contains(t, paths, "widget.typingIdleMs")
	assert.Contains(t, paths, "widget.heartbeatIntervalMs")
}

func TestValidate_TypewriterDelayMayBeZero(t *testing.T) {
	cfg := Defaults()
	cfg.Widget.TypewriterDelayMs = 0
	assert.Empty(t, Validate(&cfg))

	cfg.Widget.TypewriterDelayMs = -1
	assert.NotEmpty(t, Validate(&cfg))
}

func TestValidate_ReconnectBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Stream.ReconnectMaxMs = 10
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "stream.reconnectMaxMs", issues[0].Path)
}

func TestValidate_Permission(t *testing.T) {
	for _, p := range []string{"default", "granted", "denied", ""} {
		cfg := Defaults()
		cfg.Notify.Permission = p
		assert.Empty(t, Validate(&cfg), "permission %q should be valid", p)
	}

	cfg := Defaults()
	cfg.Notify.Permission = "maybe"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "notify.permission", issues[0].Path)
}

func TestValidate_Logging(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	cfg.Logging.ConsoleStyle = "fancy"
	issues := Validate(&cfg)
	require.Len(t, issues, 2)
	assert.Equal(t, "logging.level", issues[0].Path)
	assert.Equal(t, "logging.consoleStyle", issues[1].Path)
}

func TestValidate_Hooks(t *testing.T) {
	cfg := Defaults()
	cfg.Hooks.PanelOpened = []HookEntry{{Command: ""}, {Command: "true", Timeout: -1}}
	issues := Validate(&cfg)
	require.Len(t, issues, 2)
	assert.Equal(t, "hooks.panelOpened.0.command", issues[0].Path)
	assert.Equal(t, "hooks.panelOpened.1.timeout", issues[1].Path)
}

func TestValidationIssue_String(t *testing.T) {
	v := ValidationIssue{Path: "server.baseUrl", Message: "bad"}
	assert.Equal(t, "server.baseUrl: bad", v.String())
}
