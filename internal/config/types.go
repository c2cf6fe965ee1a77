package config

import "time"

// Config is the root configuration for dmschat.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Identity IdentityConfig `yaml:"identity,omitempty"`
	Widget   WidgetConfig   `yaml:"widget,omitempty"`
	Stream   StreamConfig   `yaml:"stream,omitempty"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty"`
}

// ServerConfig locates the chat backend.
type ServerConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"` // per request, not applied to the event stream
}

// Timeout returns the request timeout.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// IdentityConfig names the two places the client id is kept.
type IdentityConfig struct {
	StorageKey       string `yaml:"storageKey,omitempty"`
	CookieName       string `yaml:"cookieName,omitempty"`
	CookieMaxAgeDays int    `yaml:"cookieMaxAgeDays,omitempty"`
}

// CookieMaxAge returns the cookie lifetime.
func (i IdentityConfig) CookieMaxAge() time.Duration {
	return time.Duration(i.CookieMaxAgeDays) * 24 * time.Hour
}

// WidgetConfig holds the widget's timers and truncation limits.
type WidgetConfig struct {
	HeartbeatIntervalMs int `yaml:"heartbeatIntervalMs,omitempty"`
	TypingIdleMs        int `yaml:"typingIdleMs,omitempty"`
	TypingFailsafeMs    int `yaml:"typingFailsafeMs,omitempty"`
	TypewriterCps       int `yaml:"typewriterCps,omitempty"`
	TypewriterDelayMs   int `yaml:"typewriterDelayMs,omitempty"`
	SendDebounceMs      int `yaml:"sendDebounceMs,omitempty"`
	PreviewTTLMs        int `yaml:"previewTtlMs,omitempty"`
	PreviewChars        int `yaml:"previewChars,omitempty"`
	NotifyChars         int `yaml:"notifyChars,omitempty"`
	// QuickReplies are canned messages offered as one-key shortcuts.
	QuickReplies []string `yaml:"quickReplies,omitempty"`
}

// StreamConfig bounds the event stream reconnect backoff.
type StreamConfig struct {
	ReconnectBaseMs int `yaml:"reconnectBaseMs,omitempty"`
	ReconnectMaxMs  int `yaml:"reconnectMaxMs,omitempty"`
}

// NotifyConfig controls notification side effects.
type NotifyConfig struct {
	Bell       *bool  `yaml:"bell,omitempty"`       // ring the terminal bell; defaults to true
	Permission string `yaml:"permission,omitempty"` // "default" | "granted" | "denied"
}

// BellEnabled reports whether the terminal bell should ring.
func (n NotifyConfig) BellEnabled() bool {
	return n.Bell == nil || *n.Bell
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// HooksConfig defines shell commands run on widget lifecycle events.
type HooksConfig struct {
	MessageReceived    []HookEntry `yaml:"messageReceived,omitempty"`
	MessageSent        []HookEntry `yaml:"messageSent,omitempty"`
	MessageSeen        []HookEntry `yaml:"messageSeen,omitempty"`
	PanelOpened        []HookEntry `yaml:"panelOpened,omitempty"`
	PanelClosed        []HookEntry `yaml:"panelClosed,omitempty"`
	Notification       []HookEntry `yaml:"notification,omitempty"`
	StreamConnected    []HookEntry `yaml:"streamConnected,omitempty"`
	StreamDisconnected []HookEntry `yaml:"streamDisconnected,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// TimeoutDuration returns the hook's timeout, or fallback when unset.
func (h HookEntry) TimeoutDuration(fallback time.Duration) time.Duration {
	if h.Timeout <= 0 {
		return fallback
	}
	return time.Duration(h.Timeout) * time.Millisecond
}

// Ms converts a millisecond config value to a Duration.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ByName returns the configured hook lists keyed by their YAML names.
func (h HooksConfig) ByName() map[string][]HookEntry {
	return map[string][]HookEntry{
		"messageReceived":    h.MessageReceived,
		"messageSent":        h.MessageSent,
		"messageSeen":        h.MessageSeen,
		"panelOpened":        h.PanelOpened,
		"panelClosed":        h.PanelClosed,
		"notification":       h.Notification,
		"streamConnected":    h.StreamConnected,
		"streamDisconnected": h.StreamDisconnected,
	}
}
