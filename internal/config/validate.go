package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	positive := func(path string, v int) {
		if v <= 0 {
			add(path, "must be positive, got %d", v)
		}
	}

	// Server validation
	if u, err := url.Parse(cfg.Server.BaseURL); err != nil || u.Host == "" {
		add("server.baseUrl", "must be an absolute URL, got %q", cfg.Server.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.baseUrl", "scheme must be http or https, got %q", u.Scheme)
	}
	positive("server.timeoutSeconds", cfg.Server.TimeoutSeconds)

	// Identity validation
	if cfg.Identity.StorageKey == "" {
		add("identity.storageKey", "storage key is required")
	}
	if cfg.Identity.CookieName == "" {
		add("identity.cookieName", "cookie name is required")
	}
	positive("identity.cookieMaxAgeDays", cfg.Identity.CookieMaxAgeDays)

	// Widget timers
	w := cfg.Widget
	positive("widget.heartbeatIntervalMs", w.HeartbeatIntervalMs)
	positive("widget.typingIdleMs", w.TypingIdleMs)
	positive("widget.typingFailsafeMs", w.TypingFailsafeMs)
	positive("widget.typewriterCps", w.TypewriterCps)
	if w.TypewriterDelayMs < 0 {
		add("widget.typewriterDelayMs", "must not be negative, got %d", w.TypewriterDelayMs)
	}
	positive("widget.sendDebounceMs", w.SendDebounceMs)
	positive("widget.previewTtlMs", w.PreviewTTLMs)
	positive("widget.previewChars", w.PreviewChars)
	positive("widget.notifyChars", w.NotifyChars)

	// Stream backoff
	positive("stream.reconnectBaseMs", cfg.Stream.ReconnectBaseMs)
	if cfg.Stream.ReconnectMaxMs < cfg.Stream.ReconnectBaseMs {
		add("stream.reconnectMaxMs", "must be >= reconnectBaseMs (%d), got %d",
			cfg.Stream.ReconnectBaseMs, cfg.Stream.ReconnectMaxMs)
	}

	validPermissions := []string{"default", "granted", "denied"}
	if cfg.Notify.Permission != "" && !slices.Contains(validPermissions, cfg.Notify.Permission) {
		add("notify.permission", "must be one of %v, got %q", validPermissions, cfg.Notify.Permission)
	}

	// Logging validation
	validLogLevels := []string{"silent", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Hooks validation
	hooks := cfg.Hooks.ByName()
	for _, event := range slices.Sorted(maps.Keys(hooks)) {
		for i, h := range hooks[event] {
			path := fmt.Sprintf("hooks.%s.%d", event, i)
			if h.Command == "" {
				add(path+".command", "command is required")
			}
			if h.Timeout < 0 {
				add(path+".timeout", "must not be negative, got %d", h.Timeout)
			}
		}
	}

	return issues
}
