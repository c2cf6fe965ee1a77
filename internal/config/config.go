// Package config loads and validates dmschat's YAML configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default values, shared by Defaults and applyDefaults.
const (
	DefaultBaseURL             = "http://127.0.0.1:5000"
	DefaultTimeoutSeconds      = 10
	DefaultStorageKey          = "dms_cid"
	DefaultCookieName          = "dms_cid"
	DefaultCookieMaxAgeDays    = 400
	DefaultHeartbeatIntervalMs = 20000
	DefaultTypingIdleMs        = 800
	DefaultTypingFailsafeMs    = 3500
	DefaultTypewriterCps       = 28
	DefaultTypewriterDelayMs   = 120
	DefaultSendDebounceMs      = 150
	DefaultPreviewTTLMs        = 2600
	DefaultPreviewChars        = 60
	DefaultNotifyChars         = 80
	DefaultReconnectBaseMs     = 1000
	DefaultReconnectMaxMs      = 30000
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Identity: IdentityConfig{
			StorageKey:       DefaultStorageKey,
			CookieName:       DefaultCookieName,
			CookieMaxAgeDays: DefaultCookieMaxAgeDays,
		},
		Widget: WidgetConfig{
			HeartbeatIntervalMs: DefaultHeartbeatIntervalMs,
			TypingIdleMs:        DefaultTypingIdleMs,
			TypingFailsafeMs:    DefaultTypingFailsafeMs,
			TypewriterCps:       DefaultTypewriterCps,
			TypewriterDelayMs:   DefaultTypewriterDelayMs,
			SendDebounceMs:      DefaultSendDebounceMs,
			PreviewTTLMs:        DefaultPreviewTTLMs,
			PreviewChars:        DefaultPreviewChars,
			NotifyChars:         DefaultNotifyChars,
		},
		Stream: StreamConfig{
			ReconnectBaseMs: DefaultReconnectBaseMs,
			ReconnectMaxMs:  DefaultReconnectMaxMs,
		},
		Notify: NotifyConfig{
			Permission: "default",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
