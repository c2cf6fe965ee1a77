package config

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandFields processes ${ENV_VAR} references in the server URL and hook
// commands.
func expandFields(cfg *Config) {
	cfg.Server.BaseURL = expandEnvVars(cfg.Server.BaseURL)
	cfg.Logging.File = expandEnvVars(cfg.Logging.File)
	for _, entries := range cfg.Hooks.lists() {
		for i := range *entries {
			(*entries)[i].Command = expandEnvVars((*entries)[i].Command)
		}
	}
}

// lists returns pointers to every hook list, in a stable order.
func (h *HooksConfig) lists() []*[]HookEntry {
	return []*[]HookEntry{
		&h.MessageReceived, &h.MessageSent, &h.MessageSeen,
		&h.PanelOpened, &h.PanelClosed, &h.Notification,
		&h.StreamConnected, &h.StreamDisconnected,
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	setDefault := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	setDefault(&cfg.Server.TimeoutSeconds, DefaultTimeoutSeconds)

	if cfg.Identity.StorageKey == "" {
		cfg.Identity.StorageKey = DefaultStorageKey
	}
	if cfg.Identity.CookieName == "" {
		cfg.Identity.CookieName = DefaultCookieName
	}
	setDefault(&cfg.Identity.CookieMaxAgeDays, DefaultCookieMaxAgeDays)

	w := &cfg.Widget
	setDefault(&w.HeartbeatIntervalMs, DefaultHeartbeatIntervalMs)
	setDefault(&w.TypingIdleMs, DefaultTypingIdleMs)
	setDefault(&w.TypingFailsafeMs, DefaultTypingFailsafeMs)
	setDefault(&w.TypewriterCps, DefaultTypewriterCps)
	setDefault(&w.SendDebounceMs, DefaultSendDebounceMs)
	setDefault(&w.PreviewTTLMs, DefaultPreviewTTLMs)
	setDefault(&w.PreviewChars, DefaultPreviewChars)
	setDefault(&w.NotifyChars, DefaultNotifyChars)

	setDefault(&cfg.Stream.ReconnectBaseMs, DefaultReconnectBaseMs)
	setDefault(&cfg.Stream.ReconnectMaxMs, DefaultReconnectMaxMs)

	if cfg.Notify.Permission == "" {
		cfg.Notify.Permission = "default"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads DMSCHAT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DMSCHAT_SERVER_URL"); v != "" {
		cfg.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DMSCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
