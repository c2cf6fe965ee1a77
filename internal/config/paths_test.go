package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "server", []string{"server"}, false},
		{"two segments", "server.baseUrl", []string{"server", "baseUrl"}, false},
		{"three segments", "hooks.notification.0", []string{"hooks", "notification", "0"}, false},
		{"empty", "", nil, true},
		{"empty segment", "widget..typingIdleMs", nil, true},
		{"leading dot", ".widget", nil, true},
		{"trailing dot", "widget.", nil, true},
		{"blank segment", "widget. .typingIdleMs", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"widget": map[string]any{
			"typingIdleMs": 800,
			"limits": map[string]any{
				"previewChars": 60,
			},
		},
		"simple": "value",
	}

	tests := []struct {
		name string
		path []string
		want any
		ok   bool
	}{
		{"nested value", []string{"widget", "typingIdleMs"}, 800, true},
		{"deeply nested", []string{"widget", "limits", "previewChars"}, 60, true},
		{"top level", []string{"simple"}, "value", true},
		{"missing key", []string{"nonexistent"}, nil, false},
		{"missing nested", []string{"widget", "nonexistent"}, nil, false},
		{"non-map intermediate", []string{"simple", "sub"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, ok := GetValueAtPath(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, val)
			}
		})
	}
}

func TestSetValueAtPath_Update(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"baseUrl": "http://127.0.0.1:5000",
		},
	}

	SetValueAtPath(root, []string{"server", "baseUrl"}, "https://chat.example.com")
	val, ok := GetValueAtPath(root, []string{"server", "baseUrl"})
	assert.True(t, ok)
	assert.Equal(t, "https://chat.example.com", val)
}

func TestSetValueAtPath_CreatesIntermediates(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"a", "b", "c"}, "deep")
	val, ok := GetValueAtPath(root, []string{"a", "b", "c"})
	assert.True(t, ok)
	assert.Equal(t, "deep", val)
}

func TestSetValueAtPath_OverwritesNonMap(t *testing.T) {
	root := map[string]any{
		"notify": "string-not-map",
	}

	SetValueAtPath(root, []string{"notify", "bell"}, false)
	val, ok := GetValueAtPath(root, []string{"notify", "bell"})
	assert.True(t, ok)
	assert.Equal(t, false, val)
}

func TestUnsetValueAtPath_PreserveSiblings(t *testing.T) {
	root := map[string]any{
		"widget": map[string]any{
			"typingIdleMs":     800,
			"typingFailsafeMs": 3500,
		},
	}

	ok := UnsetValueAtPath(root, []string{"widget", "typingIdleMs"})
	assert.True(t, ok)

	_, found := GetValueAtPath(root, []string{"widget", "typingIdleMs"})
	assert.False(t, found)

	val, found := GetValueAtPath(root, []string{"widget", "typingFailsafeMs"})
	assert.True(t, found)
	assert.Equal(t, 3500, val)
}

func TestUnsetValueAtPath_NotFound(t *testing.T) {
	root := map[string]any{"widget": map[string]any{}}
	assert.False(t, UnsetValueAtPath(root, []string{"widget", "nonexistent"}))
	assert.False(t, UnsetValueAtPath(map[string]any{}, []string{"a", "b", "c"}))
	assert.False(t, UnsetValueAtPath(map[string]any{"widget": "x"}, []string{"widget", "y"}))
}

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("DMSCHAT_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".dmschat")
	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(base, "data"), paths.Data)
	assert.Equal(t, filepath.Join(base, "data", "state.db"), paths.State)
	assert.Equal(t, filepath.Join(base, "data", "cookies.json"), paths.Cookies)
	assert.Equal(t, filepath.Join(base, "logs"), paths.Logs)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	t.Setenv("DMSCHAT_HOME", "/tmp/dmstest")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/dmstest", paths.Base)
	assert.Equal(t, "/tmp/dmstest/config.yaml", paths.Config)
	assert.Equal(t, "/tmp/dmstest/data/state.db", paths.State)
	assert.Equal(t, "/tmp/dmstest/data/cookies.json", paths.Cookies)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("DMSCHAT_HOME", filepath.Join(t.TempDir(), "home"))
	paths, err := ResolvePaths()
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())

	for _, dir := range []string{paths.Base, paths.Data, paths.Logs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
