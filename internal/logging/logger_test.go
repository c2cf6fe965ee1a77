package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSub_TagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Sub("stream").Info().Str("cid", "client-1").Msg("connected")
	assert.Contains(t, buf.String(), `"subsystem":"stream"`)
	assert.Contains(t, buf.String(), `"cid":"client-1"`)
	assert.Contains(t, buf.String(), "connected")

	buf.Reset()
	log.Sub("widget").Sub("outbox").Info().Msg("nested")
	assert.Contains(t, buf.String(), `"subsystem":"outbox"`)
}

func TestLevels(t *testing.T) {
	emit := func(log *Logger) {
		log.Debug().Msg("d")
		log.Info().Msg("i")
		log.Warn().Msg("w")
		log.Error().Msg("e")
	}

	tests := []struct {
		level string
		lines int
	}{
		{"debug", 4},
		{"info", 3},
		{"warn", 2},
		{"error", 1},
		{"silent", 0},
		{"nonsense", 3},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			emit(New(&buf, tt.level))
			assert.Equal(t, tt.lines, bytes.Count(buf.Bytes(), []byte("\n")))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	assert.Equal(t, zerolog.Disabled, parseLevel("silent"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("INFO"), "levels are case-sensitive")
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"", "trace", "debug", "info", "warn", "error", "silent"} {
		assert.True(t, ValidLevel(l), l)
	}
	assert.False(t, ValidLevel("loud"))
	assert.False(t, ValidLevel("fatal"))
}

func TestNop(t *testing.T) {
	log := Nop()
	require.NotNil(t, log)
	assert.NotPanics(t, func() { log.Sub("x").Error().Msg("dropped") })
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dmschat.log")
	log, closer, err := Open(Options{Level: "debug", File: path, Quiet: true})
	require.NoError(t, err)

	log.Sub("widget").Info().Str("cid", "client-1").Msg("started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"subsystem":"widget"`, "a log file wins over quiet")
	assert.Contains(t, string(data), `"cid":"client-1"`)
}

func TestOpen_Quiet(t *testing.T) {
	log, closer, err := Open(Options{Level: "debug", Quiet: true})
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.NoError(t, closer.Close())
	assert.Equal(t, zerolog.Disabled, log.Zerolog().GetLevel())
}

func TestOpen_ConsoleLevel(t *testing.T) {
	log, _, err := Open(Options{Level: "warn", Style: "json"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, log.Zerolog().GetLevel())
}
