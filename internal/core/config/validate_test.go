package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.TUI.ThreadFilter = "team-*"

	err := cfg.ValidateDeep("")
	assert.NoError(t, err, "expected valid config")
}

func TestValidateDeep_Server(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		transport string
		wantField string
	}{
		{"empty url", "", TransportWebSocket, "server.url"},
		{"missing host", "http://", TransportWebSocket, "server.url"},
		{"bad scheme", "ftp://chat.example.com", TransportWebSocket, "server.url"},
		{"bad transport", "https://chat.example.com", "grpc", "server.transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Server.URL = tt.url
			cfg.Server.Transport = tt.transport

			err := cfg.ValidateDeep("")

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			require.Len(t, fieldErrs, 1)
			assert.Equal(t, tt.wantField, fieldErrs[0].Field)
		})
	}
}

func TestValidateDeep_StreamReportsEveryField(t *testing.T) {
	cfg := validConfig(t)
	cfg.Stream.ReconnectDelay = -time.Second
	cfg.Stream.BackoffMultiplier = 0.5
	cfg.Stream.Jitter = 1.5
	cfg.Stream.MaxAttempts = -1

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"stream.reconnect_delay",
		"stream.backoff_multiplier",
		"stream.jitter",
		"stream.max_attempts",
	}, fields)
}

func TestValidateDeep_InvalidThreadFilter(t *testing.T) {
	cfg := validConfig(t)
	cfg.TUI.ThreadFilter = "team-[abc"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 1)
	assert.Equal(t, "tui.thread_filter", fieldErrs[0].Field)
	assert.Contains(t, fieldErrs[0].Err.Error(), "invalid glob")
}

func TestValidateDeep_FileAccess(t *testing.T) {
	t.Run("config path is a directory", func(t *testing.T) {
		cfg := validConfig(t)

		err := cfg.ValidateDeep(t.TempDir())

		var fieldErrs criterio.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.Equal(t, "config_file", fieldErrs[0].Field)
	})

	t.Run("missing config file is fine", func(t *testing.T) {
		cfg := validConfig(t)
		assert.NoError(t, cfg.ValidateDeep(filepath.Join(t.TempDir(), "nope.yaml")))
	})

	t.Run("data dir is a file", func(t *testing.T) {
		cfg := validConfig(t)
		path := filepath.Join(t.TempDir(), "data")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		cfg.DataDir = path

		err := cfg.ValidateDeep("")

		var fieldErrs criterio.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.Equal(t, "data_dir", fieldErrs[0].Field)
		assert.Contains(t, fieldErrs[0].Err.Error(), "not a directory")
	})
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	assert.Empty(t, cfg.Warnings())

	cfg.Stream.MaxAttempts = 0
	cfg.History.CacheLimit = 10

	warnings := cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, "max_attempts", warnings[0].Item)
	assert.Equal(t, "cache_limit", warnings[1].Item)
}

func TestLoad(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		dataDir := t.TempDir()

		cfg, err := Load("", dataDir)
		require.NoError(t, err)
		assert.Equal(t, dataDir, cfg.DataDir)
		assert.Equal(t, TransportWebSocket, cfg.Server.Transport)
		assert.Equal(t, 50, cfg.History.PageSize)
		assert.True(t, cfg.MarkdownEnabled())
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  url: https://chat.example.com
  transport: socketio
stream:
  reconnect_delay: 1s
  max_attempts: 0
tui:
  markdown: false
  thread_filter: "ops-*"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "https://chat.example.com", cfg.Server.URL)
		assert.Equal(t, TransportSocketIO, cfg.Server.Transport)
		assert.Equal(t, "/socket.io/", cfg.Server.SocketIOPath)
		assert.Equal(t, time.Second, cfg.Stream.ReconnectDelay)
		assert.Equal(t, 30*time.Second, cfg.Stream.MaxReconnectDelay)
		assert.Equal(t, 0, cfg.Stream.MaxAttempts)
		assert.False(t, cfg.MarkdownEnabled())
		assert.Equal(t, "ops-*", cfg.TUI.ThreadFilter)
	})

	t.Run("invalid transport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  transport: carrier-pigeon\n"), 0o644))

		_, err := Load(path, t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.transport")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))

		_, err := Load(path, t.TempDir())
		assert.ErrorContains(t, err, "parse config file")
	})
}
