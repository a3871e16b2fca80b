// Package config handles configuration loading and validation for threadline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported values for server.transport.
const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	History HistoryConfig `yaml:"history"`
	TUI     TUIConfig     `yaml:"tui"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// ServerConfig selects the chat server and how to reach it.
type ServerConfig struct {
	URL          string `yaml:"url"`
	Transport    string `yaml:"transport"`     // websocket or socketio
	SocketIOPath string `yaml:"socketio_path"` // only used by the socketio transport
}

// StreamConfig tunes thread subscriptions.
type StreamConfig struct {
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Jitter            float64       `yaml:"jitter"`
	MaxAttempts       int           `yaml:"max_attempts"` // 0 = unlimited
	JoinTimeout       time.Duration `yaml:"join_timeout"`
	LeaveTimeout      time.Duration `yaml:"leave_timeout"`
}

// HistoryConfig controls history paging and the on-disk snapshot size.
type HistoryConfig struct {
	PageSize   int `yaml:"page_size"`
	CacheLimit int `yaml:"cache_limit"`
}

// TUIConfig holds interactive UI preferences.
type TUIConfig struct {
	Markdown     *bool  `yaml:"markdown"`
	ThreadFilter string `yaml:"thread_filter"` // doublestar glob on display names
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	markdown := true

	return Config{
		Server: ServerConfig{
			URL:          "http://localhost:8080",
			Transport:    TransportWebSocket,
			SocketIOPath: "/socket.io/",
		},
		Stream: StreamConfig{
			ReconnectDelay:    3 * time.Second,
			MaxReconnectDelay: 30 * time.Second,
			BackoffMultiplier: 2,
			Jitter:            0.2,
			MaxAttempts:       10,
			JoinTimeout:       10 * time.Second,
			LeaveTimeout:      5 * time.Second,
		},
		History: HistoryConfig{
			PageSize:   50,
			CacheLimit: 200,
		},
		TUI: TUIConfig{
			Markdown: &markdown,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
// max_attempts is left alone: zero means unlimited.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Server.Transport == "" {
		c.Server.Transport = defaults.Server.Transport
	}
	if c.Server.SocketIOPath == "" {
		c.Server.SocketIOPath = defaults.Server.SocketIOPath
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = defaults.Stream.ReconnectDelay
	}
	if c.Stream.MaxReconnectDelay == 0 {
		c.Stream.MaxReconnectDelay = defaults.Stream.MaxReconnectDelay
	}
	if c.Stream.BackoffMultiplier == 0 {
		c.Stream.BackoffMultiplier = defaults.Stream.BackoffMultiplier
	}
	if c.Stream.JoinTimeout == 0 {
		c.Stream.JoinTimeout = defaults.Stream.JoinTimeout
	}
	if c.Stream.LeaveTimeout == 0 {
		c.Stream.LeaveTimeout = defaults.Stream.LeaveTimeout
	}
	if c.History.PageSize == 0 {
		c.History.PageSize = defaults.History.PageSize
	}
	if c.History.CacheLimit == 0 {
		c.History.CacheLimit = defaults.History.CacheLimit
	}
	if c.TUI.Markdown == nil {
		c.TUI.Markdown = defaults.TUI.Markdown
	}
}

// Validate checks that the configuration is usable. It is cheap enough to run
// on every start; ValidateDeep adds the checks `config validate` reports.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Server.URL == "" {
		return fmt.Errorf("server.url cannot be empty")
	}

	if !isValidTransport(c.Server.Transport) {
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportWebSocket, TransportSocketIO, c.Server.Transport)
	}

	if c.Stream.ReconnectDelay < 0 || c.Stream.MaxReconnectDelay < 0 {
		return fmt.Errorf("stream reconnect delays cannot be negative")
	}

	if c.Stream.MaxAttempts < 0 {
		return fmt.Errorf("stream.max_attempts cannot be negative")
	}

	if c.History.PageSize < 1 {
		return fmt.Errorf("history.page_size must be at least 1")
	}

	return nil
}

// MarkdownEnabled reports whether message content is rendered as markdown.
func (c *Config) MarkdownEnabled() bool {
	return c.TUI.Markdown == nil || *c.TUI.Markdown
}

// SessionFile returns the path to the stored login session.
func (c *Config) SessionFile() string {
	return filepath.Join(c.DataDir, "session.json")
}

// ThreadsDir returns the directory holding per-thread history snapshots.
func (c *Config) ThreadsDir() string {
	return filepath.Join(c.DataDir, "threads")
}

// ActivityDir returns the directory holding the activity log.
func (c *Config) ActivityDir() string {
	return c.DataDir
}

func isValidTransport(transport string) bool {
	switch transport {
	case TransportWebSocket, TransportSocketIO:
		return true
	default:
		return false
	}
}
