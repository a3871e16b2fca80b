package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), it reports every problem at once as criterio.FieldErrors
// and checks the server URL, glob syntax and file access.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	errs = c.validateFileAccess(errs, configPath)
	errs = c.validateServer(errs)
	errs = c.validateStream(errs)
	errs = c.validateHistory(errs)
	errs = c.validateTUI(errs)

	return errs.ToError()
}

// Warnings returns settings that are legal but probably not intended.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Stream.MaxAttempts == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Stream",
			Item:     "max_attempts",
			Message:  "reconnects are unlimited; a dead server is retried forever",
		})
	}

	if c.Stream.MaxReconnectDelay > 0 && c.Stream.MaxReconnectDelay < c.Stream.ReconnectDelay {
		warnings = append(warnings, ValidationWarning{
			Category: "Stream",
			Item:     "max_reconnect_delay",
			Message:  "is below reconnect_delay, so every reconnect waits max_reconnect_delay",
		})
	}

	if c.History.CacheLimit < c.History.PageSize {
		warnings = append(warnings, ValidationWarning{
			Category: "History",
			Item:     "cache_limit",
			Message:  "is smaller than page_size; cached history is truncated",
		})
	}

	return warnings
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(errs criterio.FieldErrorsBuilder, configPath string) criterio.FieldErrorsBuilder {
	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.IsDir() {
				errs = errs.Append("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
			}
		} else if !os.IsNotExist(err) {
			errs = errs.Append("config_file", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir == "" {
		return errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	if info, err := os.Stat(c.DataDir); err == nil {
		if !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		}
	} else if !os.IsNotExist(err) {
		errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
	}

	return errs
}

func (c *Config) validateServer(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if c.Server.URL == "" {
		errs = errs.Append("server.url", fmt.Errorf("cannot be empty"))
	} else {
		u, err := url.Parse(c.Server.URL)
		switch {
		case err != nil:
			errs = errs.Append("server.url", fmt.Errorf("invalid url: %w", err))
		case u.Host == "":
			errs = errs.Append("server.url", fmt.Errorf("missing host in %q", c.Server.URL))
		case !isValidScheme(u.Scheme):
			errs = errs.Append("server.url", fmt.Errorf("unsupported scheme %q", u.Scheme))
		}
	}

	if !isValidTransport(c.Server.Transport) {
		errs = errs.Append("server.transport", fmt.Errorf("must be %q or %q, got %q", TransportWebSocket, TransportSocketIO, c.Server.Transport))
	}

	return errs
}

func (c *Config) validateStream(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	s := c.Stream

	if s.ReconnectDelay < 0 {
		errs = errs.Append("stream.reconnect_delay", fmt.Errorf("cannot be negative"))
	}
	if s.MaxReconnectDelay < 0 {
		errs = errs.Append("stream.max_reconnect_delay", fmt.Errorf("cannot be negative"))
	}
	if s.BackoffMultiplier < 1 {
		errs = errs.Append("stream.backoff_multiplier", fmt.Errorf("must be at least 1, got %g", s.BackoffMultiplier))
	}
	if s.Jitter < 0 || s.Jitter > 1 {
		errs = errs.Append("stream.jitter", fmt.Errorf("must be between 0 and 1, got %g", s.Jitter))
	}
	if s.MaxAttempts < 0 {
		errs = errs.Append("stream.max_attempts", fmt.Errorf("cannot be negative"))
	}
	if s.JoinTimeout < 0 {
		errs = errs.Append("stream.join_timeout", fmt.Errorf("cannot be negative"))
	}
	if s.LeaveTimeout < 0 {
		errs = errs.Append("stream.leave_timeout", fmt.Errorf("cannot be negative"))
	}

	return errs
}

func (c *Config) validateHistory(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if c.History.PageSize < 1 {
		errs = errs.Append("history.page_size", fmt.Errorf("must be at least 1"))
	}
	if c.History.CacheLimit < 1 {
		errs = errs.Append("history.cache_limit", fmt.Errorf("must be at least 1"))
	}
	return errs
}

func (c *Config) validateTUI(errs criterio.FieldErrorsBuilder) criterio.FieldErrorsBuilder {
	if c.TUI.ThreadFilter != "" && !doublestar.ValidatePattern(c.TUI.ThreadFilter) {
		errs = errs.Append("tui.thread_filter", fmt.Errorf("invalid glob pattern %q", c.TUI.ThreadFilter))
	}
	return errs
}

func isValidScheme(scheme string) bool {
	switch scheme {
	case "http", "https", "ws", "wss":
		return true
	default:
		return false
	}
}
