package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

type SessionCmd struct {
	flags *Flags
}

// NewSessionCmd creates a new session command
func NewSessionCmd(flags *Flags) *SessionCmd {
	return &SessionCmd{flags: flags}
}

// Register adds the session command to the application
func (cmd *SessionCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "session",
		Usage: "Session information",
		Commands: []*cli.Command{
			cmd.infoCmd(),
		},
	})

	return app
}

// SessionInfo is the JSON output of session info.
type SessionInfo struct {
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username,omitempty"`
	Server    string     `json:"server"`
	Transport string     `json:"transport"`
	SavedAt   time.Time  `json:"saved_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

func (cmd *SessionCmd) infoCmd() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Display the logged-in session",
		UsageText: "threadline session info",
		Description: `Outputs information about the stored session as JSON. The token itself is
never printed.

Output fields:
  user_id    - current user id
  username   - current username, if known
  server     - server URL the session is used with
  transport  - websocket or socketio
  saved_at   - when the session was stored
  expires_at - token expiry, if the token carries one
  expired    - whether the token has expired`,
		Action: cmd.runInfo,
	}
}

func (cmd *SessionCmd) runInfo(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config

	sess, err := sessionStore(cfg).Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	info := SessionInfo{
		UserID:    sess.User.ID,
		Username:  sess.User.Username,
		Server:    cfg.Server.URL,
		Transport: cfg.Server.Transport,
		SavedAt:   sess.SavedAt,
		Expired:   sess.Credential.Expired(time.Now()),
	}
	if exp, ok := sess.Credential.ExpiresAt(); ok {
		info.ExpiresAt = &exp
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
