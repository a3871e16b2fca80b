package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/threadline/internal/core/session"
	"github.com/hay-kot/threadline/internal/printer"
)

type LoginCmd struct {
	flags *Flags

	// login flags
	token      string
	userID     int64
	username   string
	skipVerify bool
}

// NewLoginCmd creates the login and logout commands.
func NewLoginCmd(flags *Flags) *LoginCmd {
	return &LoginCmd{flags: flags}
}

// Register adds the login and logout commands to the application
func (cmd *LoginCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Store the token used to talk to the chat server",
			UsageText: "threadline login --token <token> [--user-id <id>] [--username <name>]",
			Description: `Saves a bearer token for the chat server and checks it by listing threads.

When the token is a JWT carrying a user_id (or sub) claim, that id identifies
the current user and --user-id is ignored. An expired token is rejected.

Logging in replaces any stored session.`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "token",
					Aliases:     []string{"t"},
					Usage:       "bearer token issued by the server",
					Sources:     cli.EnvVars("THREADLINE_TOKEN"),
					Required:    true,
					Destination: &cmd.token,
				},
				&cli.Int64Flag{
					Name:        "user-id",
					Usage:       "current user id when the token does not carry one",
					Destination: &cmd.userID,
				},
				&cli.StringFlag{
					Name:        "username",
					Aliases:     []string{"u"},
					Usage:       "current username",
					Destination: &cmd.username,
				},
				&cli.BoolFlag{
					Name:        "skip-verify",
					Usage:       "save the token without contacting the server",
					Destination: &cmd.skipVerify,
				},
			},
			Action: cmd.runLogin,
		},
		&cli.Command{
			Name:        "logout",
			Usage:       "Forget the stored token",
			UsageText:   "threadline logout",
			Description: "Removes the stored session. Cached thread history is kept.",
			Action:      cmd.runLogout,
		},
	)

	return app
}

func (cmd *LoginCmd) runLogin(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	sess, err := session.New(cmd.token, cmd.userID, cmd.username)
	if err != nil {
		return err
	}
	if sess.Credential.Expired(time.Now()) {
		return fmt.Errorf("token expired")
	}

	store := sessionStore(cmd.flags.Config)

	prev, err := store.Load(ctx)
	switch {
	case err == nil && prev.Credential != sess.Credential:
		log.Debug().Int64("user_id", prev.User.ID).Msg("replacing stored session")
	case err != nil && !errors.Is(err, session.ErrNoSession):
		log.Warn().Err(err).Msg("unreadable session, overwriting")
	}

	if err := store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if !cmd.skipVerify {
		if err := cmd.verify(ctx); err != nil {
			_ = store.Clear(ctx)
			return fmt.Errorf("verify token: %w", err)
		}
	}

	if exp, ok := sess.Credential.ExpiresAt(); ok {
		p.Successf("Logged in as user %d (token expires %s)", sess.User.ID, exp.Local().Format(time.DateTime))
	} else {
		p.Successf("Logged in as user %d", sess.User.ID)
	}
	return nil
}

func (cmd *LoginCmd) verify(ctx context.Context) error {
	app, err := connect(ctx, cmd.flags)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(ctx, cmd.flags.Config.Stream.JoinTimeout)
	defer cancel()

	_, err = app.Service.RefreshThreads(ctx)
	return err
}

func (cmd *LoginCmd) runLogout(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	store := sessionStore(cmd.flags.Config)

	if _, err := store.Load(ctx); errors.Is(err, session.ErrNoSession) {
		p.Infof("Not logged in")
		return nil
	}

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	p.Successf("Logged out")
	return nil
}
