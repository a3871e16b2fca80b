package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/printer"
	"github.com/hay-kot/threadline/internal/threadline"
	"github.com/hay-kot/threadline/internal/tui"
	"github.com/hay-kot/threadline/pkg/tmpl"
)

type ThreadsCmd struct {
	flags *Flags

	// ls flags
	match  string
	format string
	json   bool

	// new flags
	users []string
	name  string
}

// NewThreadsCmd creates a new threads command.
func NewThreadsCmd(flags *Flags) *ThreadsCmd {
	return &ThreadsCmd{flags: flags}
}

// Register adds the threads command to the application.
func (cmd *ThreadsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "threads",
		Usage: "List and create chat threads",
		Commands: []*cli.Command{
			cmd.lsCmd(),
			cmd.newCmd(),
		},
	})
	return app
}

func (cmd *ThreadsCmd) lsCmd() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List your threads",
		UsageText: "threadline threads ls [--match <glob>] [--format <template>] [--json]",
		Description: `Lists your threads, most recently updated first.

--match filters on the thread's display name using glob syntax and replaces
tui.thread_filter from the config file.

--format renders each thread with a Go template. Fields: .ID, .Name,
.Participants, .LastMessage, .UpdatedAt. Helpers: time, oneline, truncate, json.

Examples:
  threadline threads ls
  threadline threads ls --match 'team-*'
  threadline threads ls --format '{{.ID}} {{.Name}} {{time .UpdatedAt}}'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "match",
				Aliases:     []string{"m"},
				Usage:       "glob matched against display names",
				Destination: &cmd.match,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Go template applied to each thread",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print one JSON object per line",
				Destination: &cmd.json,
			},
		},
		Action: cmd.runLs,
	}
}

func (cmd *ThreadsCmd) newCmd() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Start a thread",
		UsageText: "threadline threads new [--user <name>]... [--name <name>]",
		Description: `Creates a thread with the given participants. You are added by the server.

Without --user an interactive form asks for participants and a name.

Examples:
  threadline threads new --user ada
  threadline threads new --user ada --user grace --name planning`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "participant username (repeatable)",
				Destination: &cmd.users,
			},
			&cli.StringFlag{
				Name:        "name",
				Aliases:     []string{"n"},
				Usage:       "thread name",
				Destination: &cmd.name,
			},
		},
		Action: cmd.runNew,
	}
}

func (cmd *ThreadsCmd) runLs(ctx context.Context, c *cli.Command) error {
	var render *tmpl.Template
	if cmd.format != "" {
		var err error
		if render, err = tmpl.Compile(cmd.format); err != nil {
			return err
		}
	}

	app, err := connect(ctx, cmd.flags)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	threads, err := app.Service.RefreshThreads(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	userID := app.Service.Session().User.ID
	if cmd.match != "" {
		threads = threadline.FilterThreads(threads, cmd.match, userID)
	} else {
		threads = app.Service.Threads()
	}

	w := c.Root().Writer
	switch {
	case cmd.json:
		return printThreadsJSON(w, threads, userID)
	case render != nil:
		for _, th := range threads {
			if err := renderLine(w, render, threadView(th, userID)); err != nil {
				return err
			}
		}
		return nil
	}

	if len(threads) == 0 {
		printer.Ctx(ctx).Infof("No threads")
		return nil
	}

	p := printer.New(w)
	now := time.Now()
	for _, th := range threads {
		p.Thread(th, userID, now)
	}
	return nil
}

func (cmd *ThreadsCmd) runNew(ctx context.Context, c *cli.Command) error {
	usernames, name := cmd.users, cmd.name

	if len(usernames) == 0 {
		form := tui.NewNewThreadForm()
		if err := form.Form().RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return fmt.Errorf("thread form: %w", err)
		}
		result := form.Result()
		usernames, name = result.Usernames, result.Name
	}

	app, err := connect(ctx, cmd.flags)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	th, err := app.Service.CreateThread(ctx, usernames, name)
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Created thread %d (%s)", th.ID, th.DisplayName(app.Service.Session().User.ID))
	return nil
}

// threadJSON is the machine-readable view of a thread, carrying the display
// name the TUI shows.
type threadJSON struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Participants []messaging.User   `json:"participants"`
	LastMessage  *messaging.Message `json:"last_message,omitempty"`
	UpdatedAt    int64              `json:"updated_at"`
}

func threadView(th messaging.Thread, currentUserID int64) threadJSON {
	return threadJSON{
		ID:           th.ID,
		Name:         th.DisplayName(currentUserID),
		Participants: th.Participants,
		LastMessage:  th.LastMessage,
		UpdatedAt:    th.UpdatedAt,
	}
}

func printThreadsJSON(w io.Writer, threads []messaging.Thread, currentUserID int64) error {
	enc := json.NewEncoder(w)
	for _, th := range threads {
		if err := enc.Encode(threadView(th, currentUserID)); err != nil {
			return err
		}
	}
	return nil
}

// renderLine writes one template rendering followed by a newline.
func renderLine(w io.Writer, t *tmpl.Template, data any) error {
	out, err := t.Render(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
