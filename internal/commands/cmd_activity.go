package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/printer"
)

type ActivityCmd struct {
	flags *Flags

	last   int
	thread int64
	since  time.Duration
	json   bool
}

// NewActivityCmd creates a new activity command.
func NewActivityCmd(flags *Flags) *ActivityCmd {
	return &ActivityCmd{flags: flags}
}

// Register adds the activity command to the application.
func (cmd *ActivityCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "activity",
		Usage:     "Show the local log of stream activity",
		UsageText: "threadline activity [--last N] [--thread <id>] [--since 1h] [--json]",
		Description: `Prints joins, leaves, reconnects, connection changes and sends recorded
by this machine, newest first.

Examples:
  threadline activity
  threadline activity --thread 12 --last 50
  threadline activity --since 30m --json`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "last",
				Aliases:     []string{"n"},
				Usage:       "number of events to show (0 for all)",
				Value:       20,
				Destination: &cmd.last,
			},
			&cli.Int64Flag{
				Name:        "thread",
				Aliases:     []string{"t"},
				Usage:       "only events for this thread",
				Destination: &cmd.thread,
			},
			&cli.DurationFlag{
				Name:        "since",
				Usage:       "only events newer than this",
				Destination: &cmd.since,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print one JSON object per line",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ActivityCmd) run(ctx context.Context, c *cli.Command) error {
	store := activityStore(cmd.flags.Config)

	var (
		events []messaging.Activity
		err    error
	)
	switch {
	case cmd.thread > 0:
		events, err = store.ListThread(cmd.thread, 0)
	case cmd.since > 0:
		events, err = store.ListSince(time.Now().Add(-cmd.since), cmd.last)
	default:
		events, err = store.List(cmd.last)
	}
	if err != nil {
		return fmt.Errorf("list activity: %w", err)
	}

	events = filterActivity(events, cmd.since, cmd.last, time.Now())

	if cmd.json {
		enc := json.NewEncoder(c.Root().Writer)
		for _, a := range events {
			if err := enc.Encode(a); err != nil {
				return err
			}
		}
		return nil
	}

	if len(events) == 0 {
		printer.Ctx(ctx).Infof("No activity recorded")
		return nil
	}

	p := printer.New(c.Root().Writer)
	for _, a := range events {
		line := fmt.Sprintf("%s  %-9s thread %d", a.Timestamp.Local().Format(time.DateTime), a.Type, a.ThreadID)
		if a.MessageID != 0 {
			line += fmt.Sprintf("  message %d", a.MessageID)
		}
		if a.Detail != "" {
			line += "  " + a.Detail
		}
		p.Printf("%s", line)
	}
	return nil
}

// filterActivity applies the since window and the limit to newest-first
// events. The store only applies one filter per query.
func filterActivity(events []messaging.Activity, since time.Duration, limit int, now time.Time) []messaging.Activity {
	if since > 0 {
		cutoff := now.Add(-since)
		kept := events[:0:0]
		for _, a := range events {
			if a.Timestamp.After(cutoff) {
				kept = append(kept, a)
			}
		}
		events = kept
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}
