package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/threadline/internal/printer"
)

type PruneCmd struct {
	flags *Flags
}

// NewPruneCmd creates a new prune command
func NewPruneCmd(flags *Flags) *PruneCmd {
	return &PruneCmd{flags: flags}
}

// Register adds the prune command to the application
func (cmd *PruneCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "prune",
		Usage:     "Remove cached thread history that has not been refreshed",
		UsageText: "threadline prune [--older-than 720h] [--all]",
		Description: `Removes local thread history snapshots not saved within --older-than.

Snapshots are written whenever a thread is opened or closed and are used by
'msg history --cached' and as a fallback when the server is unreachable.

Use --all to delete every snapshot. Server-side history is not affected.`,
		Action: cmd.run,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "age after which a snapshot is removed",
				Value: 30 * 24 * time.Hour,
			},
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "delete all snapshots regardless of age",
			},
		},
	})

	return app
}

func (cmd *PruneCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	olderThan := c.Duration("older-than")
	if c.Bool("all") {
		olderThan = 0
	}

	count, err := historyStore(cmd.flags.Config).Prune(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	if count == 0 {
		p.Infof("No snapshots to prune")
		return nil
	}

	p.Successf("Pruned %d snapshot(s)", count)

	return nil
}
