package commands

import (
	"context"
	"encoding/json"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/threadline/internal/commands/doctor"
	"github.com/hay-kot/threadline/internal/printer"
)

type DoctorCmd struct {
	flags  *Flags
	format string
	fix    bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "doctor",
		Usage:     "Run health checks on your threadline setup",
		UsageText: "threadline doctor [--fix] [--format text|json]",
		Description: `Checks the configuration, the stored session token and the local history
snapshots. --fix removes expired sessions and unreadable snapshots.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "repair the problems that can be repaired",
				Destination: &cmd.fix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	checks := []doctor.Check{
		doctor.NewConfigCheck(cmd.flags.Config, cmd.flags.ConfigPath, cmd.flags.ConfigErr),
	}

	// The stores live under the data dir, so they need a loaded config.
	if cfg := cmd.flags.Config; cfg != nil {
		checks = append(checks,
			doctor.NewSessionCheck(sessionStore(cfg), cmd.fix),
			doctor.NewSnapshotCheck(historyStore(cfg), cmd.fix),
		)
	}

	report := doctor.Run(ctx, checks...)

	if cmd.format == "json" {
		return cmd.outputJSON(c, report)
	}

	return cmd.outputText(c, report)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, report doctor.Report) error {
	out := struct {
		Healthy bool `json:"healthy"`
		doctor.Report
	}{
		Healthy: report.Healthy(),
		Report:  report,
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (cmd *DoctorCmd) outputText(c *cli.Command, report doctor.Report) error {
	p := printer.New(c.Root().Writer)

	for _, result := range report.Checks {
		p.Section(result.Name)

		for _, item := range result.Items {
			switch item.Status {
			case doctor.StatusPass:
				p.CheckItem(item.Label, item.Detail)
			case doctor.StatusWarn:
				p.WarnItem(item.Label, item.Detail)
			case doctor.StatusFail:
				p.FailItem(item.Label, item.Detail)
			}
		}

		p.Printf("")
	}

	sum := report.Summary
	p.Printf("Summary: %d passed, %d warnings, %d failed", sum.Passed, sum.Warned, sum.Failed)

	if sum.Fixable > 0 {
		p.Infof("%d issue(s) can be repaired with 'threadline doctor --fix'", sum.Fixable)
	}

	if !report.Healthy() {
		return cli.Exit("", 1)
	}

	return nil
}
