package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/threadline/internal/cache"
	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/printer"
	"github.com/hay-kot/threadline/internal/stream"
	"github.com/hay-kot/threadline/internal/threadline"
	"github.com/hay-kot/threadline/pkg/tmpl"
)

type MsgCmd struct {
	flags *Flags

	// send flags
	sendFile string

	// watch flags
	watchFormat  string
	watchLast    int
	watchTimeout time.Duration
	watchWait    bool
	watchJSON    bool

	// history flags
	historyLimit  int
	historyOffset int
	historyCached bool
	historyJSON   bool
}

// NewMsgCmd creates a new msg command
func NewMsgCmd(flags *Flags) *MsgCmd {
	return &MsgCmd{flags: flags}
}

// Register adds the msg command to the application
func (cmd *MsgCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "msg",
		Usage: "Send, watch and page through thread messages",
		Description: `Message commands for a single thread.

Use 'threadline threads ls' to find thread ids.`,
		Commands: []*cli.Command{
			cmd.sendCmd(),
			cmd.watchCmd(),
			cmd.historyCmd(),
		},
	})

	return app
}

func (cmd *MsgCmd) sendCmd() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a message to a thread",
		UsageText: "threadline msg send <thread> [message] [-f file]",
		Description: `Sends a message to a thread.

The message is read from the argument, from --file, or from stdin.

Examples:
  threadline msg send 12 "on my way"
  echo "build passed" | threadline msg send 12
  threadline msg send 12 -f notes.md`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "read message from file",
				Destination: &cmd.sendFile,
			},
		},
		Action: cmd.runSend,
	}
}

func (cmd *MsgCmd) watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream a thread's messages",
		UsageText: "threadline msg watch <thread> [--last N] [--format <template>] [--timeout 5m] [--wait]",
		Description: `Joins a thread and prints messages as they arrive.

The last --last messages of history are printed first. Connection changes are
reported on stderr; the stream reconnects on its own after transient failures.

--format renders each message with a Go template. Fields: .ID, .ThreadID,
.SenderID, .SenderUsername, .Content, .CreatedAt. Helpers: time, oneline,
truncate, json.

Examples:
  threadline msg watch 12
  threadline msg watch 12 --last 0 --format '{{.SenderUsername}}: {{oneline .Content}}'
  threadline msg watch 12 --wait --timeout 1h   # exit after the next message`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "last",
				Aliases:     []string{"n"},
				Usage:       "history messages printed before streaming",
				Value:       10,
				Destination: &cmd.watchLast,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Go template applied to each message",
				Destination: &cmd.watchFormat,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print one JSON object per message",
				Destination: &cmd.watchJSON,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "stop watching after this long (0 watches until interrupted)",
				Destination: &cmd.watchTimeout,
			},
			&cli.BoolFlag{
				Name:        "wait",
				Aliases:     []string{"w"},
				Usage:       "exit after the first new message",
				Destination: &cmd.watchWait,
			},
		},
		Action: cmd.runWatch,
	}
}

func (cmd *MsgCmd) historyCmd() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Print a page of thread history",
		UsageText: "threadline msg history <thread> [--limit N] [--offset N] [--cached]",
		Description: `Prints one page of history, oldest first.

--offset counts back from the newest message. --cached reads the copy saved
by the last open of the thread and needs no server.

Examples:
  threadline msg history 12
  threadline msg history 12 --limit 20 --offset 20
  threadline msg history 12 --cached --json`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "page size (default: history.page_size)",
				Destination: &cmd.historyLimit,
			},
			&cli.IntFlag{
				Name:        "offset",
				Usage:       "messages to skip from the newest",
				Destination: &cmd.historyOffset,
			},
			&cli.BoolFlag{
				Name:        "cached",
				Usage:       "read the local copy instead of the server",
				Destination: &cmd.historyCached,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print one JSON object per message",
				Destination: &cmd.historyJSON,
			},
		},
		Action: cmd.runHistory,
	}
}

func (cmd *MsgCmd) runSend(ctx context.Context, c *cli.Command) error {
	threadID, err := threadArg(c)
	if err != nil {
		return err
	}

	var content string
	switch {
	case c.NArg() >= 2:
		content = strings.Join(c.Args().Tail(), " ")
	case cmd.sendFile != "":
		data, err := os.ReadFile(cmd.sendFile)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		content = string(data)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		content = string(data)
	}

	app, err := connect(ctx, cmd.flags)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	msg, err := app.Service.Send(ctx, threadID, strings.TrimRight(content, "\n"))
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Sent message %d", msg.ID)
	return nil
}

func (cmd *MsgCmd) runWatch(ctx context.Context, c *cli.Command) error {
	threadID, err := threadArg(c)
	if err != nil {
		return err
	}

	out, err := cmd.messageWriter(c.Root().Writer, cmd.watchFormat, cmd.watchJSON)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.watchTimeout)
		defer cancel()
	}

	app, err := connect(ctx, cmd.flags)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	snapshot, err := app.Service.Open(ctx, threadID)
	if err != nil {
		return fmt.Errorf("open thread %d: %w", threadID, err)
	}

	userID := app.Service.Session().User.ID
	if cmd.watchLast > 0 {
		for _, m := range snapshot.Tail(cmd.watchLast).Items() {
			if err := out(m, userID); err != nil {
				return err
			}
		}
	}

	return watchThread(ctx, app.Service, threadID, cmd.watchWait, printer.Ctx(ctx), func(m messaging.Message) error {
		return out(m, userID)
	})
}

// watchThread prints updates for threadID until ctx ends, the subscription
// stops, or (with once) the first message arrives.
func watchThread(ctx context.Context, svc *threadline.Service, threadID int64, once bool, p *printer.Printer, emit func(messaging.Message) error) error {
	updates := svc.Updates()

	// shown is the last connection state printed.
	var shown threadline.Status
	show := func(st threadline.Status) {
		p.Connection(st.Live, st.Detail)
		shown = st
	}

	ended := func(st threadline.Status) error {
		if shown.Live || shown.Detail != st.Detail {
			show(threadline.Status{Detail: st.Detail})
		}
		switch {
		case st.Err != nil:
			return st.Err
		case once:
			return fmt.Errorf("stream for thread %d ended before a message arrived", threadID)
		default:
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			if once && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout waiting for message on thread %d", threadID)
			}
			return nil
		case u := <-updates:
			if u.ThreadID != threadID {
				continue
			}

			switch u.Kind {
			case threadline.UpdateMessage:
				if err := emit(u.Message); err != nil {
					return err
				}
				if once {
					return nil
				}
			case threadline.UpdateStatus:
				if u.Status.Live != shown.Live {
					show(u.Status)
				}
			case threadline.UpdateError:
				var fault *stream.StreamFaultError
				if !errors.As(u.Err, &fault) {
					return u.Err
				}
				if shown.Live {
					show(u.Status)
				}
			case threadline.UpdateEnded:
				return ended(u.Status)
			}
		}
	}
}

func (cmd *MsgCmd) runHistory(ctx context.Context, c *cli.Command) error {
	threadID, err := threadArg(c)
	if err != nil {
		return err
	}

	out, err := cmd.messageWriter(c.Root().Writer, "", cmd.historyJSON)
	if err != nil {
		return err
	}

	if cmd.historyCached {
		msgs, err := historyStore(cmd.flags.Config).Load(ctx, threadID)
		if err != nil {
			return fmt.Errorf("cached history: %w", err)
		}
		msgs = pageOf(msgs, cmd.historyLimit, cmd.historyOffset)

		var userID int64
		if sess, err := sessionStore(cmd.flags.Config).Load(ctx); err == nil {
			userID = sess.User.ID
		}
		for _, m := range msgs {
			if err := out(m, userID); err != nil {
				return err
			}
		}
		return nil
	}

	app, err := connect(ctx, cmd.flags)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	page, err := app.Service.History(ctx, threadID, cmd.historyLimit, cmd.historyOffset)
	if err != nil {
		return err
	}

	userID := app.Service.Session().User.ID
	for _, m := range cache.FromPage(page).Items() {
		if err := out(m, userID); err != nil {
			return err
		}
	}
	return nil
}

// pageOf applies limit and offset (counted from the newest message) to a
// chronological slice, keeping it chronological.
func pageOf(msgs []messaging.Message, limit, offset int) []messaging.Message {
	end := len(msgs) - max(offset, 0)
	if end <= 0 {
		return nil
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	return msgs[start:end]
}

type messageFunc func(m messaging.Message, currentUserID int64) error

// messageWriter picks the output for messages: a template, JSON lines, or
// the printer's chat layout.
func (cmd *MsgCmd) messageWriter(w io.Writer, format string, asJSON bool) (messageFunc, error) {
	switch {
	case asJSON:
		enc := json.NewEncoder(w)
		return func(m messaging.Message, _ int64) error {
			return enc.Encode(m)
		}, nil
	case format != "":
		t, err := tmpl.Compile(format)
		if err != nil {
			return nil, err
		}
		return func(m messaging.Message, _ int64) error {
			return renderLine(w, t, m)
		}, nil
	}

	p := printer.New(w)
	return func(m messaging.Message, currentUserID int64) error {
		p.Message(m, currentUserID)
		return nil
	}, nil
}

// threadArg parses the first positional argument as a thread id.
func threadArg(c *cli.Command) (int64, error) {
	if c.NArg() < 1 {
		return 0, fmt.Errorf("thread id is required")
	}

	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid thread id %q", c.Args().First())
	}
	return id, nil
}
