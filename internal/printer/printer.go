// Package printer writes coloured CLI output: status lines, validation
// errors and chat messages.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/threadline/internal/core/messaging"
)

// ANSI color codes (Tokyo Night palette)
const (
	ColorReset     = "\033[0m"
	ColorRed       = "\033[38;2;215;95;107m"  // #d75f6b
	ColorGreen     = "\033[38;2;158;206;106m" // #9ece6a
	ColorYellow    = "\033[38;2;224;175;104m" // #e0af68
	ColorBlue      = "\033[38;2;122;162;247m" // #7aa2f7
	ColorGray      = "\033[38;2;86;95;137m"   // #565f89
	ColorBold      = "\033[1m"
	ColorUnderline = "\033[4m"
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
	Live  = "●"
)

type ctxKey struct{}

// Printer handles formatted output with colors and styles.
type Printer struct {
	writer  io.Writer
	noColor bool
}

// New creates a new Printer that writes to the given writer.
func New(w io.Writer) *Printer {
	return &Printer{writer: w}
}

// WithoutColor disables ANSI codes, for pipes and tests.
func (p *Printer) WithoutColor() *Printer {
	return &Printer{writer: p.writer, noColor: true}
}

// NewContext returns a context with the printer attached.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates a default one.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

// FatalError prints a formatted error box and does NOT exit.
// Caller should handle exit code.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.printValidationErrors(err, fieldErrs)
		return
	}

	p.line(p.colorize(ColorRed, "╭ Error"))
	p.line(p.colorize(ColorRed, "│") + " " + p.colorize(ColorGray, err.Error()))
	p.line(p.colorize(ColorRed, "╵"))
}

// printValidationErrors formats criterio.FieldErrors, keeping any context the
// error was wrapped with (e.g. "load config: invalid config").
func (p *Printer) printValidationErrors(wrappedErr error, fieldErrs criterio.FieldErrors) {
	errStr := wrappedErr.Error()
	fieldErrStr := fieldErrs.Error()

	errContext := ""
	if idx := strings.Index(errStr, fieldErrStr); idx > 0 {
		errContext = strings.TrimSuffix(errStr[:idx], ": ")
	}

	p.line(p.colorize(ColorRed, "╭ Validation Error"))

	if errContext != "" {
		p.line(p.colorize(ColorRed, "│") + " " + p.colorize(ColorGray, errContext))
		p.line(p.colorize(ColorRed, "│"))
	}

	for _, fe := range fieldErrs {
		line := p.colorize(ColorRed, "│") + " " + p.colorize(ColorRed, Cross) + " "
		if fe.Field != "" {
			line += p.colorize(ColorGray, fe.Field+": ")
		}
		line += fe.Err.Error()
		p.line(line)
	}

	p.line(p.colorize(ColorRed, "╵"))
}

// Errorf prints an error message in red.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.colorize(ColorRed, Cross+" "+fmt.Sprintf(format, args...)))
}

// Successf prints a success message in green.
func (p *Printer) Successf(format string, args ...any) {
	p.line(p.colorize(ColorGreen, Check+" "+fmt.Sprintf(format, args...)))
}

// Infof prints an info message in gray.
func (p *Printer) Infof(format string, args ...any) {
	p.line(p.colorize(ColorGray, Dot+" "+fmt.Sprintf(format, args...)))
}

// Warnf prints a warning message in yellow.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.colorize(ColorYellow, Dot+" "+fmt.Sprintf(format, args...)))
}

// Printf prints a plain message without colors.
func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

// Section prints a section header (bold + underlined).
func (p *Printer) Section(title string) {
	p.line(p.colorize(ColorBold+ColorUnderline, title))
}

// Connection prints the Live/Offline indicator for a thread.
func (p *Printer) Connection(live bool, detail string) {
	color, label := ColorGray, "Offline"
	if live {
		color, label = ColorGreen, "Live"
	}

	line := p.colorize(color, Live+" "+label)
	if detail != "" {
		line += " " + p.colorize(ColorGray, detail)
	}
	p.line(line)
}

// Message prints one chat message. Messages sent by currentUserID are
// highlighted.
func (p *Printer) Message(m messaging.Message, currentUserID int64) {
	sender := m.SenderUsername
	if sender == "" {
		sender = fmt.Sprintf("user %d", m.SenderID)
	}

	color := ColorBlue
	if m.SenderID == currentUserID {
		color = ColorGreen
	}

	header := p.colorize(ColorGray, m.Time().Format(time.Kitchen)) + " " + p.colorize(color, sender)
	lines := strings.Split(m.Content, "\n")

	p.line(header + " " + lines[0])
	for _, l := range lines[1:] {
		p.line("  " + l)
	}
}

// Thread prints one row of the thread list.
func (p *Printer) Thread(th messaging.Thread, currentUserID int64, now time.Time) {
	line := fmt.Sprintf("%s %s", p.colorize(ColorGray, fmt.Sprintf("%5d", th.ID)), p.colorize(ColorBold, th.DisplayName(currentUserID)))

	if th.LastMessage != nil {
		preview := strings.Join(strings.Fields(th.LastMessage.Content), " ")
		if len([]rune(preview)) > 50 {
			preview = string([]rune(preview)[:49]) + "…"
		}
		line += "  " + preview
	}

	if th.UpdatedAt > 0 {
		line += "  " + p.colorize(ColorGray, messaging.RelativeTime(th.UpdatedAt, now))
	}
	p.line(line)
}

// CheckItem prints a success item with green checkmark.
func (p *Printer) CheckItem(label, detail string) {
	p.printItem(ColorGreen, Check, label, detail)
}

// WarnItem prints a warning item with yellow dot.
func (p *Printer) WarnItem(label, detail string) {
	p.printItem(ColorYellow, Dot, label, detail)
}

// FailItem prints a failure item with red cross.
func (p *Printer) FailItem(label, detail string) {
	p.printItem(ColorRed, Cross, label, detail)
}

func (p *Printer) printItem(color, symbol, label, detail string) {
	line := "  " + p.colorize(color, symbol) + " " + label
	if detail != "" {
		line += ": " + detail
	}
	p.line(line)
}

func (p *Printer) line(s string) {
	_, _ = io.WriteString(p.writer, s+"\n")
}

// colorize applies ANSI color codes to text.
func (p *Printer) colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + ColorReset
}
