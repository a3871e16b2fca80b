package tui

import (
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/hay-kot/threadline/internal/core/validate"
	"github.com/hay-kot/threadline/internal/styles"
)

// NewThreadForm wraps a huh.Form for starting a thread.
type NewThreadForm struct {
	form         *huh.Form
	participants string // comma or space separated usernames
	name         string
}

// NewThreadFormResult contains the form submission result.
type NewThreadFormResult struct {
	Usernames []string
	Name      string
}

// NewNewThreadForm creates the form.
func NewNewThreadForm() *NewThreadForm {
	f := &NewThreadForm{}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Participants").
				Description("Usernames separated by commas or spaces").
				Value(&f.participants).
				Validate(func(s string) error {
					_, err := validate.Participants(ParseParticipants(s))
					return err
				}),
			huh.NewInput().
				Title("Name").
				Description("Optional; direct threads are named after the participants").
				Value(&f.name),
		),
	).WithTheme(styles.FormTheme()).WithShowHelp(true)

	return f
}

// Form returns the underlying huh.Form for tea.Model integration.
func (f *NewThreadForm) Form() *huh.Form {
	return f.form
}

// Result returns the form result. Only valid once the form completed.
func (f *NewThreadForm) Result() NewThreadFormResult {
	return NewThreadFormResult{
		Usernames: ParseParticipants(f.participants),
		Name:      strings.TrimSpace(f.name),
	}
}

// ParseParticipants splits a participant list on commas and whitespace.
func ParseParticipants(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
