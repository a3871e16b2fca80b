// Package tmpl renders the user supplied --format templates used by the
// message and thread commands.
package tmpl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"
)

// Template is a compiled --format template, safe to render repeatedly.
type Template struct {
	t *template.Template
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unixTime formats unix seconds with layout, defaulting to time.Kitchen.
func unixTime(ts int64, layout ...string) string {
	l := time.Kitchen
	if len(layout) > 0 {
		l = layout[0]
	}
	return time.Unix(ts, 0).Format(l)
}

// oneLine collapses line breaks so a message fits on one output line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(n int, s string) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

var funcs = template.FuncMap{
	"json":     toJSON,
	"time":     unixTime,
	"oneline":  oneLine,
	"truncate": truncate,
}

// Compile parses a template string. Undefined keys are errors at render time.
//
// Available template functions:
//   - json: encode a value as JSON
//   - time: format unix seconds, optionally with a layout ({{ time .CreatedAt "15:04" }})
//   - oneline: collapse whitespace and line breaks
//   - truncate: shorten to n runes ({{ truncate 40 .Content }})
func Compile(tmpl string) (*Template, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Template{t: t}, nil
}

// Render executes the template with data.
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
func Render(tmpl string, data any) (string, error) {
	t, err := Compile(tmpl)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}
