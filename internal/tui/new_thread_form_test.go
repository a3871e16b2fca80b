package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseParticipants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "ada", []string{"ada"}},
		{"commas", "ada,grace", []string{"ada", "grace"}},
		{"commas and spaces", " ada ,  grace\tlinus ", []string{"ada", "grace", "linus"}},
		{"empty", "  , ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseParticipants(tt.input)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewThreadForm_Result(t *testing.T) {
	f := NewNewThreadForm()
	f.participants = "ada, grace"
	f.name = "  design  "

	got := f.Result()
	assert.Equal(t, []string{"ada", "grace"}, got.Usernames)
	assert.Equal(t, "design", got.Name)
}
