package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompter_Decide(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       bool
		wantPrompt int
	}{
		{"yes", "yes\n", true, 1},
		{"no", "no\n", false, 1},
		{"windows line ending", "yes\r\n", true, 1},
		{"re-prompts on anything else", "y\nYes\n no\n\nno\n", false, 5},
		{"last line without newline", "maybe\nyes", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			prompter := NewPrompter(NewLineAsker(strings.NewReader(tt.input), &out), &out)

			got, err := prompter.Decide()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			assert.Equal(t, 1, strings.Count(out.String(), "Proceed with installation?"))
			assert.Equal(t, tt.wantPrompt, strings.Count(out.String(), "Type yes or no only:"))
		})
	}
}

func TestPrompter_Decide_EOF(t *testing.T) {
	var out bytes.Buffer
	prompter := NewPrompter(NewLineAsker(strings.NewReader("maybe\n"), &out), &out)

	_, err := prompter.Decide()
	assert.Error(t, err)
}
