package present

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/exp/ordered"
)

const (
	markdownTabWidth = 4
	minWordWrap      = 20
	maxWordWrap      = 200
)

// WordWrap clamps the configured wrap width to something readable.
func WordWrap(n int) int {
	return ordered.Clamp(n, minWordWrap, maxWordWrap)
}

// RenderMarkdownForTTY renders markdown for terminal output.
func RenderMarkdownForTTY(input string, wordWrap int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(WordWrap(wordWrap)),
	)
	if err != nil {
		return "", fmt.Errorf("new markdown renderer: %w", err)
	}

	out, err := r.Render(input)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	out = strings.ReplaceAll(out, "\t", strings.Repeat(" ", markdownTabWidth))
	return out + "\n", nil
}

// Answer formats an answer for w: rendered markdown on a TTY, the raw text
// otherwise or when raw is set. Rendering failures fall back to raw text.
func Answer(text string, wordWrap int, tty, raw bool) string {
	if raw || !tty {
		return strings.TrimRightFunc(text, unicode.IsSpace) + "\n"
	}
	out, err := RenderMarkdownForTTY(text, wordWrap)
	if err != nil {
		return strings.TrimRightFunc(text, unicode.IsSpace) + "\n"
	}
	return out
}
