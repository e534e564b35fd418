package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const defaultAction = "WROTE"

var outputHeader = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1F1F1")).Background(lipgloss.Color("#6C50FF")).Bold(true).Padding(0, 1).MarginRight(1)

// PrintConfirmation prints a short action header plus content to w.
func PrintConfirmation(w io.Writer, action, content string) {
	if action == "" {
		action = defaultAction
	}
	header := outputHeader.SetString(strings.ToUpper(action))
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Center, header.String(), content))
}

// PrintError prints err with a red header to w, as the CLI does on exit.
func PrintError(w io.Writer, reason, details string) {
	s := StderrStyles()
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.ErrPadding.Render(s.ErrorHeader.String(), reason))
	if details != "" {
		fmt.Fprintln(w, s.ErrPadding.Render(s.ErrorDetails.Render(details)))
	}
	fmt.Fprintln(w)
}
