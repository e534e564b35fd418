package present

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// terminal caches whether f is attached to a terminal. Cygwin and MSYS
// ptys count as terminals.
func terminal(f *os.File) func() bool {
	return sync.OnceValue(func() bool {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	})
}

var (
	stdinTerminal  = terminal(os.Stdin)
	stdoutTerminal = terminal(os.Stdout)
)

// IsInputTTY reports whether questions can be typed rather than piped.
func IsInputTTY() bool { return stdinTerminal() }

// IsOutputTTY reports whether answers go to a terminal, in which case they
// are rendered as markdown instead of written raw.
func IsOutputTTY() bool { return stdoutTerminal() }

var (
	stdoutRenderer = sync.OnceValue(lipgloss.DefaultRenderer)
	stderrRenderer = sync.OnceValue(func() *lipgloss.Renderer {
		return lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true))
	})

	stdoutStyles = sync.OnceValue(func() Styles { return MakeStyles(stdoutRenderer()) })
	stderrStyles = sync.OnceValue(func() Styles { return MakeStyles(stderrRenderer()) })
)

// StdoutRenderer is the renderer for answers and listings.
func StdoutRenderer() *lipgloss.Renderer { return stdoutRenderer() }

// StdoutStyles are the styles for answers and listings.
func StdoutStyles() Styles { return stdoutStyles() }

// StderrRenderer is the renderer for errors, confirmations and the spinner.
func StderrRenderer() *lipgloss.Renderer { return stderrRenderer() }

// StderrStyles are the styles for errors, confirmations and the spinner.
func StderrStyles() Styles { return stderrStyles() }
