package tui

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/papermate/internal/agent"
	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
)

type chatState int

const (
	chatInputState chatState = iota
	chatWaitingState
)

// ChatAgent is the conversation the chat REPL drives.
type ChatAgent interface {
	Asker
	History() []proto.Message
	ClearHistory()
}

// SaveFn persists conversation messages after each turn.
type SaveFn func([]proto.Message) error

// Chat is the Bubble Tea model for an interactive multi-turn REPL.
type Chat struct {
	state    chatState
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	glam     *glamour.TermRenderer
	renderer *lipgloss.Renderer
	styles   present.Styles

	historyBuf bytes.Buffer

	agent  ChatAgent
	opts   provider.Options
	saveFn SaveFn
	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int

	initialPrompt string
	waitingSince  time.Time
	turns         int
}

// NewChat creates the Bubble Tea model for interactive chat.
func NewChat(
	ctx context.Context,
	r *lipgloss.Renderer,
	a ChatAgent,
	opts provider.Options,
	wordWrap int,
	saveFn SaveFn,
	initialPrompt string,
) *Chat {
	gr, _ := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(present.WordWrap(wordWrap)),
	)

	ti := textinput.New()
	ti.Prompt = "papermate> "
	ti.Focus()
	ti.CharLimit = 0

	vp := viewport.New(0, 0)
	vp.GotoBottom()

	styles := present.MakeStyles(r)
	c := &Chat{
		state:         chatInputState,
		input:         ti,
		viewport:      vp,
		spinner:       spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.CyclingChars)),
		glam:          gr,
		renderer:      r,
		styles:        styles,
		agent:         a,
		opts:          opts,
		saveFn:        saveFn,
		ctx:           ctx,
		initialPrompt: initialPrompt,
	}

	// Pre-render existing history into historyBuf.
	for _, msg := range a.History() {
		if msg.Role == proto.RoleSystem || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case proto.RoleUser:
			fmt.Fprintf(&c.historyBuf, "> %s\n\n", msg.Content)
		case proto.RoleAssistant:
			fmt.Fprintf(&c.historyBuf, "%s\n\n", msg.Content)
		}
	}
	return c
}

// chatSubmitMsg is sent when the user presses Enter with non-empty input.
type chatSubmitMsg struct {
	prompt string
}

type chatWaitingTickMsg struct{}

// Init implements tea.Model.
func (c *Chat) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if c.initialPrompt != "" {
		prompt := c.initialPrompt
		cmds = append(cmds, func() tea.Msg {
			return chatSubmitMsg{prompt: prompt}
		})
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (c *Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.resizeViewport()
		c.refreshViewport()
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if c.state == chatWaitingState {
				// Stay in the waiting state until the canceled call returns,
				// so that two calls never overlap.
				if c.cancel != nil {
					c.cancel()
				}
				return c, nil
			}
			return c, tea.Quit
		case "enter":
			if c.state != chatInputState {
				break
			}
			text := strings.TrimSpace(c.input.Value())
			if text == "" {
				return c, nil
			}
			c.input.SetValue("")
			switch text {
			case "/exit", "/quit":
				return c, tea.Quit
			case "/clear":
				c.agent.ClearHistory()
				c.historyBuf.Reset()
				c.viewport.SetContent("")
				c.save()
				return c, nil
			}
			return c, func() tea.Msg {
				return chatSubmitMsg{prompt: text}
			}
		}

	case chatSubmitMsg:
		if c.state == chatWaitingState {
			return c, nil
		}
		fmt.Fprintf(&c.historyBuf, "> %s\n\n", msg.prompt)
		c.waitingSince = time.Now()
		c.state = chatWaitingState
		c.resizeViewport()
		c.refreshViewport()
		ctx, cancel := context.WithCancel(c.ctx)
		c.cancel = cancel
		run := askCmd(ctx, c.agent, msg.prompt, c.opts)
		return c, tea.Batch(
			func() tea.Msg { return run() },
			c.spinner.Tick,
			c.waitingTickCmd(),
		)

	case answerMsg:
		c.finishTurn(msg)
		c.state = chatInputState
		c.resizeViewport()
		c.refreshViewport()
		return c, nil

	case chatWaitingTickMsg:
		if c.state == chatWaitingState {
			return c, c.waitingTickCmd()
		}
		return c, nil

	case spinner.TickMsg:
		if c.state != chatWaitingState {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd
	}

	if c.state == chatInputState {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return c, tea.Batch(cmds...)
}

// View implements tea.Model.
func (c *Chat) View() string {
	if c.width == 0 || c.height == 0 {
		return ""
	}

	divider := c.styles.Comment.Render(strings.Repeat("─", max(c.width, 1)))
	if c.state == chatWaitingState {
		return c.viewport.View() + "\n" + divider + "\n" + c.spinner.View() + " " + c.waitingStatus(time.Now())
	}
	return c.viewport.View() + "\n" + divider + "\n" + c.input.View()
}

// Messages returns the current conversation history.
func (c *Chat) Messages() []proto.Message {
	return c.agent.History()
}

// Turns is the number of answered questions, failures included.
func (c *Chat) Turns() int {
	return c.turns
}

func (c *Chat) finishTurn(msg answerMsg) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.waitingSince = time.Time{}
	c.turns++
	if agent.IsFailure(msg.answer) {
		fmt.Fprintf(&c.historyBuf, "_%s_\n\n", strings.TrimSpace(msg.answer))
		return
	}
	fmt.Fprintf(&c.historyBuf, "%s\n\n", msg.answer)
	c.save()
}

func (c *Chat) save() {
	if c.saveFn == nil {
		return
	}
	if err := c.saveFn(c.agent.History()); err != nil {
		fmt.Fprintln(os.Stderr, c.styles.Comment.Render("Warning: failed to save conversation: "+err.Error()))
	}
}

func (c *Chat) refreshViewport() {
	combined := c.historyBuf.String()
	if combined == "" {
		return
	}

	rendered := combined
	if c.glam != nil {
		if out, err := c.glam.Render(combined); err == nil {
			rendered = out
		}
	}
	rendered = strings.TrimRightFunc(rendered, unicode.IsSpace)
	rendered += "\n"

	truncated := c.renderer.NewStyle().MaxWidth(c.width).Render(rendered)

	wasAtBottom := c.viewport.ScrollPercent() >= 1.0
	c.viewport.SetContent(truncated)
	if wasAtBottom {
		c.viewport.GotoBottom()
	}
}

func (c *Chat) waitingTickCmd() tea.Cmd {
	const waitingInterval = 200 * time.Millisecond
	return tea.Tick(waitingInterval, func(time.Time) tea.Msg {
		return chatWaitingTickMsg{}
	})
}

func (c *Chat) resizeViewport() {
	if c.width > 0 {
		c.viewport.Width = c.width
	}
	const footerLines = 2
	c.viewport.Height = max(c.height-footerLines, 1)
}

func (c *Chat) waitingStatus(now time.Time) string {
	if c.waitingSince.IsZero() {
		return c.styles.Comment.Render("Waiting for response...")
	}

	elapsed := now.Sub(c.waitingSince)
	if elapsed < 0 {
		elapsed = 0
	}

	return c.styles.Comment.Render("Waiting for response... [" + formatElapsedClock(elapsed) + "]")
}
