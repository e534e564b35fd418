package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/provider"
)

type askState int

const (
	askWaitingState askState = iota
	askDoneState
	askCanceledState
)

// Ask is the Bubble Tea model shown while a single question is answered.
// It only draws the waiting indicator; the caller prints Answer afterwards.
type Ask struct {
	// Answer is set once the call returns.
	Answer string
	// Elapsed is how long the call took.
	Elapsed time.Duration

	state    askState
	spinner  spinner.Model
	styles   present.Styles
	asker    Asker
	question string
	opts     provider.Options
	ctx      context.Context
	cancel   context.CancelFunc
	started  time.Time
	now      func() time.Time
}

// NewAsk creates the model asking question through a.
func NewAsk(ctx context.Context, r *lipgloss.Renderer, a Asker, question string, opts provider.Options) *Ask {
	ctx, cancel := context.WithCancel(ctx)
	styles := present.MakeStyles(r)
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.CyclingChars))
	return &Ask{
		state:    askWaitingState,
		spinner:  sp,
		styles:   styles,
		asker:    a,
		question: question,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Canceled reports whether the user interrupted the call.
func (m *Ask) Canceled() bool {
	return m.state == askCanceledState
}

// Init implements tea.Model.
func (m *Ask) Init() tea.Cmd {
	m.started = m.now()
	run := askCmd(m.ctx, m.asker, m.question, m.opts)
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return run() })
}

// Update implements tea.Model.
func (m *Ask) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case answerMsg:
		m.cancel()
		m.Answer = msg.answer
		m.Elapsed = msg.elapsed
		if m.state == askWaitingState {
			m.state = askDoneState
		}
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			// The call returns promptly once its context is canceled.
			m.state = askCanceledState
			m.cancel()
			return m, nil
		}
	case spinner.TickMsg:
		if m.state != askWaitingState {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Ask) View() string {
	switch m.state {
	case askWaitingState:
		return m.spinner.View() + " " + m.status()
	case askCanceledState:
		return m.styles.Comment.Render("Canceling...")
	}
	return ""
}

func (m *Ask) status() string {
	name := m.styles.Provider.Render(m.asker.Provider())
	elapsed := m.now().Sub(m.started)
	if elapsed < 0 {
		elapsed = 0
	}
	return m.styles.Comment.Render("Asking ") + name + m.styles.Comment.Render("... ["+formatElapsedClock(elapsed)+"]")
}
