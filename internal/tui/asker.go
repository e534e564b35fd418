package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/dotcommander/papermate/internal/provider"
)

// Asker answers one question at a time. *agent.Agent implements it.
type Asker interface {
	Ask(ctx context.Context, question string, opts provider.Options) string
	Provider() string
}

// answerMsg carries the result of one Ask call back into the program.
type answerMsg struct {
	question string
	answer   string
	elapsed  time.Duration
}

// askCmd runs the call off the Bubble Tea event loop.
func askCmd(ctx context.Context, a Asker, question string, opts provider.Options) func() answerMsg {
	return func() answerMsg {
		start := time.Now()
		answer := a.Ask(ctx, question, opts)
		return answerMsg{question: question, answer: answer, elapsed: time.Since(start)}
	}
}

func formatElapsedClock(d time.Duration) string {
	totalSeconds := int(d / time.Second)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
