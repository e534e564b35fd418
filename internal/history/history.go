// Package history keeps the bounded message log of one conversation.
package history

import (
	"slices"

	"github.com/dotcommander/papermate/internal/proto"
)

// DefaultMax is used when New is given a bound below 1.
const DefaultMax = 20

// History is an ordered message log with an optional system message pinned
// at index 0. Its length never exceeds Max.
//
// History is not safe for concurrent use.
type History struct {
	max      int
	messages []proto.Message
}

// New returns an empty history bounded to limit messages.
func New(limit int) *History {
	if limit < 1 {
		limit = DefaultMax
	}
	return &History{max: limit}
}

// Max is the length bound.
func (h *History) Max() int {
	return h.max
}

// Len is the number of messages, system message included.
func (h *History) Len() int {
	return len(h.messages)
}

// Messages returns a copy of the log.
func (h *History) Messages() []proto.Message {
	return slices.Clone(h.messages)
}

// Append records one successful turn.
func (h *History) Append(question, answer string) {
	h.messages = append(h.messages, proto.User(question), proto.Assistant(answer))
	h.evict()
}

// SetSystemPrompt replaces the system message or inserts one at the front.
func (h *History) SetSystemPrompt(text string) {
	if h.hasSystem() {
		h.messages[0].Content = text
		return
	}
	h.messages = slices.Insert(h.messages, 0, proto.System(text))
	h.evict()
}

// SystemPrompt returns the pinned system message, if any.
func (h *History) SystemPrompt() (string, bool) {
	if !h.hasSystem() {
		return "", false
	}
	return h.messages[0].Content, true
}

// Clear drops every message, the system message included.
func (h *History) Clear() {
	h.messages = nil
}

// Restore replaces the log, keeping only the most recent messages that fit.
func (h *History) Restore(msgs []proto.Message) {
	h.messages = nil
	for _, m := range msgs {
		if m.Role == proto.RoleSystem {
			if len(h.messages) == 0 {
				h.messages = append(h.messages, m)
			}
			continue
		}
		h.messages = append(h.messages, m)
	}
	h.evict()
}

func (h *History) hasSystem() bool {
	return len(h.messages) > 0 && h.messages[0].Role == proto.RoleSystem
}

// evict drops the oldest non-system messages until the bound holds. The
// system message is only dropped when the bound is 1. Behind a system
// message whole user/assistant turns are dropped, so the log never opens
// with a reply whose question is gone.
func (h *History) evict() {
	over := len(h.messages) - h.max
	if over <= 0 {
		return
	}
	start := 0
	if h.hasSystem() && h.max > 1 {
		start = 1
		if over%2 == 1 {
			over++
		}
	}
	h.messages = slices.Delete(h.messages, start, min(start+over, len(h.messages)))
}
