// Package proto holds the provider-neutral message types shared by every
// papermate component.
package proto

import (
	"fmt"
	"strings"
)

// Role is the author of a conversation message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single role-tagged conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Conversation is an ordered list of messages.
type Conversation []Message

// String renders the conversation as markdown, one section per message.
func (c Conversation) String() string {
	var sb strings.Builder
	for _, msg := range c {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			sb.WriteString("**System**: ")
		case RoleUser:
			sb.WriteString("**Prompt**:\n")
		case RoleAssistant:
			sb.WriteString("**Assistant**:\n")
		default:
			sb.WriteString(fmt.Sprintf("**%s**: ", msg.Role))
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()) + "\n"
}
