package fantasybridge

import (
	"testing"

	"charm.land/fantasy"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/papermate/internal/proto"
)

func TestToFantasyPrompt(t *testing.T) {
	messages := []proto.Message{
		proto.System("sys"),
		proto.User("hello"),
		proto.Assistant(""),
		proto.Assistant("hi there"),
	}

	prompt := toFantasyPrompt(messages)
	require.Len(t, prompt, 3)

	require.Equal(t, fantasy.MessageRoleSystem, prompt[0].Role)
	require.Equal(t, fantasy.MessageRoleUser, prompt[1].Role)
	require.Equal(t, fantasy.MessageRoleAssistant, prompt[2].Role)

	part, ok := fantasy.AsMessagePart[fantasy.TextPart](prompt[2].Content[0])
	require.True(t, ok)
	require.Equal(t, "hi there", part.Text)
}
