package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationString(t *testing.T) {
	convo := Conversation{
		System("be brief"),
		User("hi"),
		Assistant("hello"),
		User(""),
	}
	require.Equal(t, "**System**: be brief\n\n**Prompt**:\nhi\n\n**Assistant**:\nhello\n", convo.String())
}

func TestRoleValid(t *testing.T) {
	require.True(t, RoleUser.Valid())
	require.True(t, RoleSystem.Valid())
	require.False(t, Role("tool").Valid())
}
