package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/papermate/internal/proto"
)

func TestAppendBound(t *testing.T) {
	h := New(20)
	for n := 1; n <= 25; n++ {
		h.Append(fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		require.Equal(t, min(2*n, 20), h.Len())
	}

	msgs := h.Messages()
	require.Equal(t, proto.User("q16"), msgs[0])
	require.Equal(t, proto.Assistant("a25"), msgs[len(msgs)-1])
}

func TestSystemPromptPinned(t *testing.T) {
	h := New(5)
	h.SetSystemPrompt("be brief")
	for n := 1; n <= 4; n++ {
		h.Append(fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		require.LessOrEqual(t, h.Len(), 5)
	}

	msgs := h.Messages()
	require.Len(t, msgs, 5)
	require.Equal(t, proto.System("be brief"), msgs[0])
	require.Equal(t, []proto.Message{
		proto.System("be brief"),
		proto.User("q3"), proto.Assistant("a3"),
		proto.User("q4"), proto.Assistant("a4"),
	}, msgs)
}

func TestEvictKeepsTurnsWhole(t *testing.T) {
	h := New(4)
	h.SetSystemPrompt("sys")
	for n := 1; n <= 3; n++ {
		h.Append(fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		require.LessOrEqual(t, h.Len(), 4)

		msgs := h.Messages()
		require.Equal(t, proto.RoleSystem, msgs[0].Role)
		if len(msgs) > 1 {
			require.Equal(t, proto.RoleUser, msgs[1].Role)
		}
	}
	require.Equal(t, []proto.Message{
		proto.System("sys"),
		proto.User("q3"), proto.Assistant("a3"),
	}, h.Messages())
}

func TestSetSystemPrompt(t *testing.T) {
	t.Run("twice leaves one", func(t *testing.T) {
		h := New(20)
		h.Append("q", "a")
		h.SetSystemPrompt("first")
		h.SetSystemPrompt("second")

		var systems []proto.Message
		for _, m := range h.Messages() {
			if m.Role == proto.RoleSystem {
				systems = append(systems, m)
			}
		}
		require.Equal(t, []proto.Message{proto.System("second")}, systems)
		require.Equal(t, proto.System("second"), h.Messages()[0])
		require.Equal(t, 3, h.Len())
	})

	t.Run("insert at full bound evicts the oldest turn", func(t *testing.T) {
		h := New(4)
		h.Append("q1", "a1")
		h.Append("q2", "a2")
		h.SetSystemPrompt("sys")
		require.Equal(t, []proto.Message{
			proto.System("sys"),
			proto.User("q2"), proto.Assistant("a2"),
		}, h.Messages())
	})

	t.Run("bound of one keeps the newest", func(t *testing.T) {
		h := New(1)
		h.SetSystemPrompt("sys")
		h.Append("q", "a")
		require.Equal(t, []proto.Message{proto.Assistant("a")}, h.Messages())
	})

	t.Run("read back", func(t *testing.T) {
		h := New(3)
		_, ok := h.SystemPrompt()
		require.False(t, ok)
		h.SetSystemPrompt("sys")
		text, ok := h.SystemPrompt()
		require.True(t, ok)
		require.Equal(t, "sys", text)
	})
}

func TestClear(t *testing.T) {
	h := New(20)
	h.SetSystemPrompt("sys")
	h.Append("q", "a")
	h.Clear()
	require.Empty(t, h.Messages())
	require.Zero(t, h.Len())
}

func TestMessagesIsSnapshot(t *testing.T) {
	h := New(20)
	h.Append("q", "a")
	msgs := h.Messages()
	msgs[0].Content = "mutated"
	require.Equal(t, "q", h.Messages()[0].Content)
}

func TestDefaultMax(t *testing.T) {
	require.Equal(t, DefaultMax, New(0).Max())
	require.Equal(t, DefaultMax, New(-3).Max())
	require.Equal(t, 7, New(7).Max())
}

func TestRestore(t *testing.T) {
	h := New(3)
	h.Restore([]proto.Message{
		proto.System("sys"),
		proto.User("q1"), proto.Assistant("a1"),
		proto.System("late"),
		proto.User("q2"), proto.Assistant("a2"),
	})
	require.Equal(t, []proto.Message{
		proto.System("sys"),
		proto.User("q2"), proto.Assistant("a2"),
	}, h.Messages())
}
