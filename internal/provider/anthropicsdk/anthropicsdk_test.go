package anthropicsdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
)

const messageJSON = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`

func newClient(t *testing.T, url string) provider.Client {
	t.Helper()
	c, err := New("claude", "claude-sonnet-4-5", []string{"claude-sonnet-4-5"})(config.ProviderConfig{
		APIKey:  "sk-ant-test",
		BaseURL: url + "/v1",
	}, provider.Settings{})
	require.NoError(t, err)
	return c
}

func TestChatCompletion(t *testing.T) {
	t.Run("system moved out of messages", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/messages", r.URL.Path)
			require.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
			bts, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(bts, &got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(messageJSON))
		}))
		t.Cleanup(srv.Close)

		raw := newClient(t, srv.URL).ChatCompletion(context.Background(),
			[]proto.Message{proto.System("be brief"), proto.User("hi"), proto.Assistant("yo"), proto.User("again")},
			provider.Options{provider.OptModel: "claude-haiku-4-5", provider.OptMaxTokens: 50})
		require.False(t, raw.Failed())

		msg, ok := raw.Object.(*anthropic.Message)
		require.True(t, ok)
		require.Len(t, msg.Content, 1)

		require.Equal(t, "claude-haiku-4-5", got["model"])
		require.EqualValues(t, 50, got["max_tokens"])
		require.Len(t, got["messages"], 3)
		system, ok := got["system"].([]any)
		require.True(t, ok)
		require.Equal(t, "be brief", system[0].(map[string]any)["text"])
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		}))
		t.Cleanup(srv.Close)

		raw := newClient(t, srv.URL).ChatCompletion(context.Background(), []proto.Message{proto.User("hi")}, nil)
		require.True(t, raw.Failed())
		require.Equal(t, http.StatusUnauthorized, raw.Err.StatusCode)
	})
}
