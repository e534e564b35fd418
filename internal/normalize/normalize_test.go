package normalize

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/papermate/internal/provider"
)

func testNormalizer() *Normalizer {
	r := provider.NewRegistry()
	r.Register("deepseek", provider.Entry{Policy: PolicyJSON})
	r.Register("alibaba", provider.Entry{Policy: PolicySDKJSON})
	r.Register("claude", provider.Entry{Policy: PolicyAnthropicJSON})
	r.Register("google", provider.Entry{Policy: PolicyText})
	r.Register("weird", provider.Entry{Policy: "xml"})
	return New(r)
}

func TestRoundTrip(t *testing.T) {
	n := testNormalizer()

	t.Run("json body", func(t *testing.T) {
		res := n.Normalize("deepseek", provider.RawResponse{Body: []byte(`{"choices":[{"message":{"content":"X"}}]}`)})
		require.True(t, res.OK())
		require.Equal(t, "X", res.Content)
	})

	t.Run("sdk object", func(t *testing.T) {
		var completion openai.ChatCompletion
		require.NoError(t, json.Unmarshal([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"qwen-plus","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"X"}}]}`), &completion))

		res := n.Normalize("alibaba", provider.RawResponse{Object: &completion})
		require.NoError(t, res.Err)
		require.Equal(t, "X", res.Content)
	})

	t.Run("sdk object without raw json", func(t *testing.T) {
		obj := map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "X"}}}}
		res := n.Normalize("alibaba", provider.RawResponse{Object: obj})
		require.NoError(t, res.Err)
		require.Equal(t, "X", res.Content)
	})

	t.Run("anthropic message", func(t *testing.T) {
		var msg anthropic.Message
		require.NoError(t, json.Unmarshal([]byte(`{"id":"m","type":"message","role":"assistant","model":"claude","content":[{"type":"text","text":"X"},{"type":"text","text":"Y"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`), &msg))

		res := n.Normalize("claude", provider.RawResponse{Object: &msg})
		require.NoError(t, res.Err)
		require.Equal(t, "XY", res.Content)
	})

	t.Run("text", func(t *testing.T) {
		res := n.Normalize("google", provider.RawResponse{Text: "X"})
		require.NoError(t, res.Err)
		require.Equal(t, "X", res.Content)
	})
}

func TestFailures(t *testing.T) {
	n := testNormalizer()

	t.Run("transport error passes through", func(t *testing.T) {
		te := &provider.TransportError{Provider: "deepseek", StatusCode: 500}
		res := n.Normalize("deepseek", provider.Failure(te))
		require.False(t, res.OK())
		require.Same(t, te, res.Err)
	})

	for name, tc := range map[string]struct {
		provider string
		raw      provider.RawResponse
	}{
		"missing path":      {"deepseek", provider.RawResponse{Body: []byte(`{"choices":[]}`)}},
		"non-string value":  {"deepseek", provider.RawResponse{Body: []byte(`{"choices":[{"message":{"content":42}}]}`)}},
		"invalid json":      {"deepseek", provider.RawResponse{Body: []byte(`{"choices":`)}},
		"empty body":        {"deepseek", provider.RawResponse{}},
		"missing object":    {"alibaba", provider.RawResponse{}},
		"unserializable":    {"alibaba", provider.RawResponse{Object: func() {}}},
		"no text blocks":    {"claude", provider.RawResponse{Object: map[string]any{"content": []any{}}}},
		"empty text":        {"google", provider.RawResponse{}},
		"unknown policy":    {"weird", provider.RawResponse{Text: "X"}},
		"unknown provider":  {"nobody", provider.RawResponse{Text: "X"}},
		"error json object": {"deepseek", provider.RawResponse{Body: []byte(`{"error":"boom"}`)}},
	} {
		t.Run(name, func(t *testing.T) {
			res := n.Normalize(tc.provider, tc.raw)
			require.False(t, res.OK())
			var nerr *Error
			require.ErrorAs(t, res.Err, &nerr)
			require.NotEmpty(t, nerr.Error())
		})
	}
}

func TestSupported(t *testing.T) {
	for _, p := range []string{PolicyJSON, PolicySDKJSON, PolicyAnthropicJSON, PolicyText} {
		require.True(t, Supported(p))
	}
	require.False(t, Supported("xml"))
}
