// Package openaisdk is a chat completion client built on the openai-go SDK,
// aimed at OpenAI-compatible gateways such as DashScope.
package openaisdk

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
)

// Model is the only model this variant requests. The model option is
// ignored and thinking mode is always disabled.
const Model = "qwen-plus"

// Client wraps an openai.Client.
type Client struct {
	name   string
	client openai.Client
	models []string
}

var _ provider.Client = &Client{}

// New returns a constructor for a fixed-model SDK provider.
func New(name string, models []string) provider.Constructor {
	return func(cfg config.ProviderConfig, s provider.Settings) (provider.Client, error) {
		return &Client{
			name: name,
			client: openai.NewClient(
				option.WithAPIKey(cfg.APIKey),
				option.WithBaseURL(cfg.BaseURL),
				option.WithHTTPClient(s.Client()),
				option.WithRequestTimeout(s.RequestTimeout()),
				option.WithMaxRetries(0),
			),
			models: models,
		}, nil
	}
}

// ChatCompletion implements provider.Client. The result's Object is the
// *openai.ChatCompletion returned by the SDK.
func (c *Client) ChatCompletion(ctx context.Context, msgs []proto.Message, opts provider.Options) provider.RawResponse {
	params := openai.ChatCompletionNewParams{
		Model:    Model,
		Messages: toParams(msgs),
	}
	if opts.Has(provider.OptTemperature) {
		params.Temperature = openai.Float(opts.Float(provider.OptTemperature, provider.DefaultTemperature))
	}
	if opts.Has(provider.OptMaxTokens) {
		params.MaxTokens = openai.Int(int64(opts.Int(provider.OptMaxTokens, provider.DefaultMaxTokens)))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, option.WithJSONSet("enable_thinking", false))
	if err != nil {
		return provider.Failure(transportError(c.name, err))
	}
	return provider.RawResponse{Object: completion}
}

// ListModels implements provider.Client.
func (c *Client) ListModels() []string {
	return append([]string(nil), c.models...)
}

func toParams(msgs []proto.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case proto.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case proto.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case proto.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		}
	}
	return out
}

func transportError(name string, err error) *provider.TransportError {
	te := &provider.TransportError{Provider: name, Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		te.StatusCode = apiErr.StatusCode
		te.Message = apiErr.Message
	}
	return te
}
