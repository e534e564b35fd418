// Package anthropicsdk is a chat completion client built on the Anthropic
// Messages API.
package anthropicsdk

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
)

// Client wraps an anthropic.Client.
type Client struct {
	name   string
	model  string
	models []string
	client anthropic.Client
	cfg    config.ProviderConfig
}

var _ provider.Client = &Client{}

// New returns a constructor for a Messages API provider.
func New(name, model string, models []string) provider.Constructor {
	return func(cfg config.ProviderConfig, s provider.Settings) (provider.Client, error) {
		return &Client{
			name:   name,
			model:  model,
			models: models,
			cfg:    cfg,
			client: anthropic.NewClient(
				option.WithAPIKey(cfg.APIKey),
				option.WithBaseURL(strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")),
				option.WithHTTPClient(s.Client()),
				option.WithRequestTimeout(s.RequestTimeout()),
				option.WithMaxRetries(0),
			),
		}, nil
	}
}

// ChatCompletion implements provider.Client. The result's Object is the
// *anthropic.Message returned by the SDK.
func (c *Client) ChatCompletion(ctx context.Context, msgs []proto.Message, opts provider.Options) provider.RawResponse {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(provider.PickModel(opts.Model(), c.cfg.DefaultModel, c.model)),
		MaxTokens: int64(opts.Int(provider.OptMaxTokens, provider.DefaultMaxTokens)),
	}
	for _, msg := range msgs {
		switch msg.Role {
		case proto.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case proto.RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case proto.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if opts.Has(provider.OptTemperature) {
		params.Temperature = anthropic.Float(opts.Float(provider.OptTemperature, provider.DefaultTemperature))
	}
	if opts.Has(provider.OptTopP) {
		params.TopP = anthropic.Float(opts.Float(provider.OptTopP, 1))
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		te := &provider.TransportError{Provider: c.name, Err: err}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			te.StatusCode = apiErr.StatusCode
		}
		return provider.Failure(te)
	}
	return provider.RawResponse{Object: msg}
}

// ListModels implements provider.Client.
func (c *Client) ListModels() []string {
	return append([]string(nil), c.models...)
}
