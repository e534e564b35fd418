// Package httpchat is an OpenAI-compatible chat completion client over
// plain HTTP.
package httpchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
)

const maxBodyBytes = 8 * 1024 * 1024

// Client posts to {base_url}/chat/completions.
type Client struct {
	name     string
	cfg      config.ProviderConfig
	model    string
	models   []string
	http     *http.Client
	endpoint string
}

var _ provider.Client = &Client{}

// New returns a constructor for an HTTP provider with the given fallback
// model and model list.
func New(name, model string, models []string) provider.Constructor {
	return func(cfg config.ProviderConfig, s provider.Settings) (provider.Client, error) {
		return &Client{
			name:     name,
			cfg:      cfg,
			model:    model,
			models:   models,
			http:     s.Client(),
			endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		}, nil
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model            string    `json:"model"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	Stream           bool      `json:"stream"`
	TopP             *float64  `json:"top_p,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
}

// ChatCompletion implements provider.Client.
func (c *Client) ChatCompletion(ctx context.Context, msgs []proto.Message, opts provider.Options) provider.RawResponse {
	body, err := json.Marshal(c.buildRequest(msgs, opts))
	if err != nil {
		return c.fail(0, "", fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return c.fail(0, "", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(0, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.fail(resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractError(respBody)
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return c.fail(resp.StatusCode, msg, nil)
	}
	return provider.RawResponse{Body: respBody}
}

func (c *Client) buildRequest(msgs []proto.Message, opts provider.Options) request {
	out := request{
		Model:       provider.PickModel(opts.Model(), c.cfg.DefaultModel, c.model),
		Messages:    make([]message, 0, len(msgs)),
		Temperature: opts.Float(provider.OptTemperature, provider.DefaultTemperature),
		MaxTokens:   opts.Int(provider.OptMaxTokens, provider.DefaultMaxTokens),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, message{Role: string(m.Role), Content: m.Content})
	}
	out.TopP = optional(opts, provider.OptTopP)
	out.FrequencyPenalty = optional(opts, provider.OptFrequencyPenalty)
	out.PresencePenalty = optional(opts, provider.OptPresencePenalty)
	return out
}

func optional(opts provider.Options, key string) *float64 {
	if !opts.Has(key) {
		return nil
	}
	v := opts.Float(key, 0)
	return &v
}

// ListModels implements provider.Client.
func (c *Client) ListModels() []string {
	return append([]string(nil), c.models...)
}

func (c *Client) fail(status int, msg string, err error) provider.RawResponse {
	return provider.Failure(&provider.TransportError{
		Provider:   c.name,
		StatusCode: status,
		Message:    msg,
		Err:        err,
	})
}

// extractError reads the message of {"error":"..."} and
// {"error":{"message":"..."}} bodies.
func extractError(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	e := gjson.GetBytes(body, "error")
	switch {
	case e.Type == gjson.String:
		return e.String()
	case e.IsObject():
		return e.Get("message").String()
	}
	return ""
}
