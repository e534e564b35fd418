package fantasybridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/azure"
	"charm.land/fantasy/providers/bedrock"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"charm.land/fantasy/providers/openrouter"
	"charm.land/fantasy/providers/vercel"
	"github.com/spf13/cast"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
)

var _ provider.Client = &Client{}

const (
	apiAnthropic  = "anthropic"
	apiGoogle     = "google"
	apiOpenAI     = "openai"
	apiAzure      = "azure"
	apiAzureAD    = "azure-ad"
	apiOpenRouter = "openrouter"
	apiVercel     = "vercel"
	apiBedrock    = "bedrock"

	// ExtraThinkingBudget is the provider section key for the Gemini
	// thinking budget.
	ExtraThinkingBudget = "thinking_budget"
)

// Config represents provider configuration used by the fantasy bridge.
type Config struct {
	API            string
	BaseURL        string
	APIKey         string
	Model          string
	Models         []string
	HTTPClient     *http.Client
	ThinkingBudget int
}

// Client is a provider.Client backed by charm.land/fantasy. Each call
// drains the provider stream into a single text.
type Client struct {
	provider fantasy.Provider
	config   Config

	mu              sync.Mutex
	warningSeen     map[string]struct{}
	pendingWarnings []string
}

// New creates a new Fantasy-backed client.
func New(cfg Config) (*Client, error) {
	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{provider: p, config: cfg, warningSeen: map[string]struct{}{}}, nil
}

// Constructor adapts New to the provider registry. api selects the fantasy
// backend; model and models are the registry defaults.
func Constructor(api, model string, models []string) provider.Constructor {
	return func(cfg config.ProviderConfig, s provider.Settings) (provider.Client, error) {
		client, err := New(Config{
			API:            api,
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			Model:          provider.PickModel(cfg.DefaultModel, model),
			Models:         models,
			HTTPClient:     s.Client(),
			ThinkingBudget: cast.ToInt(cfg.Extra[ExtraThinkingBudget]),
		})
		if err != nil {
			return nil, fmt.Errorf("new fantasy bridge client: %w", err)
		}
		return client, nil
	}
}

func newProvider(cfg Config) (fantasy.Provider, error) {
	switch cfg.API {
	case apiOpenAI:
		opts := []fopenai.Option{fopenai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fopenai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fopenai.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := fopenai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openai provider: %w", err)
		}
		return p, nil
	case apiAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/v1")))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy anthropic provider: %w", err)
		}
		return p, nil
	case apiGoogle:
		opts := []fgoogle.Option{fgoogle.WithGeminiAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fgoogle.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fgoogle.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := fgoogle.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy google provider: %w", err)
		}
		return p, nil
	case apiAzure, apiAzureAD:
		opts := []azure.Option{azure.WithAPIKey(cfg.APIKey), azure.WithBaseURL(cfg.BaseURL)}
		if cfg.HTTPClient != nil {
			opts = append(opts, azure.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := azure.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy azure provider: %w", err)
		}
		return p, nil
	case apiOpenRouter:
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		if cfg.HTTPClient != nil {
			opts = append(opts, openrouter.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := openrouter.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openrouter provider: %w", err)
		}
		return p, nil
	case apiVercel:
		opts := []vercel.Option{vercel.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, vercel.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, vercel.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := vercel.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy vercel provider: %w", err)
		}
		return p, nil
	case apiBedrock:
		opts := []bedrock.Option{}
		if cfg.APIKey != "" {
			opts = append(opts, bedrock.WithAPIKey(cfg.APIKey))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, bedrock.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := bedrock.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy bedrock provider: %w", err)
		}
		return p, nil
	default:
		opts := []fopenaicompat.Option{fopenaicompat.WithName(cfg.API)}
		if cfg.APIKey != "" {
			opts = append(opts, fopenaicompat.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, fopenaicompat.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fopenaicompat.WithHTTPClient(cfg.HTTPClient))
		}
		p, err := fopenaicompat.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openai-compatible provider: %w", err)
		}
		return p, nil
	}
}

// ChatCompletion implements provider.Client. The result carries the
// collected text.
func (c *Client) ChatCompletion(ctx context.Context, msgs []proto.Message, opts provider.Options) provider.RawResponse {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model, err := c.provider.LanguageModel(ctx, provider.PickModel(opts.Model(), c.config.Model))
	if err != nil {
		return provider.Failure(c.transportError(fmt.Errorf("fantasy language model: %w", err)))
	}

	seq, err := model.Stream(ctx, c.buildCall(msgs, opts))
	if err != nil {
		return provider.Failure(c.transportError(fmt.Errorf("fantasy stream: %w", err)))
	}

	var text strings.Builder
	for part := range seq {
		if part.Type == fantasy.StreamPartTypeError {
			err = part.Error
			if err == nil {
				err = errors.New("stream error")
			}
			break
		}
		c.consumePart(&text, part)
	}
	if err != nil {
		return provider.Failure(c.transportError(err))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return provider.Failure(c.transportError(ctxErr))
	}
	return provider.RawResponse{Text: text.String()}
}

// ListModels implements provider.Client.
func (c *Client) ListModels() []string {
	return append([]string(nil), c.config.Models...)
}

// DrainWarnings returns the provider warnings collected since the last call.
func (c *Client) DrainWarnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	warnings := append([]string(nil), c.pendingWarnings...)
	c.pendingWarnings = nil
	return warnings
}

func (c *Client) buildCall(msgs []proto.Message, opts provider.Options) fantasy.Call {
	call := fantasy.Call{
		Prompt:          toFantasyPrompt(msgs),
		ProviderOptions: fantasy.ProviderOptions{},
	}
	if opts.Has(provider.OptMaxTokens) {
		call.MaxOutputTokens = fantasy.Opt(int64(opts.Int(provider.OptMaxTokens, provider.DefaultMaxTokens)))
	}
	if opts.Has(provider.OptTemperature) {
		call.Temperature = fantasy.Opt(opts.Float(provider.OptTemperature, provider.DefaultTemperature))
	}
	if opts.Has(provider.OptTopP) {
		call.TopP = fantasy.Opt(opts.Float(provider.OptTopP, 1))
	}

	if c.config.API == apiGoogle && c.config.ThinkingBudget > 0 {
		call.ProviderOptions[fgoogle.Name] = &fgoogle.ProviderOptions{
			ThinkingConfig: &fgoogle.ThinkingConfig{
				ThinkingBudget: fantasy.Opt(int64(c.config.ThinkingBudget)),
			},
		}
	}

	return call
}

func (c *Client) consumePart(text *strings.Builder, part fantasy.StreamPart) {
	switch part.Type {
	case fantasy.StreamPartTypeTextDelta:
		text.WriteString(part.Delta)
	case fantasy.StreamPartTypeWarnings:
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, warning := range part.Warnings {
			msg := strings.TrimSpace(warning.Message)
			if msg == "" {
				msg = strings.TrimSpace(warning.Details)
			}
			if msg == "" && warning.Setting != "" {
				msg = fmt.Sprintf("unsupported setting: %s", warning.Setting)
			}
			if msg == "" {
				msg = "provider warning"
			}
			key := string(warning.Type) + ":" + msg
			if _, exists := c.warningSeen[key]; exists {
				continue
			}
			c.warningSeen[key] = struct{}{}
			c.pendingWarnings = append(c.pendingWarnings, msg)
		}
	default:
		return
	}
}

func (c *Client) transportError(err error) *provider.TransportError {
	te := &provider.TransportError{Provider: c.config.API, Err: err}
	var providerErr *fantasy.ProviderError
	if errors.As(err, &providerErr) {
		te.StatusCode = providerErr.StatusCode
		te.Message = providerErr.Message
	}
	return te
}
