// Package builtin assembles the registry of every provider papermate ships.
package builtin

import (
	"github.com/dotcommander/papermate/internal/fantasybridge"
	"github.com/dotcommander/papermate/internal/normalize"
	"github.com/dotcommander/papermate/internal/provider"
	"github.com/dotcommander/papermate/internal/provider/anthropicsdk"
	"github.com/dotcommander/papermate/internal/provider/httpchat"
	"github.com/dotcommander/papermate/internal/provider/openaisdk"
)

var (
	deepseekModels = []string{
		"deepseek-chat", "deepseek-coder", "deepseek-reasoner",
		"deepseek-math", "deepseek-v2", "deepseek-v2-lite",
	}
	openaiModels = []string{
		"gpt-4o-mini", "gpt-4o", "gpt-4.1", "gpt-4.1-mini", "o3-mini",
	}
	alibabaModels = []string{
		"qwen-turbo", "qwen-plus", "qwen-max", "qwen-vl-plus",
		"qwen-audio-turbo", "qwen2-7b-instruct",
	}
	claudeModels = []string{
		"claude-sonnet-4-5", "claude-opus-4-1", "claude-haiku-4-5",
	}
	googleModels = []string{
		"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash",
	}
	openrouterModels = []string{
		"openai/gpt-4o-mini", "anthropic/claude-sonnet-4.5", "google/gemini-2.5-flash",
	}
	azureModels = []string{
		"gpt-4o-mini", "gpt-4o",
	}
	bedrockModels = []string{
		"anthropic.claude-3-5-sonnet-20241022-v2:0", "anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	vercelModels = []string{
		"openai/gpt-4o-mini", "anthropic/claude-sonnet-4.5",
	}
)

// Registry returns a registry with every built-in provider.
func Registry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register("deepseek", provider.Entry{
		New:         httpchat.New("deepseek", deepseekModels[0], deepseekModels),
		Policy:      normalize.PolicyJSON,
		Description: "DeepSeek chat completions API.",
		BaseURL:     "https://api.deepseek.com/v1",
		Model:       deepseekModels[0],
		Models:      deepseekModels,
	})
	r.Register("openai", provider.Entry{
		New:         httpchat.New("openai", openaiModels[0], openaiModels),
		Policy:      normalize.PolicyJSON,
		Description: "OpenAI chat completions API.",
		BaseURL:     "https://api.openai.com/v1",
		Model:       openaiModels[0],
		Models:      openaiModels,
	})
	r.Register("alibaba", provider.Entry{
		New:         openaisdk.New("alibaba", alibabaModels),
		Policy:      normalize.PolicySDKJSON,
		Description: "Alibaba Qwen through the DashScope compatible mode. Always uses qwen-plus.",
		BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:       openaisdk.Model,
		Models:      alibabaModels,
	})
	r.Register("claude", provider.Entry{
		New:         anthropicsdk.New("claude", claudeModels[0], claudeModels),
		Policy:      normalize.PolicyAnthropicJSON,
		Description: "Anthropic Messages API.",
		BaseURL:     "https://api.anthropic.com",
		Model:       claudeModels[0],
		Models:      claudeModels,
	})
	r.Register("google", gateway("google", "Google Gemini.", "https://generativelanguage.googleapis.com", googleModels))
	r.Register("openrouter", gateway("openrouter", "OpenRouter.", "https://openrouter.ai/api/v1", openrouterModels))
	r.Register("azure", gateway("azure", "Azure OpenAI. Set base_url to your resource endpoint.", "https://example.openai.azure.com", azureModels))
	r.Register("bedrock", gateway("bedrock", "Amazon Bedrock. AWS credentials come from the environment.", "https://bedrock-runtime.us-east-1.amazonaws.com", bedrockModels))
	r.Register("vercel", gateway("vercel", "Vercel AI Gateway.", "https://ai-gateway.vercel.sh/v1", vercelModels))
	return r
}

func gateway(api, description, baseURL string, models []string) provider.Entry {
	return provider.Entry{
		New:         fantasybridge.Constructor(api, models[0], models),
		Policy:      normalize.PolicyText,
		Description: description,
		BaseURL:     baseURL,
		Model:       models[0],
		Models:      models,
	}
}
