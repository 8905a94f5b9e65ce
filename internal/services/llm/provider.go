package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// KV keys holding stored API keys, settable at runtime without a restart.
const (
	kvKeyAnthropic = "anthropic_api_key"
	kvKeyGemini    = "gemini_api_key"
)

// Factory resolves model backends by name. Providers are constructed per
// request so callers can supply their own API keys; construction is cheap,
// both SDK clients are thin wrappers over an HTTP client.
type Factory struct {
	config   *common.LLMConfig
	settings interfaces.KeyValueStorage
	logger   arbor.ILogger
}

// NewFactory creates a provider factory over the LLM configuration. settings
// may be nil; when present it supplies stored API keys for providers whose
// key is absent from config and environment.
func NewFactory(config *common.LLMConfig, settings interfaces.KeyValueStorage, logger arbor.ILogger) *Factory {
	return &Factory{config: config, settings: settings, logger: logger}
}

var _ interfaces.ProviderFactory = (*Factory)(nil)

// Provider returns the backend for the given name, falling back to the
// configured default provider when name is empty. An explicit apiKey
// overrides the configured one.
func (f *Factory) Provider(name, apiKey string) (interfaces.LLMProvider, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	switch common.LLMProvider(strings.ToLower(strings.TrimSpace(name))) {
	case common.LLMProviderClaude:
		key := f.resolveKey(apiKey, f.config.Claude.APIKey, kvKeyAnthropic)
		if key == "" {
			return nil, fmt.Errorf("anthropic API key is required (set ANTHROPIC_API_KEY, COLLIGO_CLAUDE_API_KEY, llm.claude.api_key, or the stored %s setting)", kvKeyAnthropic)
		}
		return NewClaudeProvider(&f.config.Claude, key, f.retryConfig(), f.logger)
	case common.LLMProviderGemini:
		key := f.resolveKey(apiKey, f.config.Gemini.APIKey, kvKeyGemini)
		if key == "" {
			return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY, COLLIGO_GEMINI_API_KEY, llm.gemini.api_key, or the stored %s setting)", kvKeyGemini)
		}
		return NewGeminiProvider(&f.config.Gemini, key, f.retryConfig(), f.logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", name)
	}
}

// resolveKey picks the API key: explicit argument, then config (which already
// folds in env overrides), then the durable settings store.
func (f *Factory) resolveKey(explicit, configured, kvKey string) string {
	if explicit != "" {
		return explicit
	}
	if configured != "" {
		return configured
	}
	if f.settings != nil {
		if stored, err := f.settings.Get(context.Background(), kvKey); err == nil && stored != "" {
			return stored
		}
	}
	return ""
}

// ProviderForModel resolves the backend from a model name, falling back to
// the default provider when the prefix is unrecognized.
func (f *Factory) ProviderForModel(model, apiKey string) (interfaces.LLMProvider, error) {
	return f.Provider(DetectProvider(model), apiKey)
}

func (f *Factory) retryConfig() retryConfig {
	return retryConfig{
		maxRetries: f.config.MaxRetries,
		backoff:    common.Duration(f.config.RetryBackoff, time.Second),
	}
}

// DetectProvider infers the backend from a model name prefix. Returns an
// empty string when the model does not identify a known backend.
func DetectProvider(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "claude"):
		return string(common.LLMProviderClaude)
	case strings.HasPrefix(m, "gemini"):
		return string(common.LLMProviderGemini)
	default:
		return ""
	}
}
