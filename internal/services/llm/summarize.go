package llm

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// summaryInputLimit caps how much page content goes to the model
const summaryInputLimit = 12000

const summarySystemPrompt = "You summarize web page content. Produce a concise summary " +
	"(3-6 sentences) of the page's main content. Ignore navigation, ads and boilerplate. " +
	"Respond with the summary only."

// Summarizer produces short post-crawl content summaries. It is best effort:
// any failure logs a warning and returns an empty summary, never an error.
type Summarizer struct {
	factory *Factory
	logger  arbor.ILogger
}

// NewSummarizer creates a summarizer over the provider factory
func NewSummarizer(factory *Factory, logger arbor.ILogger) *Summarizer {
	return &Summarizer{factory: factory, logger: logger}
}

// Summarize generates a summary of the markdown content. The provider is
// resolved from the explicit name, the model prefix, or the default, in that
// order; apiKey and model override the configured ones when set.
func (s *Summarizer) Summarize(ctx context.Context, providerName, apiKey, model, markdown string) string {
	content := strings.TrimSpace(markdown)
	if content == "" {
		return ""
	}
	if len(content) > summaryInputLimit {
		content = content[:summaryInputLimit]
	}

	if providerName == "" {
		providerName = DetectProvider(model)
	}
	provider, err := s.factory.Provider(providerName, apiKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Summarization skipped: no provider")
		return ""
	}

	resp, err := provider.Generate(ctx, &interfaces.GenerateRequest{
		Model:  model,
		System: summarySystemPrompt,
		Messages: []interfaces.ProviderMessage{
			{
				Role: "user",
				Blocks: []interfaces.ContentBlock{
					{Type: interfaces.ContentBlockTypeText, Text: content},
				},
			},
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("Summarization failed")
		return ""
	}
	return strings.TrimSpace(resp.Text)
}
