package crawler

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/llm"
)

const ocrSystemPrompt = "You extract text from screenshots of web pages. " +
	"Transcribe all readable text in natural reading order. Preserve headings " +
	"and list structure as plain text. Respond with the extracted text only."

// ocrService runs vision-model text extraction over page screenshots. Best
// effort: failures log a warning and return empty text.
type ocrService struct {
	factory *llm.Factory
	logger  arbor.ILogger
}

func newOCRService(factory *llm.Factory, logger arbor.ILogger) *ocrService {
	return &ocrService{factory: factory, logger: logger}
}

// extractText sends the screenshot through a vision-capable model
func (o *ocrService) extractText(ctx context.Context, providerName, apiKey, model string, screenshot []byte) string {
	if len(screenshot) == 0 {
		return ""
	}

	if providerName == "" {
		providerName = llm.DetectProvider(model)
	}
	provider, err := o.factory.Provider(providerName, apiKey)
	if err != nil {
		o.logger.Warn().Err(err).Msg("OCR skipped: no provider")
		return ""
	}

	resp, err := provider.Generate(ctx, &interfaces.GenerateRequest{
		Model:  model,
		System: ocrSystemPrompt,
		Messages: []interfaces.ProviderMessage{
			{
				Role: "user",
				Blocks: []interfaces.ContentBlock{
					{
						Type:      interfaces.ContentBlockTypeImage,
						MediaType: "image/png",
						Data:      screenshot,
					},
					{
						Type: interfaces.ContentBlockTypeText,
						Text: "Extract the text from this page screenshot.",
					},
				},
			},
		},
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("OCR extraction failed")
		return ""
	}
	return strings.TrimSpace(resp.Text)
}
