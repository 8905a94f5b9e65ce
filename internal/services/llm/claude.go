package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ClaudeProvider implements the provider interface over the Anthropic API
// with native tool_use support.
type ClaudeProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
	retry     retryConfig
	logger    arbor.ILogger
}

// NewClaudeProvider creates an Anthropic-backed provider
func NewClaudeProvider(config *common.ClaudeConfig, apiKey string, retry retryConfig, logger arbor.ILogger) (*ClaudeProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := config.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &ClaudeProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
		retry:     retry,
		logger:    logger,
	}, nil
}

var _ interfaces.LLMProvider = (*ClaudeProvider)(nil)

func (p *ClaudeProvider) Name() string {
	return string(common.LLMProviderClaude)
}

// Generate performs one Messages API call, converting the neutral request
// into Anthropic's format and the response blocks back.
func (p *ClaudeProvider) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	messages, err := convertMessagesToClaude(req.Messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertToolsToClaude(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	var message *anthropic.Message
	err = withRetries(ctx, p.logger, p.Name(), p.retry, func() error {
		var callErr error
		message, callErr = p.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}

	return decodeClaudeMessage(message), nil
}

// convertMessagesToClaude maps neutral turns to Anthropic message params.
// System content never appears here; it travels in the System parameter.
func convertMessagesToClaude(messages []interfaces.ProviderMessage) ([]anthropic.MessageParam, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, block := range msg.Blocks {
			switch block.Type {
			case interfaces.ContentBlockTypeText:
				content = append(content, anthropic.NewTextBlock(block.Text))
			case interfaces.ContentBlockTypeImage:
				content = append(content, anthropic.NewImageBlockBase64(
					block.MediaType, base64.StdEncoding.EncodeToString(block.Data)))
			case interfaces.ContentBlockTypeToolUse:
				var input map[string]interface{}
				if len(block.Input) > 0 {
					if err := json.Unmarshal(block.Input, &input); err != nil {
						return nil, fmt.Errorf("invalid tool_use input for %s: %w", block.Name, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(block.ID, input, block.Name))
			case interfaces.ContentBlockTypeToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
			default:
				return nil, fmt.Errorf("unsupported content block type: %s", block.Type)
			}
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

// convertToolsToClaude maps tool schemas to Anthropic tool params. The input
// schema round-trips through JSON into the SDK's schema type.
func convertToolsToClaude(tools []models.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("invalid input schema for %s: %w", tool.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid input schema for %s: %w", tool.Name, err)
		}

		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool definition for %s", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		out = append(out, param)
	}
	return out, nil
}

// decodeClaudeMessage converts the response content into neutral blocks
func decodeClaudeMessage(message *anthropic.Message) *interfaces.GenerateResponse {
	resp := &interfaces.GenerateResponse{
		Usage: interfaces.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
			resp.Blocks = append(resp.Blocks, interfaces.ContentBlock{
				Type: interfaces.ContentBlockTypeText,
				Text: block.Text,
			})
		case "tool_use":
			input := json.RawMessage(block.Input)
			resp.Blocks = append(resp.Blocks, interfaces.ContentBlock{
				Type:  interfaces.ContentBlockTypeToolUse,
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
			resp.ToolUses = append(resp.ToolUses, models.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return resp
}
