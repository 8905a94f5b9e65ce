package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"google.golang.org/genai"
)

// GeminiProvider implements the provider interface over the Gemini API.
// Tool calls surface as function-call parts; IDs are synthesized because
// Gemini does not assign them.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
	retry     retryConfig
	logger    arbor.ILogger
}

// NewGeminiProvider creates a Gemini-backed provider
func NewGeminiProvider(config *common.GeminiConfig, apiKey string, retry retryConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &GeminiProvider{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		retry:     retry,
		logger:    logger,
	}, nil
}

var _ interfaces.LLMProvider = (*GeminiProvider)(nil)

func (p *GeminiProvider) Name() string {
	return string(common.LLMProviderGemini)
}

// Generate performs one GenerateContent call
func (p *GeminiProvider) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	contents, err := convertMessagesToGemini(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = convertToolsToGemini(req.Tools)
	}

	var result *genai.GenerateContentResponse
	err = withRetries(ctx, p.logger, p.Name(), p.retry, func() error {
		var callErr error
		result, callErr = p.client.Models.GenerateContent(ctx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	return decodeGeminiResponse(result), nil
}

// convertMessagesToGemini maps neutral turns to Gemini contents. Tool results
// become function-response parts keyed by the originating tool's name.
func convertMessagesToGemini(messages []interfaces.ProviderMessage) ([]*genai.Content, error) {
	var contents []*genai.Content
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		for _, block := range msg.Blocks {
			switch block.Type {
			case interfaces.ContentBlockTypeText:
				parts = append(parts, genai.NewPartFromText(block.Text))
			case interfaces.ContentBlockTypeImage:
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{
						MIMEType: block.MediaType,
						Data:     block.Data,
					},
				})
			case interfaces.ContentBlockTypeToolUse:
				var args map[string]any
				if len(block.Input) > 0 {
					if err := json.Unmarshal(block.Input, &args); err != nil {
						return nil, fmt.Errorf("invalid tool_use input for %s: %w", block.Name, err)
					}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: block.Name,
						Args: args,
					},
				})
			case interfaces.ContentBlockTypeToolResult:
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name: block.Name,
						Response: map[string]any{
							"result":   block.Content,
							"is_error": block.IsError,
						},
					},
				})
			default:
				return nil, fmt.Errorf("unsupported content block type: %s", block.Type)
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

// convertToolsToGemini maps tool schemas to Gemini function declarations
func convertToolsToGemini(tools []models.ToolSchema) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toGeminiSchema(tool.InputSchema),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toGeminiSchema converts a JSON Schema map to Gemini's schema type
func toGeminiSchema(schemaMap map[string]interface{}) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}
	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]interface{}); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]interface{}); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]interface{}); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]interface{}); ok {
		schema.Items = toGeminiSchema(items)
	}
	return schema
}

// decodeGeminiResponse converts candidate parts into neutral blocks
func decodeGeminiResponse(result *genai.GenerateContentResponse) *interfaces.GenerateResponse {
	resp := &interfaces.GenerateResponse{}
	if result.UsageMetadata != nil {
		resp.Usage = interfaces.Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return resp
	}

	for _, part := range result.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			input, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				input = []byte("{}")
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.New().String()
			}
			resp.Blocks = append(resp.Blocks, interfaces.ContentBlock{
				Type:  interfaces.ContentBlockTypeToolUse,
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: input,
			})
			resp.ToolUses = append(resp.ToolUses, models.ToolCall{
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: input,
			})
		case part.Text != "":
			resp.Text += part.Text
			resp.Blocks = append(resp.Blocks, interfaces.ContentBlock{
				Type: interfaces.ContentBlockTypeText,
				Text: part.Text,
			})
		}
	}
	return resp
}
