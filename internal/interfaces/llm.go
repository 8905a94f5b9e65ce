package interfaces

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/colligo/internal/models"
)

// ContentBlockType discriminates provider content blocks
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
	ContentBlockTypeImage      ContentBlockType = "image"
)

// ContentBlock is the provider-neutral unit of message content. Exactly the
// fields for its type are set: text blocks carry Text; tool_use blocks carry
// ID, Name, Input; tool_result blocks carry ToolUseID, Content and IsError;
// image blocks carry MediaType and Data.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	MediaType string `json:"media_type,omitempty"` // e.g. "image/png"
	Data      []byte `json:"data,omitempty"`
}

// ProviderMessage is one turn in a provider conversation
type ProviderMessage struct {
	Role   string         `json:"role"` // "user" or "assistant"
	Blocks []ContentBlock `json:"blocks"`
}

// GenerateRequest is a provider-neutral model call
type GenerateRequest struct {
	Model     string              `json:"model,omitempty"`
	System    string              `json:"system,omitempty"`
	Messages  []ProviderMessage   `json:"messages"`
	Tools     []models.ToolSchema `json:"tools,omitempty"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

// Usage reports token consumption for one call
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// GenerateResponse carries the model's content blocks. ToolUses is the
// ordered subset of blocks with type tool_use, extracted for convenience.
type GenerateResponse struct {
	Blocks   []ContentBlock    `json:"blocks"`
	ToolUses []models.ToolCall `json:"tool_uses,omitempty"`
	Text     string            `json:"text"` // concatenated text blocks
	Usage    Usage             `json:"usage"`
}

// LLMProvider is the wire-protocol-agnostic model interface the toolbag and
// summarizer consume. Implementations handle retries internally.
type LLMProvider interface {
	// Generate performs one model call with optional tool schemas
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name identifies the backend ("claude", "gemini")
	Name() string
}

// ProviderFactory resolves a provider by name, falling back to the
// configured default when name is empty.
type ProviderFactory interface {
	Provider(name, apiKey string) (LLMProvider, error)
}
