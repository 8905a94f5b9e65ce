package models

import "encoding/json"

// ToolSchema is the public description of a registered tool: what the model
// sees when the tool is offered. The executor reference lives in the
// registry, not here.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolExecution records one executed tool call and its result envelope.
type ToolExecution struct {
	ToolUseID string                 `json:"tool_use_id"`
	Tool      string                 `json:"tool"`
	Input     map[string]interface{} `json:"input,omitempty"`
	Result    map[string]interface{} `json:"result"`
	Skipped   bool                   `json:"skipped,omitempty"` // budget-exhausted calls are recorded but not run
}

// Transcript is the outcome of one toolbag execute loop.
type Transcript struct {
	Success    bool            `json:"success"`
	Response   string          `json:"response,omitempty"` // final assistant text
	Executions []ToolExecution `json:"executions,omitempty"`
	Iterations int             `json:"iterations"`
	Truncated  bool            `json:"truncated,omitempty"` // iteration cap hit before a terminal turn
	Error      string          `json:"error,omitempty"`
	Provider   string          `json:"provider,omitempty"`
}

// ChainStep is the per-step record inside a chain result.
type ChainStep struct {
	Position   int         `json:"position"`
	Tool       string      `json:"tool"`
	Success    bool        `json:"success"`
	Skipped    bool        `json:"skipped,omitempty"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ChainResult is the outcome of execute_chain: per-step results plus the
// accumulated context and the session ids the chain produced.
type ChainResult struct {
	Success       bool                              `json:"success"`
	Results       []ChainStep                       `json:"results"`
	ToolsExecuted int                               `json:"tools_executed"`
	FinalContext  map[string]interface{}            `json:"final_context"`
	SessionStore  map[string]map[string]interface{} `json:"session_store"`
}
