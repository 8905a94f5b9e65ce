package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ChainModeStopOnError aborts a chain at the first failed step; the default
// is to continue.
const ChainModeStopOnError = "stop_on_error"

// ExecuteParams is one toolbag invocation: a query, the tools the model may
// use, and the provider to drive.
type ExecuteParams struct {
	Tools          []string
	Query          string
	Provider       string
	Model          string
	APIKey         string
	PreviousResult map[string]interface{}
}

// ChainParams drives execute_chain: tools run in order, each step forwarding
// the prior step's result.
type ChainParams struct {
	Tools    []string
	Query    string
	Mode     string
	Provider string
	Model    string
	APIKey   string
}

// chainState is the per-invocation mutable state: usage counts against
// limits, accumulated context, and session ids produced by tools. Never
// shared across concurrent invocations.
type chainState struct {
	usageCounts  map[string]int
	sessionStore map[string]map[string]interface{}
	executed     int
}

func newChainState() *chainState {
	return &chainState{
		usageCounts:  make(map[string]int),
		sessionStore: make(map[string]map[string]interface{}),
	}
}

// Toolbag lets an LLM orchestrate registered tools through native
// tool-calling, enforcing per-invocation usage budgets and terminating on an
// iteration cap.
type Toolbag struct {
	registry *Registry
	factory  interfaces.ProviderFactory
	config   *common.ToolbagConfig
	logger   arbor.ILogger

	mu     sync.RWMutex
	limits map[string]int
}

// NewToolbag creates the tool-dispatch engine. Limits seed from the config.
func NewToolbag(registry *Registry, factory interfaces.ProviderFactory, config *common.ToolbagConfig, logger arbor.ILogger) *Toolbag {
	limits := make(map[string]int, len(config.ToolLimits))
	for name, max := range config.ToolLimits {
		limits[name] = max
	}
	return &Toolbag{
		registry: registry,
		factory:  factory,
		config:   config,
		logger:   logger,
		limits:   limits,
	}
}

// SetToolLimit caps how many times one tool may run per invocation
func (t *Toolbag) SetToolLimit(name string, maxUses int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits[name] = maxUses
}

func (t *Toolbag) limit(name string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	max, ok := t.limits[name]
	return max, ok
}

// exhausted reports whether the tool has hit its cap in this invocation.
// Tools without a limit entry are uncapped.
func (t *Toolbag) exhausted(name string, state *chainState) bool {
	max, ok := t.limit(name)
	return ok && state.usageCounts[name] >= max
}

func (t *Toolbag) maxIterations() int {
	if t.config.MaxIterations > 0 {
		return t.config.MaxIterations
	}
	return 3
}

// Execute runs one model/tool loop with a fresh budget
func (t *Toolbag) Execute(ctx context.Context, params *ExecuteParams) *models.Transcript {
	return t.execute(ctx, params, newChainState())
}

func (t *Toolbag) execute(ctx context.Context, params *ExecuteParams, state *chainState) *models.Transcript {
	transcript := &models.Transcript{}

	provider, err := t.factory.Provider(params.Provider, params.APIKey)
	if err != nil {
		transcript.Error = err.Error()
		return transcript
	}
	transcript.Provider = provider.Name()

	messages := []interfaces.ProviderMessage{{
		Role: "user",
		Blocks: []interfaces.ContentBlock{{
			Type: interfaces.ContentBlockTypeText,
			Text: t.renderQuery(params.Query, params.PreviousResult, state),
		}},
	}}

	for {
		schemas := t.availableSchemas(params.Tools, state)

		resp, err := provider.Generate(ctx, &interfaces.GenerateRequest{
			Model:    params.Model,
			Messages: messages,
			Tools:    schemas,
		})
		if err != nil {
			transcript.Error = fmt.Sprintf("provider error: %v", err)
			return transcript
		}
		transcript.Iterations++
		transcript.Response = resp.Text

		if len(resp.ToolUses) == 0 {
			transcript.Success = true
			return transcript
		}
		if transcript.Iterations >= t.maxIterations() {
			transcript.Success = true
			transcript.Truncated = true
			return transcript
		}

		// Tool executions within one iteration run sequentially so the model
		// sees an ordered result list.
		var resultBlocks []interfaces.ContentBlock
		for _, call := range resp.ToolUses {
			execution, block := t.runToolCall(ctx, call, state)
			transcript.Executions = append(transcript.Executions, *execution)
			resultBlocks = append(resultBlocks, *block)
		}

		messages = append(messages,
			interfaces.ProviderMessage{Role: "assistant", Blocks: resp.Blocks},
			interfaces.ProviderMessage{Role: "user", Blocks: resultBlocks},
		)
	}
}

// runToolCall executes one model-requested call against the registry,
// honoring the budget, and produces the tool_result block to feed back.
func (t *Toolbag) runToolCall(ctx context.Context, call models.ToolCall, state *chainState) (*models.ToolExecution, *interfaces.ContentBlock) {
	var args map[string]interface{}
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &args); err != nil {
			args = nil
		}
	}

	execution := &models.ToolExecution{
		ToolUseID: call.ID,
		Tool:      call.Name,
		Input:     args,
	}

	var result map[string]interface{}
	switch {
	case t.exhausted(call.Name, state):
		t.logger.Warn().Str("tool", call.Name).Msg("Tool usage limit reached, call not executed")
		execution.Skipped = true
		result = map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("usage limit for tool %s reached", call.Name),
		}
	default:
		var err error
		result, err = t.registry.Execute(ctx, call.Name, args)
		if err != nil {
			result = map[string]interface{}{"success": false, "error": err.Error()}
		} else {
			state.usageCounts[call.Name]++
			state.executed++
			t.captureSession(call.Name, result, state)
		}
	}
	execution.Result = result

	content, err := json.Marshal(result)
	if err != nil {
		content = []byte(`{"success":false,"error":"unserializable tool result"}`)
	}
	isError := false
	if ok, has := result["success"].(bool); has && !ok {
		isError = true
	}

	return execution, &interfaces.ContentBlock{
		Type:      interfaces.ContentBlockTypeToolResult,
		ToolUseID: call.ID,
		Name:      call.Name,
		Content:   string(content),
		IsError:   isError,
	}
}

// captureSession remembers session ids surfaced by tool results so later
// steps in the same chain can name them. The store is keyed by session id,
// so several sessions opened in one chain all stay addressable.
func (t *Toolbag) captureSession(tool string, result map[string]interface{}, state *chainState) {
	id, ok := result["session_id"].(string)
	if !ok || id == "" {
		return
	}
	state.sessionStore[id] = map[string]interface{}{"session_id": id, "tool": tool}
}

// availableSchemas intersects the requested tool list with the registry,
// minus tools whose budget is spent. An exhausted tool disappears from the
// model's menu for the rest of the invocation.
func (t *Toolbag) availableSchemas(requested []string, state *chainState) []models.ToolSchema {
	schemas := t.registry.GetSchemas(requested)
	out := schemas[:0]
	for _, schema := range schemas {
		if !t.exhausted(schema.Name, state) {
			out = append(out, schema)
		}
	}
	return out
}

// renderQuery builds the initial user turn, folding in the previous step's
// result and any known session ids.
func (t *Toolbag) renderQuery(query string, previous map[string]interface{}, state *chainState) string {
	text := query
	if len(previous) > 0 {
		if rendered, err := json.MarshalIndent(previous, "", "  "); err == nil {
			text += "\n\nResult of the previous step:\n" + string(rendered)
		}
	}
	if len(state.sessionStore) > 0 {
		if rendered, err := json.Marshal(state.sessionStore); err == nil {
			text += "\n\nActive sessions: " + string(rendered)
		}
	}
	return text
}

// ExecuteChain runs a fixed tool sequence, one execute loop per step, each
// step seeing the prior step's outcome. Budgets span the whole chain.
func (t *Toolbag) ExecuteChain(ctx context.Context, params *ChainParams) *models.ChainResult {
	state := newChainState()
	chain := &models.ChainResult{
		Success:      true,
		FinalContext: make(map[string]interface{}),
	}

	var previous map[string]interface{}
	for position, toolName := range params.Tools {
		step := models.ChainStep{Position: position, Tool: toolName}

		if !t.registry.Has(toolName) {
			step.Error = fmt.Sprintf("unknown tool: %s", toolName)
			chain.Results = append(chain.Results, step)
			chain.Success = false
			if params.Mode == ChainModeStopOnError {
				break
			}
			continue
		}

		if t.exhausted(toolName, state) {
			t.logger.Warn().Str("tool", toolName).Int("position", position).Msg("Chain step skipped, tool budget exhausted")
			step.Skipped = true
			chain.Results = append(chain.Results, step)
			continue
		}

		transcript := t.execute(ctx, &ExecuteParams{
			Tools:          []string{toolName},
			Query:          params.Query,
			Provider:       params.Provider,
			Model:          params.Model,
			APIKey:         params.APIKey,
			PreviousResult: previous,
		}, state)

		step.Success = transcript.Success
		step.Transcript = transcript
		if !transcript.Success {
			step.Error = transcript.Error
		}
		chain.Results = append(chain.Results, step)

		if transcript.Success {
			entry := map[string]interface{}{
				"response":   transcript.Response,
				"iterations": transcript.Iterations,
			}
			if len(transcript.Executions) > 0 {
				last := transcript.Executions[len(transcript.Executions)-1]
				entry["last_result"] = last.Result
			}
			chain.FinalContext[fmt.Sprintf("%d_%s", position, toolName)] = entry
			previous = entry
		} else {
			chain.Success = false
			if params.Mode == ChainModeStopOnError {
				break
			}
		}
	}

	chain.ToolsExecuted = state.executed
	chain.SessionStore = state.sessionStore
	return chain
}
