package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// scriptedProvider replays a fixed sequence of responses. Once the script is
// exhausted every further call returns a plain text answer, which ends the
// toolbag loop. Each call records the tool menu it was offered.
type scriptedProvider struct {
	script    []*interfaces.GenerateResponse
	calls     int
	toolMenus [][]string
	err       error
}

func (p *scriptedProvider) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	if p.err != nil {
		return nil, p.err
	}

	var menu []string
	for _, schema := range req.Tools {
		menu = append(menu, schema.Name)
	}
	p.toolMenus = append(p.toolMenus, menu)

	if p.calls < len(p.script) {
		resp := p.script[p.calls]
		p.calls++
		return resp, nil
	}
	p.calls++
	return &interfaces.GenerateResponse{
		Blocks: []interfaces.ContentBlock{{Type: interfaces.ContentBlockTypeText, Text: "done"}},
		Text:   "done",
	}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type scriptedFactory struct {
	provider interfaces.LLMProvider
	err      error
}

func (f *scriptedFactory) Provider(name, apiKey string) (interfaces.LLMProvider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

func toolUseResponse(id, tool string, input map[string]interface{}) *interfaces.GenerateResponse {
	raw, _ := json.Marshal(input)
	block := interfaces.ContentBlock{
		Type:  interfaces.ContentBlockTypeToolUse,
		ID:    id,
		Name:  tool,
		Input: raw,
	}
	return &interfaces.GenerateResponse{
		Blocks:   []interfaces.ContentBlock{block},
		ToolUses: []models.ToolCall{{ID: id, Name: tool, Input: raw}},
	}
}

// countingTool remembers how many times it ran
type countingTool struct {
	runs      int
	sessionID string
}

func (c *countingTool) descriptor(name string) Descriptor {
	return Descriptor{
		Name:        name,
		Description: "test tool",
		Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			c.runs++
			result := map[string]interface{}{"run": c.runs}
			if c.sessionID != "" {
				result["session_id"] = c.sessionID
			}
			return result, nil
		},
	}
}

func newTestToolbag(t *testing.T, provider *scriptedProvider, maxIterations int) (*Toolbag, *countingTool) {
	t.Helper()
	registry := newTestRegistry(t)
	tool := &countingTool{}
	require.NoError(t, registry.Register(tool.descriptor("crawl")))

	bag := NewToolbag(registry, &scriptedFactory{provider: provider}, &common.ToolbagConfig{
		MaxIterations: maxIterations,
	}, arbor.NewLogger())
	return bag, tool
}

func TestExecuteNoToolUse(t *testing.T) {
	provider := &scriptedProvider{}
	bag, tool := newTestToolbag(t, provider, 3)

	transcript := bag.Execute(context.Background(), &ExecuteParams{
		Tools: []string{"crawl"},
		Query: "just answer",
	})

	assert.True(t, transcript.Success)
	assert.False(t, transcript.Truncated)
	assert.Equal(t, 1, transcript.Iterations)
	assert.Equal(t, "done", transcript.Response)
	assert.Empty(t, transcript.Executions)
	assert.Zero(t, tool.runs)
	assert.Equal(t, "scripted", transcript.Provider)
}

func TestExecuteRunsRequestedTool(t *testing.T) {
	provider := &scriptedProvider{script: []*interfaces.GenerateResponse{
		toolUseResponse("call_1", "crawl", map[string]interface{}{"url": "https://example.com"}),
	}}
	bag, tool := newTestToolbag(t, provider, 5)

	transcript := bag.Execute(context.Background(), &ExecuteParams{
		Tools: []string{"crawl"},
		Query: "crawl the page",
	})

	assert.True(t, transcript.Success)
	assert.Equal(t, 2, transcript.Iterations)
	assert.Equal(t, 1, tool.runs)
	require.Len(t, transcript.Executions, 1)
	assert.Equal(t, "crawl", transcript.Executions[0].Tool)
	assert.Equal(t, "call_1", transcript.Executions[0].ToolUseID)
	assert.False(t, transcript.Executions[0].Skipped)
	assert.Equal(t, "https://example.com", transcript.Executions[0].Input["url"])
}

func TestExecuteIterationCap(t *testing.T) {
	provider := &scriptedProvider{script: []*interfaces.GenerateResponse{
		toolUseResponse("call_1", "crawl", nil),
		toolUseResponse("call_2", "crawl", nil),
		toolUseResponse("call_3", "crawl", nil),
		toolUseResponse("call_4", "crawl", nil),
	}}
	bag, tool := newTestToolbag(t, provider, 3)

	transcript := bag.Execute(context.Background(), &ExecuteParams{
		Tools: []string{"crawl"},
		Query: "loop forever",
	})

	assert.True(t, transcript.Success, "hitting the cap is a truncation, not a failure")
	assert.True(t, transcript.Truncated)
	assert.Equal(t, 3, transcript.Iterations)
	// the capped iteration's tool calls are not executed
	assert.Equal(t, 2, tool.runs)
}

func TestExecuteBudgetSkipsExhaustedTool(t *testing.T) {
	provider := &scriptedProvider{script: []*interfaces.GenerateResponse{
		toolUseResponse("call_1", "crawl", nil),
		toolUseResponse("call_2", "crawl", nil),
	}}
	bag, tool := newTestToolbag(t, provider, 10)
	bag.SetToolLimit("crawl", 1)

	transcript := bag.Execute(context.Background(), &ExecuteParams{
		Tools: []string{"crawl"},
		Query: "crawl twice",
	})

	assert.True(t, transcript.Success)
	assert.Equal(t, 1, tool.runs, "the budget caps executions")
	require.Len(t, transcript.Executions, 2)
	assert.False(t, transcript.Executions[0].Skipped)
	assert.True(t, transcript.Executions[1].Skipped)
	assert.Equal(t, false, transcript.Executions[1].Result["success"])

	// after exhaustion the tool drops off the model's menu
	require.GreaterOrEqual(t, len(provider.toolMenus), 2)
	assert.Contains(t, provider.toolMenus[0], "crawl")
	assert.NotContains(t, provider.toolMenus[1], "crawl")
}

func TestExecuteProviderError(t *testing.T) {
	provider := &scriptedProvider{err: fmt.Errorf("rate limited")}
	bag, _ := newTestToolbag(t, provider, 3)

	transcript := bag.Execute(context.Background(), &ExecuteParams{Tools: []string{"crawl"}, Query: "x"})
	assert.False(t, transcript.Success)
	assert.Contains(t, transcript.Error, "provider error")
	assert.Contains(t, transcript.Error, "rate limited")
}

func TestExecuteFactoryError(t *testing.T) {
	registry := newTestRegistry(t)
	bag := NewToolbag(registry, &scriptedFactory{err: fmt.Errorf("no api key")}, &common.ToolbagConfig{}, arbor.NewLogger())

	transcript := bag.Execute(context.Background(), &ExecuteParams{Query: "x"})
	assert.False(t, transcript.Success)
	assert.Contains(t, transcript.Error, "no api key")
}

func TestExecuteChainBudgetSpansChain(t *testing.T) {
	// three crawl steps, budget of two: the third step is skipped and exactly
	// two executions happen across the whole chain
	provider := &scriptedProvider{script: []*interfaces.GenerateResponse{
		toolUseResponse("call_1", "crawl", nil), // step 0
		{Text: "step 0 done", Blocks: []interfaces.ContentBlock{{Type: interfaces.ContentBlockTypeText, Text: "step 0 done"}}},
		toolUseResponse("call_2", "crawl", nil), // step 1
		{Text: "step 1 done", Blocks: []interfaces.ContentBlock{{Type: interfaces.ContentBlockTypeText, Text: "step 1 done"}}},
	}}
	bag, tool := newTestToolbag(t, provider, 10)
	bag.SetToolLimit("crawl", 2)

	chain := bag.ExecuteChain(context.Background(), &ChainParams{
		Tools: []string{"crawl", "crawl", "crawl"},
		Query: "crawl it",
	})

	assert.True(t, chain.Success)
	assert.Equal(t, 2, chain.ToolsExecuted)
	assert.Equal(t, 2, tool.runs)
	require.Len(t, chain.Results, 3)
	assert.False(t, chain.Results[0].Skipped)
	assert.False(t, chain.Results[1].Skipped)
	assert.True(t, chain.Results[2].Skipped, "exhausted step is skipped without a model call")
}

func TestExecuteChainUnknownTool(t *testing.T) {
	provider := &scriptedProvider{}
	bag, _ := newTestToolbag(t, provider, 3)

	chain := bag.ExecuteChain(context.Background(), &ChainParams{
		Tools: []string{"nonexistent", "crawl"},
		Query: "x",
	})

	assert.False(t, chain.Success)
	require.Len(t, chain.Results, 2)
	assert.Contains(t, chain.Results[0].Error, "unknown tool")
	assert.True(t, chain.Results[1].Success, "default mode continues past failures")
}

func TestExecuteChainStopOnError(t *testing.T) {
	provider := &scriptedProvider{}
	bag, _ := newTestToolbag(t, provider, 3)

	chain := bag.ExecuteChain(context.Background(), &ChainParams{
		Tools: []string{"nonexistent", "crawl"},
		Query: "x",
		Mode:  ChainModeStopOnError,
	})

	assert.False(t, chain.Success)
	assert.Len(t, chain.Results, 1, "stop_on_error aborts at the first failure")
}

func TestExecuteChainForwardsContext(t *testing.T) {
	provider := &scriptedProvider{script: []*interfaces.GenerateResponse{
		toolUseResponse("call_1", "crawl", nil),
		{Text: "found it", Blocks: []interfaces.ContentBlock{{Type: interfaces.ContentBlockTypeText, Text: "found it"}}},
	}}
	bag, _ := newTestToolbag(t, provider, 10)

	chain := bag.ExecuteChain(context.Background(), &ChainParams{
		Tools: []string{"crawl"},
		Query: "crawl it",
	})

	assert.True(t, chain.Success)
	entry, ok := chain.FinalContext["0_crawl"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "found it", entry["response"])
	assert.NotNil(t, entry["last_result"])
}

func TestExecuteChainCapturesSessions(t *testing.T) {
	registry := newTestRegistry(t)
	tool := &countingTool{sessionID: "sess_abc123"}
	require.NoError(t, registry.Register(tool.descriptor("start_session")))

	provider := &scriptedProvider{script: []*interfaces.GenerateResponse{
		toolUseResponse("call_1", "start_session", nil),
	}}
	bag := NewToolbag(registry, &scriptedFactory{provider: provider}, &common.ToolbagConfig{MaxIterations: 5}, arbor.NewLogger())

	chain := bag.ExecuteChain(context.Background(), &ChainParams{
		Tools: []string{"start_session"},
		Query: "open a browser",
	})

	assert.True(t, chain.Success)
	require.Contains(t, chain.SessionStore, "sess_abc123")
	assert.Equal(t, "sess_abc123", chain.SessionStore["sess_abc123"]["session_id"])
	assert.Equal(t, "start_session", chain.SessionStore["sess_abc123"]["tool"])
}

func TestExecuteChainKeepsEverySession(t *testing.T) {
	registry := newTestRegistry(t)
	opened := 0
	require.NoError(t, registry.Register(Descriptor{
		Name:        "start_session",
		Description: "test tool",
		Execute: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			opened++
			return map[string]interface{}{"session_id": fmt.Sprintf("sess_%d", opened)}, nil
		},
	}))

	provider := &scriptedProvider{script: []*interfaces.GenerateResponse{
		toolUseResponse("call_1", "start_session", nil),
		{Text: "opened", Blocks: []interfaces.ContentBlock{{Type: interfaces.ContentBlockTypeText, Text: "opened"}}},
		toolUseResponse("call_2", "start_session", nil),
	}}
	bag := NewToolbag(registry, &scriptedFactory{provider: provider}, &common.ToolbagConfig{MaxIterations: 5}, arbor.NewLogger())

	chain := bag.ExecuteChain(context.Background(), &ChainParams{
		Tools: []string{"start_session", "start_session"},
		Query: "open two browsers",
	})

	// two sessions opened by the same tool both survive the chain
	assert.True(t, chain.Success)
	require.Contains(t, chain.SessionStore, "sess_1")
	require.Contains(t, chain.SessionStore, "sess_2")
}
