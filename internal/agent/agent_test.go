package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"research-agent/internal/config"
	"research-agent/internal/tools"
)

type mockLLM struct {
	calls    []openai.ChatCompletionResponse
	requests []openai.ChatCompletionRequest
	ctxs     []context.Context
	err      error
}

func (m *mockLLM) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.ctxs = append(m.ctxs, ctx)
	m.requests = append(m.requests, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		panic("mockLLM: no more responses configured")
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

type mockTool struct {
	name   string
	output string
	err    error
	args   []map[string]any
}

func (t *mockTool) Name() string                { return t.name }
func (t *mockTool) Description() string         { return "mock tool" }
func (t *mockTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t *mockTool) Run(_ context.Context, args map[string]any) (string, error) {
	t.args = append(t.args, args)
	return t.output, t.err
}

type mockMCPClient struct {
	CallToolFunc  func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	ListToolsFunc func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
}

func (m *mockMCPClient) Initialize(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (m *mockMCPClient) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if m.ListToolsFunc != nil {
		return m.ListToolsFunc(ctx, req)
	}
	return &mcp.ListToolsResult{}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.CallToolFunc != nil {
		return m.CallToolFunc(ctx, request)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "mock result for " + request.Params.Name}},
	}, nil
}

func (m *mockMCPClient) Close() error { return nil }

func testConfig() config.Config {
	return config.Config{
		LLM:   config.LLMConfig{APIKey: "k", Model: "gpt"},
		Agent: config.AgentConfig{MaxTurns: 5},
	}
}

func contentResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: text}}},
	}
}

func toolCallResponse(id, name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					ID:       id,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: name, Arguments: args},
				}},
			},
		}},
	}
}

func TestProcess_DirectContent(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse("final answer")}}
	a := New(mock, testConfig(), tools.NewRegistry())

	out, err := a.Process(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "final answer", out)

	// System prompt first, then the user question.
	require.Len(t, mock.requests, 1)
	msgs := mock.requests[0].Messages
	require.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	require.Equal(t, "question", msgs[1].Content)
}

func TestProcess_LocalToolCall(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &mockTool{name: "web_search", output: "1. Result\nhttps://example.com"}
	require.NoError(t, registry.Register(tool))

	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("tc1", "web_search", `{"query":"go"}`),
		contentResponse("answer based on https://example.com"),
	}}
	a := New(mock, testConfig(), registry)
	require.Len(t, a.llmTools, 1)

	out, err := a.Process(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "answer based on https://example.com", out)

	require.Equal(t, []map[string]any{{"query": "go"}}, tool.args)

	// The second model call carries the tool result message.
	second := mock.requests[1].Messages
	last := second[len(second)-1]
	require.Equal(t, openai.ChatMessageRoleTool, last.Role)
	require.Equal(t, "tc1", last.ToolCallID)
	require.Equal(t, tool.output, last.Content)
}

func TestProcess_ToolErrorReportedToModel(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&mockTool{name: "web_search", err: context.DeadlineExceeded}))

	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("tc1", "web_search", `{"query":"go"}`),
		contentResponse("answered without search"),
	}}
	a := New(mock, testConfig(), registry)

	out, err := a.Process(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "answered without search", out)

	second := mock.requests[1].Messages
	require.Contains(t, second[len(second)-1].Content, "Error:")
}

func TestProcess_MCPToolCall(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("tc1", "remote_tool", `{}`),
		contentResponse("done"),
	}}
	a := New(mock, testConfig(), tools.NewRegistry())

	mcpMock := &mockMCPClient{
		ListToolsFunc: func(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return &mcp.ListToolsResult{Tools: []mcp.Tool{{Name: "remote_tool", Description: "remote"}}}, nil
		},
	}
	a.registerMCPTools(context.Background(), mcpMock, "mock-server")
	require.Len(t, a.llmTools, 1)

	out, err := a.Process(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "done", out)

	second := mock.requests[1].Messages
	require.Equal(t, "mock result for remote_tool", second[len(second)-1].Content)
}

func TestRegisterMCPTools_SkipsShadowedNames(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&mockTool{name: "web_search"}))
	a := New(&mockLLM{}, testConfig(), registry)

	mcpMock := &mockMCPClient{
		ListToolsFunc: func(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return &mcp.ListToolsResult{Tools: []mcp.Tool{
				{Name: "web_search"},
				{Name: "other_tool"},
			}}, nil
		},
	}
	a.registerMCPTools(context.Background(), mcpMock, "mock-server")

	require.Len(t, a.llmTools, 2) // web_search (local) + other_tool
	_, shadowed := a.mcpByTool["web_search"]
	require.False(t, shadowed)
	_, registered := a.mcpByTool["other_tool"]
	require.True(t, registered)
}

type ctxKey struct{}

// The model must be called on the very first turn, and every turn must
// see the caller's context, not a detached background one.
func TestProcess_ContextReachesEveryTurn(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&mockTool{name: "web_search", output: "results"}))

	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		toolCallResponse("tc1", "web_search", `{"query":"go"}`),
		contentResponse("final"),
	}}
	a := New(mock, testConfig(), registry)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")
	out, err := a.Process(ctx, "question")
	require.NoError(t, err)
	require.Equal(t, "final", out)

	require.Len(t, mock.ctxs, 2)
	for i, got := range mock.ctxs {
		require.Equal(t, "req-42", got.Value(ctxKey{}), "model call %d lost the request context", i+1)
	}
}

func TestProcess_MaxTurns(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&mockTool{name: "web_search", output: "more"}))

	// The model keeps asking for tools and never answers.
	loop := toolCallResponse("tc", "web_search", `{"query":"again"}`)
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{loop, loop, loop, loop, loop}}

	cfg := testConfig()
	cfg.Agent.MaxTurns = 3
	a := New(mock, cfg, registry)

	_, err := a.Process(context.Background(), "question")
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum interaction turns")
	require.Len(t, mock.requests, 3)
}

func TestDirect(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{contentResponse("quick answer")}}
	a := New(mock, testConfig(), tools.NewRegistry())

	out, err := a.Direct(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "quick answer", out)

	// Fast path sends no tools and no system prompt.
	require.Empty(t, mock.requests[0].Tools)
	require.Len(t, mock.requests[0].Messages, 1)
}
