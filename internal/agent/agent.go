// Package agent assembles and drives the research session: a chat
// completion loop where the model may call the built-in web-search tool
// (and any configured MCP tools) before producing its final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"research-agent/internal/config"
	"research-agent/internal/llm"
	"research-agent/internal/logger"
	"research-agent/internal/tools"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"
)

type fsmState stateless.State

var (
	stateReadyToCallLLM fsmState = "ReadyToCallLLM"
	stateExecutingTools fsmState = "ExecutingTools"
	stateDone           fsmState = "Done"
	stateError          fsmState = "Error"
)

type fsmTrigger stateless.Trigger

var (
	triggerProcessInput            fsmTrigger = "ProcessInput"
	triggerLLMRespondedWithContent fsmTrigger = "LLMRespondedWithContent"
	triggerLLMRequestedTools       fsmTrigger = "LLMRequestedTools"
	triggerToolsExecutionCompleted fsmTrigger = "ToolsExecutionCompleted"
	triggerErrorOccurred           fsmTrigger = "ErrorOccurred"
)

const systemPrompt = "You are a web research assistant. Use the web_search tool to find " +
	"up-to-date information before answering, and cite the URLs of the pages " +
	"you relied on in your final answer. Answer accurately and concisely."

// MCPClient is the subset of the mcp-go client the agent uses; tests
// substitute a mock.
type MCPClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Agent binds one model to the tool set and runs the research loop.
type Agent struct {
	llmClient  llm.Client
	llmCfg     config.LLMConfig
	maxTurns   int
	verbose    bool
	local      *tools.Registry
	mcpByTool  map[string]MCPClient
	llmTools   []openai.Tool
	mcpClients []MCPClient
}

// New assembles the session. The factory makes no model calls itself;
// it only registers tool schemas. MCP servers that fail to connect are
// logged and skipped so a broken optional server cannot take the agent
// down.
func New(llmClient llm.Client, cfg config.Config, registry *tools.Registry) *Agent {
	a := &Agent{
		llmClient: llmClient,
		llmCfg:    cfg.LLM,
		maxTurns:  cfg.Agent.MaxTurns,
		verbose:   cfg.Agent.Verbose,
		local:     registry,
		mcpByTool: make(map[string]MCPClient),
	}
	if a.maxTurns <= 0 {
		a.maxTurns = 5
	}

	for _, t := range registry.List() {
		a.llmTools = append(a.llmTools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	for _, serverCfg := range cfg.Agent.MCPServers {
		a.connectMCPServer(serverCfg)
	}
	return a
}

func (a *Agent) connectMCPServer(serverCfg config.MCPServerConfig) {
	ctx := context.Background()

	var mcpC *client.Client
	var err error
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		mcpC, err = client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		mcpC, err = client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		mcpC, err = client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	default:
		logger.L.Warn("unsupported MCP server type; skipping", "type", serverCfg.Type, "name", serverCfg.Name)
		return
	}
	if err != nil {
		logger.L.Error("failed to create MCP client", "name", serverCfg.Name, "error", err)
		return
	}

	// Stdio transports are started internally on creation.
	if serverCfg.Type != config.ClientTypeStdio {
		if err := mcpC.Start(ctx); err != nil {
			logger.L.Error("failed to start MCP client transport", "name", serverCfg.Name, "error", err)
			if cerr := mcpC.Close(); cerr != nil {
				logger.L.Warn("MCP client close error", "error", cerr)
			}
			return
		}
	}

	if _, err := mcpC.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{Capabilities: mcp.ClientCapabilities{}},
	}); err != nil {
		logger.L.Error("failed to initialize MCP client", "name", serverCfg.Name, "error", err)
		if cerr := mcpC.Close(); cerr != nil {
			logger.L.Warn("MCP client close error", "error", cerr)
		}
		return
	}
	a.mcpClients = append(a.mcpClients, mcpC)
	a.registerMCPTools(ctx, mcpC, serverCfg.Name)
}

// registerMCPTools lists a server's tools and merges them into the tool
// set, skipping names already taken by a local or earlier MCP tool.
func (a *Agent) registerMCPTools(ctx context.Context, mcpC MCPClient, serverName string) {
	serverTools, err := mcpC.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		logger.L.Warn("failed to list tools from MCP server", "name", serverName, "error", err)
		return
	}
	if serverTools == nil {
		return
	}

	for _, mcpTool := range serverTools.Tools {
		if _, local := a.local.Get(mcpTool.Name); local {
			logger.L.Warn("MCP tool shadows a built-in tool; skipping", "tool", mcpTool.Name, "name", serverName)
			continue
		}
		if _, taken := a.mcpByTool[mcpTool.Name]; taken {
			logger.L.Warn("MCP tool already registered from another server; skipping", "tool", mcpTool.Name, "name", serverName)
			continue
		}

		paramsSchema := json.RawMessage(mcpTool.RawInputSchema)
		if len(paramsSchema) == 0 || string(paramsSchema) == "null" {
			schemaBytes, merr := json.Marshal(mcpTool.InputSchema)
			if merr != nil || string(schemaBytes) == "{}" || string(schemaBytes) == "null" {
				paramsSchema = json.RawMessage(`{"type": "object", "properties": {}}`)
			} else {
				paramsSchema = schemaBytes
			}
		}

		a.mcpByTool[mcpTool.Name] = mcpC
		a.llmTools = append(a.llmTools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  paramsSchema,
			},
		})
		logger.L.Info("registered MCP tool", "tool", mcpTool.Name, "name", serverName)
	}
}

// Close shuts down any connected MCP clients.
func (a *Agent) Close() {
	for _, c := range a.mcpClients {
		if err := c.Close(); err != nil {
			logger.L.Warn("MCP client close error", "error", err)
		}
	}
}

// Direct is the fast path: one completion, no tools, no search.
func (a *Agent) Direct(ctx context.Context, question string) (string, error) {
	resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.llmCfg.Model,
		Temperature: a.llmCfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Process runs the full research loop until the model answers with
// content, an error occurs, or the turn budget is exhausted.
func (a *Agent) Process(ctx context.Context, question string) (string, error) {
	type fsmContext struct {
		messages     []openai.ChatCompletionMessage
		llmResponse  *openai.ChatCompletionResponse
		finalContent string
		lastError    error
		currentTurn  int
	}

	fsmCtx := &fsmContext{
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	}

	fsm := stateless.NewStateMachine(stateReadyToCallLLM)

	// Entering the state is what makes the model call, so the initial
	// Fire below must (re)enter it rather than rely on activation.
	fsm.Configure(stateReadyToCallLLM).
		PermitReentry(triggerProcessInput).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.currentTurn >= a.maxTurns {
				fsmCtx.lastError = errors.New("exceeded maximum interaction turns")
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			fsmCtx.currentTurn++
			if a.verbose {
				logger.L.Debug("calling model", "turn", fsmCtx.currentTurn, "messages", len(fsmCtx.messages))
			}

			resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       a.llmCfg.Model,
				Temperature: a.llmCfg.Temperature,
				Messages:    fsmCtx.messages,
				Tools:       a.llmTools,
			})
			if err != nil {
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			fsmCtx.llmResponse = &resp

			if len(resp.Choices) > 0 && len(resp.Choices[0].Message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, triggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, triggerLLMRespondedWithContent)
		}).
		Permit(triggerLLMRequestedTools, stateExecutingTools).
		Permit(triggerLLMRespondedWithContent, stateDone).
		Permit(triggerErrorOccurred, stateError)

	fsm.Configure(stateExecutingTools).
		OnEntry(func(ctx context.Context, args ...any) error {
			llmMessage := fsmCtx.llmResponse.Choices[0].Message
			fsmCtx.messages = append(fsmCtx.messages, llmMessage)

			for _, toolCall := range llmMessage.ToolCalls {
				output := a.executeTool(ctx, toolCall)
				fsmCtx.messages = append(fsmCtx.messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    output,
					ToolCallID: toolCall.ID,
					Name:       toolCall.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, triggerToolsExecutionCompleted)
		}).
		Permit(triggerToolsExecutionCompleted, stateReadyToCallLLM).
		Permit(triggerErrorOccurred, stateError)

	fsm.Configure(stateDone).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.llmResponse != nil && len(fsmCtx.llmResponse.Choices) > 0 {
				fsmCtx.finalContent = fsmCtx.llmResponse.Choices[0].Message.Content
			} else if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("model returned no content")
			}
			return nil
		})

	fsm.Configure(stateError).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("agent reached error state without a specific error")
			}
			return nil
		})

	// Kick the loop by re-entering the initial state; transitions are
	// synchronous, so once Fire returns the FSM is in a terminal state.
	if err := fsm.FireCtx(ctx, triggerProcessInput); err != nil {
		if fsmCtx.lastError != nil {
			return "", fsmCtx.lastError
		}
		return "", fmt.Errorf("agent start error: %w", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("agent internal error: %w", err)
	}
	switch currentState {
	case stateDone:
		if fsmCtx.lastError != nil && fsmCtx.finalContent == "" {
			return "", fsmCtx.lastError
		}
		return fsmCtx.finalContent, nil
	case stateError:
		return "", fsmCtx.lastError
	}
	if fsmCtx.lastError != nil {
		return "", fsmCtx.lastError
	}
	return "", fmt.Errorf("agent ended in unexpected state: %v", currentState)
}

// executeTool runs one tool call, preferring local tools and falling
// back to the owning MCP client. Tool failures are reported back to the
// model as text so it can recover or answer without the tool.
func (a *Agent) executeTool(ctx context.Context, toolCall openai.ToolCall) string {
	name := toolCall.Function.Name

	var args map[string]any
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
		logger.L.Error("failed to unmarshal tool arguments", "tool", name, "error", err)
		return "Error: could not parse arguments for tool " + name
	}

	if tool, ok := a.local.Get(name); ok {
		out, err := tool.Run(ctx, args)
		if err != nil {
			logger.L.Warn("tool execution failed", "tool", name, "error", err)
			return "Error: " + err.Error()
		}
		return out
	}

	mcpC, ok := a.mcpByTool[name]
	if !ok {
		return "Error: unknown tool " + name
	}
	result, err := mcpC.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil || result == nil {
		logger.L.Warn("MCP tool call failed", "tool", name, "error", err)
		return "Error: tool call failed for " + name
	}
	for _, contentItem := range result.Content {
		if textContent, ok := contentItem.(mcp.TextContent); ok {
			return textContent.Text
		}
	}
	resultBytes, merr := json.Marshal(result)
	if merr != nil {
		return "Tool executed, but the result could not be formatted."
	}
	return string(resultBytes)
}
