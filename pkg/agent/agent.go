// Package agent holds the conversational agent that answers questions by
// letting the hosted model choose among document query tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	lctools "github.com/tmc/langchaingo/tools"
	"go.uber.org/zap"

	"github.com/xhad/pdfagent/internal/types"
	"github.com/xhad/pdfagent/pkg/config"
)

// ErrMaxIterations is returned when the model keeps requesting tools past the
// configured bound without producing an answer.
var ErrMaxIterations = errors.New("agent stopped after reaching max iterations")

const defaultMaxIterations = 5

// toolParameters is the JSON schema every query tool accepts.
var toolParameters = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"input": map[string]any{
			"type":        "string",
			"description": "A detailed plain text question.",
		},
	},
	"required": []string{"input"},
}

type Options struct {
	SystemPrompt  string
	MaxIterations int
	// CallOptions are passed on every model request, e.g. temperature.
	CallOptions []llms.CallOption
	Logger      *zap.Logger
	// OnToolCall is notified before each tool invocation.
	OnToolCall func(name, input string)
}

// Agent routes questions through a fixed set of tools. The tool list is set
// at construction and never changes; the conversation history grows across
// calls until Reset.
type Agent struct {
	model   llms.Model
	tools   []lctools.Tool
	options Options
	logger  *zap.Logger

	mu      sync.Mutex
	history []llms.MessageContent
}

var _ types.ToolRouter = (*Agent)(nil)

func New(model llms.Model, tools []lctools.Tool, opts Options) (*Agent, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = config.DefaultSystemPrompt
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		if seen[t.Name()] {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		seen[t.Name()] = true
	}

	a := &Agent{
		model:   model,
		tools:   append([]lctools.Tool(nil), tools...),
		options: opts,
		logger:  logger,
	}
	a.history = a.initialHistory()
	return a, nil
}

// Tools returns a copy of the agent's tool list.
func (a *Agent) Tools() []lctools.Tool {
	return append([]lctools.Tool(nil), a.tools...)
}

// Reset drops the conversation history, keeping the system instruction.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = a.initialHistory()
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []llms.MessageContent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llms.MessageContent(nil), a.history...)
}

// Chat answers query using the agent's own tools.
func (a *Agent) Chat(ctx context.Context, query string) (string, error) {
	return a.SelectAndInvoke(ctx, query, a.tools)
}

// SelectAndInvoke lets the model pick among toolset for query. Tool results
// are fed back until the model replies with text. On failure the history is
// left as it was before the call.
func (a *Agent) SelectAndInvoke(ctx context.Context, query string, toolset []lctools.Tool) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	messages := append([]llms.MessageContent(nil), a.history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, query))

	byName := make(map[string]lctools.Tool, len(toolset))
	for _, t := range toolset {
		byName[t.Name()] = t
	}

	opts := append([]llms.CallOption(nil), a.options.CallOptions...)
	if len(toolset) > 0 {
		opts = append(opts, llms.WithTools(definitions(toolset)))
	}

	for i := 0; i < a.options.MaxIterations; i++ {
		resp, err := a.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return "", fmt.Errorf("agent error: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
			return "", errors.New("agent error: no response from LLM")
		}
		choice := resp.Choices[0]

		if len(choice.ToolCalls) == 0 {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, choice.Content))
			a.history = messages
			return choice.Content, nil
		}

		call := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			call.Parts = append(call.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			call.Parts = append(call.Parts, tc)
		}
		messages = append(messages, call)

		for _, tc := range choice.ToolCalls {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{a.invoke(ctx, byName, tc)},
			})
		}
	}

	return "", fmt.Errorf("%w (%d)", ErrMaxIterations, a.options.MaxIterations)
}

// invoke runs one tool call. Failures are reported back to the model as the
// tool result so it can recover.
func (a *Agent) invoke(ctx context.Context, byName map[string]lctools.Tool, tc llms.ToolCall) llms.ToolCallResponse {
	out := llms.ToolCallResponse{ToolCallID: tc.ID}
	if tc.FunctionCall == nil {
		out.Content = "Error: tool call has no function"
		return out
	}
	out.Name = tc.FunctionCall.Name

	tool, ok := byName[tc.FunctionCall.Name]
	if !ok {
		a.logger.Warn("model requested unknown tool", zap.String("tool", tc.FunctionCall.Name))
		out.Content = fmt.Sprintf("Error: unknown tool %q", tc.FunctionCall.Name)
		return out
	}

	input := toolInput(tc.FunctionCall.Arguments)
	if a.options.OnToolCall != nil {
		a.options.OnToolCall(tool.Name(), input)
	}
	a.logger.Debug("invoking tool", zap.String("tool", tool.Name()), zap.String("input", input))

	result, err := tool.Call(ctx, input)
	if err != nil {
		a.logger.Warn("tool call failed", zap.String("tool", tool.Name()), zap.Error(err))
		out.Content = fmt.Sprintf("Error: %v", err)
		return out
	}
	out.Content = result
	return out
}

func (a *Agent) initialHistory() []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, a.options.SystemPrompt),
	}
}

func definitions(toolset []lctools.Tool) []llms.Tool {
	defs := make([]llms.Tool, 0, len(toolset))
	for _, t := range toolset {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  toolParameters,
			},
		})
	}
	return defs
}

// toolInput extracts the question from the call arguments. Models sometimes
// send a bare string instead of the declared object.
func toolInput(arguments string) string {
	var args struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err == nil && args.Input != "" {
		return args.Input
	}
	var s string
	if err := json.Unmarshal([]byte(arguments), &s); err == nil {
		return s
	}
	return arguments
}
