package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/pdfagent/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine over the given model.
func NewWithConfig(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a helpful assistant."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Context information is below.\n---------------------\n%s\n---------------------\n" +
			"Given the context information and not prior knowledge, answer the query.\nQuery: %s\nAnswer:"
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// Model returns the underlying model.
func (ce *ChatEngine) Model() llms.Model {
	return ce.llm
}

// CallOptions returns the sampling options shared by every request of this engine.
func (ce *ChatEngine) CallOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
}

// Chat forwards a single user message and returns the reply text.
func (ce *ChatEngine) Chat(ctx context.Context, query string) (string, error) {
	return ce.generate(ctx, ce.messages(query), ce.CallOptions()...)
}

// ChatStream forwards a single user message and streams the reply. The
// channel is closed when the reply is complete; failures arrive as a chunk
// prefixed with "Error:".
func (ce *ChatEngine) ChatStream(ctx context.Context, query string) (<-chan string, error) {
	return ce.stream(ctx, ce.messages(query))
}

// Answer synthesizes a reply to query grounded on the given records.
func (ce *ChatEngine) Answer(ctx context.Context, query string, docs []schema.Document) (string, error) {
	return ce.generate(ctx, ce.contextMessages(query, docs), ce.CallOptions()...)
}

// AnswerStream is the streaming form of Answer.
func (ce *ChatEngine) AnswerStream(ctx context.Context, query string, docs []schema.Document) (<-chan string, error) {
	return ce.stream(ctx, ce.contextMessages(query, docs))
}

func (ce *ChatEngine) messages(query string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, query),
	}
}

func (ce *ChatEngine) contextMessages(query string, docs []schema.Document) []llms.MessageContent {
	var contextBuilder strings.Builder
	for _, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s\n%s\n\n", sourceLabel(doc), doc.PageContent))
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf(ce.config.ContextTemplate, strings.TrimSpace(contextBuilder.String()), query)),
	}
}

func (ce *ChatEngine) generate(ctx context.Context, content []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	response, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", errors.New("chat error: no response from LLM")
	}
	return response.Choices[0].Content, nil
}

func (ce *ChatEngine) stream(ctx context.Context, content []llms.MessageContent) (<-chan string, error) {
	resultChan := make(chan string)

	go func() {
		defer close(resultChan)

		streamed := false
		opts := append(ce.CallOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			select {
			case resultChan <- string(chunk):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))

		reply, err := ce.generate(ctx, content, opts...)
		if err != nil {
			resultChan <- fmt.Sprintf("Error: %v", err)
			return
		}

		// Some providers ignore the streaming callback; emit the full reply instead.
		if !streamed && reply != "" {
			resultChan <- reply
		}
	}()

	return resultChan, nil
}

// FormatSources lists the distinct sources of docs for citation.
func FormatSources(docs []schema.Document) string {
	if docs == nil {
		return ""
	}

	var sources []string
	seen := make(map[string]bool)

	for _, doc := range docs {
		label := sourceLabel(doc)
		if !seen[label] {
			sources = append(sources, label)
			seen[label] = true
		}
	}

	if len(sources) == 0 {
		return ""
	}

	return fmt.Sprintf("Sources:\n%s", strings.Join(sources, "\n"))
}

func sourceLabel(doc schema.Document) string {
	source, _ := doc.Metadata[models.MetaSource].(string)
	if source == "" {
		source = "unknown"
	}
	if page, ok := doc.Metadata[models.MetaPage]; ok {
		return fmt.Sprintf("%s (page %v)", source, page)
	}
	return source
}
