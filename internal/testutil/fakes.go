// Package testutil holds in-process stand-ins for the hosted model APIs.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

// FakeModel is a scripted llms.Model. Responses are returned in order and the
// last one repeats; Handler, when set, takes precedence.
type FakeModel struct {
	mu        sync.Mutex
	Responses []*llms.ContentResponse
	Handler   func(messages []llms.MessageContent, opts llms.CallOptions) (*llms.ContentResponse, error)
	Err       error

	Calls   [][]llms.MessageContent
	Options []llms.CallOptions
}

func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	copied := append([]llms.MessageContent(nil), messages...)
	m.Calls = append(m.Calls, copied)
	m.Options = append(m.Options, opts)
	n := len(m.Calls)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	var resp *llms.ContentResponse
	switch {
	case m.Handler != nil:
		var err error
		resp, err = m.Handler(messages, opts)
		if err != nil {
			return nil, err
		}
	case len(m.Responses) > 0:
		idx := n - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		resp = m.Responses[idx]
	default:
		return nil, errors.New("fake model: no response scripted")
	}

	if opts.StreamingFunc != nil && resp != nil && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		if err := opts.StreamingFunc(ctx, []byte(resp.Choices[0].Content)); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// CallCount returns how many requests the model received.
func (m *FakeModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func TextResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content, StopReason: "stop"}},
	}
}

func ToolCallResponse(id, name, arguments string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			StopReason: "tool_calls",
			ToolCalls: []llms.ToolCall{{
				ID:   id,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: arguments,
				},
			}},
		}},
	}
}

// HashEmbedder maps text onto a bag-of-words vector so that texts sharing
// words land close to each other. It satisfies embeddings.Embedder.
type HashEmbedder struct {
	Dim int
	// FailOn makes embedding fail for any text containing this substring.
	FailOn string
}

func (e HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (e HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, errors.New("fake embedder: refused input")
	}
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}

	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range v {
			v[i] /= n
		}
	}
	return v, nil
}
