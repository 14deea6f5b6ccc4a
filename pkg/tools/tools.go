package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/schema"
	lctools "github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/vectorstores"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xhad/pdfagent/pkg/config"
	"github.com/xhad/pdfagent/pkg/llm"
)

// EmptyResponse is the answer when retrieval finds no records.
const EmptyResponse = "Empty Response"

const descriptionTemplate = "Provides information about %s. Use a detailed plain text question as input to the tool."

// DisplayName turns a document key into a title-cased phrase:
// "annual_report" becomes "Annual Report".
func DisplayName(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

// maxToolNameLen is the longest function name hosted models accept.
const maxToolNameLen = 64

// ToolName turns a document key into a function-call safe identifier of at
// most 64 characters, always ending in "_query".
func ToolName(key string) string {
	return toolName(slug(key), "_query")
}

func slug(key string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(key) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			b.WriteRune(r)
			sep = false
		case !sep:
			b.WriteRune('_')
			sep = true
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		s = "document"
	}
	return s
}

// toolName trims base so that base+suffix fits maxToolNameLen.
func toolName(base, suffix string) string {
	if len(base)+len(suffix) > maxToolNameLen {
		base = strings.TrimRight(base[:maxToolNameLen-len(suffix)], "_")
	}
	return base + suffix
}

// Response is a query engine answer together with the records it was built from.
type Response struct {
	Answer  string
	Sources []schema.Document
}

// QueryEngine answers a question from the top-K records of one index.
type QueryEngine struct {
	index vectorstores.VectorStore
	chat  *llm.ChatEngine
	topK  int
}

func NewQueryEngine(index vectorstores.VectorStore, chat *llm.ChatEngine, topK int) *QueryEngine {
	if topK <= 0 {
		topK = config.DefaultTopK
	}
	return &QueryEngine{index: index, chat: chat, topK: topK}
}

// Retrieve returns at most topK records ordered by descending relevance.
func (q *QueryEngine) Retrieve(ctx context.Context, query string) ([]schema.Document, error) {
	docs, err := q.index.SimilaritySearch(ctx, query, q.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve records: %w", err)
	}
	return docs, nil
}

func (q *QueryEngine) Query(ctx context.Context, query string) (*Response, error) {
	docs, err := q.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &Response{Answer: EmptyResponse}, nil
	}

	answer, err := q.chat.Answer(ctx, query, docs)
	if err != nil {
		return nil, err
	}
	return &Response{Answer: answer, Sources: docs}, nil
}

// QueryStream retrieves like Query and streams the synthesized answer.
func (q *QueryEngine) QueryStream(ctx context.Context, query string) (<-chan string, []schema.Document, error) {
	docs, err := q.Retrieve(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	if len(docs) == 0 {
		empty := make(chan string, 1)
		empty <- EmptyResponse
		close(empty)
		return empty, nil, nil
	}
	stream, err := q.chat.AnswerStream(ctx, query, docs)
	if err != nil {
		return nil, nil, err
	}
	return stream, docs, nil
}

// QueryEngineTool exposes a QueryEngine to an agent. It is immutable once built.
type QueryEngineTool struct {
	key         string
	name        string
	description string
	engine      *QueryEngine
}

var _ lctools.Tool = (*QueryEngineTool)(nil)

func NewQueryEngineTool(key string, engine *QueryEngine) *QueryEngineTool {
	return &QueryEngineTool{
		key:         key,
		name:        ToolName(key),
		description: fmt.Sprintf(descriptionTemplate, DisplayName(key)),
		engine:      engine,
	}
}

func (t *QueryEngineTool) Name() string        { return t.name }
func (t *QueryEngineTool) Description() string { return t.description }
func (t *QueryEngineTool) Key() string         { return t.key }
func (t *QueryEngineTool) Engine() *QueryEngine {
	return t.engine
}

// Call answers input with the tool's query engine.
func (t *QueryEngineTool) Call(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", errors.New("tool input must be a non-empty question")
	}
	resp, err := t.engine.Query(ctx, input)
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// BuildTools returns one tool per index, ordered by key.
func BuildTools(indices map[string]vectorstores.VectorStore, chat *llm.ChatEngine, topK int) []*QueryEngineTool {
	keys := make([]string, 0, len(indices))
	for k := range indices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	built := make([]*QueryEngineTool, 0, len(keys))
	taken := make(map[string]bool, len(keys))
	for _, k := range keys {
		t := NewQueryEngineTool(k, NewQueryEngine(indices[k], chat, topK))
		// "a b" and "a_b" share a slug, as do long keys with a common prefix
		for n := 2; taken[t.name]; n++ {
			t.name = toolName(slug(k), fmt.Sprintf("_query_%d", n))
		}
		taken[t.name] = true
		built = append(built, t)
	}
	return built
}

// AsTools converts query engine tools to the generic langchaingo tool interface.
func AsTools(qts []*QueryEngineTool) []lctools.Tool {
	out := make([]lctools.Tool, len(qts))
	for i, t := range qts {
		out[i] = t
	}
	return out
}

// Find returns the tool built for key.
func Find(qts []*QueryEngineTool, key string) (*QueryEngineTool, bool) {
	for _, t := range qts {
		if t.key == key {
			return t, true
		}
	}
	return nil, false
}
