package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/pdfagent/internal/testutil"
	"github.com/xhad/pdfagent/pkg/llm"
)

func TestNewWithConfig(t *testing.T) {
	model := &testutil.FakeModel{}

	engine, err := llm.NewWithConfig(llm.ChatConfig{Temperature: 0.5, MaxTokens: 1000}, model)
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	_, err = llm.NewWithConfig(llm.ChatConfig{Temperature: 3}, model)
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{MaxTokens: -1}, model)
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{}, nil)
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	model := &testutil.FakeModel{Responses: []*llms.ContentResponse{testutil.TextResponse("Socktastic")}}
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Temperature:    0.2,
		MaxTokens:      500,
		SystemTemplate: "Test system template",
	}, model)
	require.NoError(t, err)

	response, err := engine.Chat(context.Background(), "What would be a good company name for a company that makes colorful socks?")
	require.NoError(t, err)
	assert.Equal(t, "Socktastic", response)

	require.Len(t, model.Calls, 1)
	msgs := model.Calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.TextContent{Text: "Test system template"}, msgs[0].Parts[0])
	assert.Equal(t, 0.2, model.Options[0].Temperature)
	assert.Equal(t, 500, model.Options[0].MaxTokens)
}

func TestChatError(t *testing.T) {
	model := &testutil.FakeModel{Err: errors.New("boom")}
	engine, err := llm.NewWithConfig(llm.ChatConfig{}, model)
	require.NoError(t, err)

	_, err = engine.Chat(context.Background(), "hi")
	assert.ErrorContains(t, err, "boom")
}

func TestAnswerIncludesContext(t *testing.T) {
	model := &testutil.FakeModel{Responses: []*llms.ContentResponse{testutil.TextResponse("42")}}
	engine, err := llm.NewWithConfig(llm.ChatConfig{}, model)
	require.NoError(t, err)

	docs := []schema.Document{
		{PageContent: "The answer is 42.", Metadata: map[string]any{"source": "guide.pdf", "page": 3}},
	}

	answer, err := engine.Answer(context.Background(), "What is the answer?", docs)
	require.NoError(t, err)
	assert.Equal(t, "42", answer)

	human := model.Calls[0][1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, human, "Source: guide.pdf (page 3)")
	assert.Contains(t, human, "The answer is 42.")
	assert.Contains(t, human, "What is the answer?")
}

func TestChatStream(t *testing.T) {
	model := &testutil.FakeModel{Responses: []*llms.ContentResponse{testutil.TextResponse("streamed reply")}}
	engine, err := llm.NewWithConfig(llm.ChatConfig{}, model)
	require.NoError(t, err)

	stream, err := engine.ChatStream(context.Background(), "hello")
	require.NoError(t, err)

	var sb strings.Builder
	for chunk := range stream {
		sb.WriteString(chunk)
	}
	assert.Equal(t, "streamed reply", sb.String())
	assert.NotNil(t, model.Options[0].StreamingFunc)
}

func TestChatStreamError(t *testing.T) {
	model := &testutil.FakeModel{Err: errors.New("offline")}
	engine, err := llm.NewWithConfig(llm.ChatConfig{}, model)
	require.NoError(t, err)

	stream, err := engine.ChatStream(context.Background(), "hello")
	require.NoError(t, err)

	var chunks []string
	for chunk := range stream {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0], "Error:"))
}

func TestFormatSources(t *testing.T) {
	docs := []schema.Document{
		{Metadata: map[string]any{"source": "a.pdf", "page": 1}},
		{Metadata: map[string]any{"source": "a.pdf", "page": 1}},
		{Metadata: map[string]any{"source": "b.pdf", "page": 2}},
	}

	assert.Equal(t, "Sources:\na.pdf (page 1)\nb.pdf (page 2)", llm.FormatSources(docs))
	assert.Equal(t, "", llm.FormatSources(nil))
}
