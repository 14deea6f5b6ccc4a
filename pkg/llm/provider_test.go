package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfagent/pkg/config"
	"github.com/xhad/pdfagent/pkg/llm"
)

func TestNewModelWithoutCredential(t *testing.T) {
	model, err := llm.NewModel(llm.ProviderConfig{Provider: "openai", Model: "gpt-4.1-nano"}, config.Credentials{})
	require.NoError(t, err)

	_, err = model.Call(context.Background(), "hello")
	assert.ErrorIs(t, err, llm.ErrMissingCredential)
}

func TestNewEmbedderWithoutCredential(t *testing.T) {
	emb, err := llm.NewEmbedder(llm.ProviderConfig{Provider: "openai"}, config.Credentials{})
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "hello")
	assert.ErrorContains(t, err, llm.ErrMissingCredential.Error())
}

func TestNewModelWithCredential(t *testing.T) {
	model, err := llm.NewModel(llm.ProviderConfig{
		Provider: "openai",
		Model:    "gpt-4.1-nano",
		BaseURL:  "http://localhost:1234/v1",
	}, config.Credentials{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, model)
}

func TestNewModelUnsupportedProvider(t *testing.T) {
	_, err := llm.NewModel(llm.ProviderConfig{Provider: "palm"}, config.Credentials{})
	assert.Error(t, err)

	_, err = llm.NewEmbedder(llm.ProviderConfig{Provider: "palm"}, config.Credentials{})
	assert.Error(t, err)
}
