package store_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/pdfagent/internal/testutil"
	"github.com/xhad/pdfagent/pkg/store"
)

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	url := os.Getenv("PDFAGENT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PDFAGENT_TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: url,
		TableName:  "test_pdf_nodes",
		VectorDim:  64,
	}
}

func TestVectorStore(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()

	s, err := store.NewWithConfig(ctx, config, testutil.HashEmbedder{Dim: 64})
	require.NoError(t, err)
	defer s.Close()

	docs := []schema.Document{
		{PageContent: "This is chunk 1 about llamas", Metadata: map[string]any{"id": "a.pdf#1", "source": "a.pdf"}},
		{PageContent: "This is chunk 2 about alpacas", Metadata: map[string]any{"id": "a.pdf#2", "source": "a.pdf"}},
	}

	idx, err := s.Build(ctx, "animals", docs)
	require.NoError(t, err)

	// rebuilding replaces rows instead of accumulating them
	idx, err = s.Build(ctx, "animals", docs)
	require.NoError(t, err)

	results, err := idx.SimilaritySearch(ctx, "llamas", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.pdf", results[0].Metadata["source"])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	other, err := s.Collection("other").SimilaritySearch(ctx, "llamas", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

// compassEmbedder points "south" texts the opposite way of everything else.
type compassEmbedder struct{}

func (e compassEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.EmbedQuery(ctx, text)
	}
	return out, nil
}

func (compassEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	v[0] = 1
	if strings.Contains(text, "south") {
		v[0] = -1
	}
	return v, nil
}

func TestVectorStoreKeepsNegativeScores(t *testing.T) {
	config := getTestConfig(t)
	config.TableName = "test_pdf_nodes_signed"
	ctx := context.Background()

	s, err := store.NewWithConfig(ctx, config, compassEmbedder{})
	require.NoError(t, err)
	defer s.Close()

	idx, err := s.Build(ctx, "compass", []schema.Document{
		{PageContent: "heading north", Metadata: map[string]any{"id": "c.pdf#1"}},
		{PageContent: "heading south", Metadata: map[string]any{"id": "c.pdf#2"}},
	})
	require.NoError(t, err)

	results, err := idx.SimilaritySearch(ctx, "north", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "heading north", results[0].PageContent)
	assert.Less(t, results[1].Score, float32(0))

	results, err = idx.SimilaritySearch(ctx, "north", 10, vectorstores.WithScoreThreshold(0.5))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestVectorStoreRejectsBadTableName(t *testing.T) {
	_, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{TableName: "docs; drop"}, testutil.HashEmbedder{})
	assert.Error(t, err)
}
