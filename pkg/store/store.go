package store

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/pdfagent/internal/types"
	"github.com/xhad/pdfagent/pkg/config"
)

// NewBuilder returns the index builder for the configured backend and a
// cleanup function releasing its resources.
func NewBuilder(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (types.IndexBuilder, func(), error) {
	switch cfg.Index.Backend {
	case "memory", "":
		return MemoryBuilder{Embedder: embedder, BatchSize: cfg.Database.BatchSize}, func() {}, nil
	case "pgvector":
		vs, err := NewWithConfig(ctx, VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
		}, embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		return vs, vs.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index backend: %s", cfg.Index.Backend)
	}
}
