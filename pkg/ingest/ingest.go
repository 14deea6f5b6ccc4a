// Package ingest turns a configured document set into one vector index per
// document. A document that is missing or fails to load or index is logged
// and left out of every result map; the remaining documents still go through.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/pdfagent/internal/models"
	"github.com/xhad/pdfagent/internal/types"
	"go.uber.org/zap"
)

// ErrNotFound marks a document whose file does not exist.
var ErrNotFound = errors.New("document file not found")

type Stage string

const (
	StageLoading  Stage = "loading"
	StageIndexing Stage = "indexing"
	StageDone     Stage = "done"
	StageSkipped  Stage = "skipped"
)

type PipelineConfig struct {
	Loader   types.Loader
	Splitter types.Splitter // optional
	Builder  types.IndexBuilder
	Logger   *zap.Logger
	// OnProgress is called as each document moves through the stages.
	OnProgress func(key string, stage Stage)
}

type Pipeline struct {
	config PipelineConfig
	logger *zap.Logger
}

// Result holds the documents that loaded and indexed successfully. Documents
// and Indices always have the same keys.
type Result struct {
	Documents map[string][]schema.Document
	Indices   map[string]vectorstores.VectorStore
	Skipped   map[string]error
}

func NewWithConfig(config PipelineConfig) (*Pipeline, error) {
	if config.Loader == nil {
		return nil, errors.New("loader is required")
	}
	if config.Builder == nil {
		return nil, errors.New("index builder is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{config: config, logger: logger}, nil
}

// Run ingests every entry of set in key order. The returned error is only
// non-nil when ctx is cancelled; per document failures end up in Skipped.
func (p *Pipeline) Run(ctx context.Context, set models.DocumentSet) (*Result, error) {
	result := &Result{
		Documents: make(map[string][]schema.Document),
		Indices:   make(map[string]vectorstores.VectorStore),
		Skipped:   make(map[string]error),
	}

	for _, src := range set.Sources() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		docs, index, err := p.ingest(ctx, src)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Skipped[src.Key] = err
			p.progress(src.Key, StageSkipped)
			continue
		}

		result.Documents[src.Key] = docs
		result.Indices[src.Key] = index
		p.progress(src.Key, StageDone)
	}

	p.logger.Info("ingestion finished",
		zap.Int("indexed", len(result.Indices)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, src models.Source) ([]schema.Document, vectorstores.VectorStore, error) {
	log := p.logger.With(zap.String("key", src.Key), zap.String("path", src.Path))

	if !src.IsRemote() {
		if _, err := os.Stat(src.Path); err != nil {
			log.Warn("document file not found, skipping")
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, src.Path)
		}
	}

	p.progress(src.Key, StageLoading)
	docs, err := p.config.Loader.Load(ctx, src.Key, src.Path)
	if err != nil {
		log.Warn("failed to load document, skipping", zap.Error(err))
		return nil, nil, fmt.Errorf("failed to load %s: %w", src.Key, err)
	}

	nodes := docs
	if p.config.Splitter != nil {
		nodes = p.config.Splitter.Split(docs)
	}

	p.progress(src.Key, StageIndexing)
	index, err := p.config.Builder.Build(ctx, src.Key, nodes)
	if err != nil {
		log.Warn("failed to build index, skipping", zap.Error(err))
		return nil, nil, fmt.Errorf("failed to index %s: %w", src.Key, err)
	}

	log.Info("document indexed", zap.Int("pages", len(docs)), zap.Int("nodes", len(nodes)))
	return docs, index, nil
}

func (p *Pipeline) progress(key string, stage Stage) {
	if p.config.OnProgress != nil {
		p.config.OnProgress(key, stage)
	}
}
