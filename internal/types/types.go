package types

import (
	"context"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/vectorstores"
)

// Core interfaces
type Loader interface {
	Load(ctx context.Context, key, path string) ([]schema.Document, error)
}

type Splitter interface {
	Split(docs []schema.Document) []schema.Document
}

// IndexBuilder creates one vector index for the records of a single document.
type IndexBuilder interface {
	Build(ctx context.Context, key string, docs []schema.Document) (vectorstores.VectorStore, error)
}

// ToolRouter hands a query and a tool set to a hosted model which decides
// which tools to call and synthesizes the final answer.
type ToolRouter interface {
	SelectAndInvoke(ctx context.Context, query string, toolset []tools.Tool) (string, error)
}
