// Package app wires configuration, hosted model clients, ingestion and tools
// into a ready to query application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/xhad/pdfagent/internal/models"
	"github.com/xhad/pdfagent/pkg/agent"
	"github.com/xhad/pdfagent/pkg/config"
	"github.com/xhad/pdfagent/pkg/fetcher"
	"github.com/xhad/pdfagent/pkg/ingest"
	"github.com/xhad/pdfagent/pkg/llm"
	"github.com/xhad/pdfagent/pkg/loader"
	"github.com/xhad/pdfagent/pkg/processor"
	"github.com/xhad/pdfagent/pkg/store"
	"github.com/xhad/pdfagent/pkg/tools"
)

type Options struct {
	Config      *config.Config
	Credentials config.Credentials
	Logger      *zap.Logger

	// Model and Embedder override the configured provider clients.
	Model    llms.Model
	Embedder embeddings.Embedder

	OnProgress      func(key string, stage ingest.Stage)
	OnFetchProgress func(url string)
}

// App holds everything built once per run. It is read-only after Bootstrap
// and safe to share between sessions.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Model  llms.Model
	Chat   *llm.ChatEngine
	Result *ingest.Result
	Tools  []*tools.QueryEngineTool

	cleanup func()
}

// Bootstrap ingests the configured documents and builds one tool per index.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pc := llm.ProviderConfigFrom(cfg)
	model := opts.Model
	if model == nil {
		m, err := llm.NewModel(pc, opts.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize model: %w", err)
		}
		model = m
	}
	embedder := opts.Embedder
	if embedder == nil {
		e, err := llm.NewEmbedder(pc, opts.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = e
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	builder, cleanup, err := store.NewBuilder(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}

	pipeline, err := ingest.NewWithConfig(ingest.PipelineConfig{
		Loader: loader.NewWithConfig(loader.LoaderConfig{
			Fetcher: fetcher.NewWithConfig(fetcher.FetcherConfig{
				CacheDir:   cfg.Fetch.CacheDir,
				RateLimit:  cfg.Fetch.RateLimit,
				Timeout:    time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
				OnProgress: opts.OnFetchProgress,
				Logger:     logger,
			}),
			Logger: logger,
		}),
		Splitter: processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize:    cfg.Index.ChunkSize,
			ChunkOverlap: cfg.Index.ChunkOverlap,
		}),
		Builder:    builder,
		Logger:     logger,
		OnProgress: opts.OnProgress,
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	result, err := pipeline.Run(ctx, models.DocumentSet(cfg.Documents))
	if err != nil {
		cleanup()
		return nil, err
	}

	built := tools.BuildTools(result.Indices, chat, cfg.Index.TopK)
	logger.Info("documents ready",
		zap.Int("indexed", len(result.Indices)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("tools", len(built)))

	return &App{
		Config:  cfg,
		Logger:  logger,
		Model:   model,
		Chat:    chat,
		Result:  result,
		Tools:   built,
		cleanup: cleanup,
	}, nil
}

// NewAgent returns a fresh agent over the shared tools. onToolCall may be nil.
func (a *App) NewAgent(onToolCall func(name, input string)) (*agent.Agent, error) {
	return agent.New(a.Model, tools.AsTools(a.Tools), agent.Options{
		SystemPrompt:  a.Config.Agent.SystemPrompt,
		MaxIterations: a.Config.Agent.MaxIterations,
		CallOptions:   a.Chat.CallOptions(),
		Logger:        a.Logger,
		OnToolCall:    onToolCall,
	})
}

// Tool returns the tool built for a document key.
func (a *App) Tool(key string) (*tools.QueryEngineTool, bool) {
	return tools.Find(a.Tools, key)
}

func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
