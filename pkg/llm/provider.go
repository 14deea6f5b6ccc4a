package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/pdfagent/pkg/config"
)

// ErrMissingCredential is returned by every call of a model built without an API key.
var ErrMissingCredential = errors.New("hosted model API key is not configured")

// ProviderConfig selects the hosted model behind the langchaingo interfaces.
type ProviderConfig struct {
	Provider       string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

func ProviderConfigFrom(cfg *config.Config) ProviderConfig {
	return ProviderConfig{
		Provider:       cfg.LLM.Provider,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	}
}

// NewModel creates the completion model. An OpenAI model without a key is
// still returned so startup can continue; its calls fail with ErrMissingCredential.
func NewModel(pc ProviderConfig, creds config.Credentials) (llms.Model, error) {
	switch pc.Provider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(pc.Model), ollama.WithServerURL(pc.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return llm, nil
	case "openai", "":
		if creds.Empty() {
			return unavailableModel{}, nil
		}
		llm, err := openai.New(openAIOptions(pc, creds, pc.Model)...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", pc.Provider)
	}
}

// NewEmbedder creates the embedder used to build and query the vector indices.
func NewEmbedder(pc ProviderConfig, creds config.Credentials) (embeddings.Embedder, error) {
	var client embeddings.EmbedderClient

	switch pc.Provider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(pc.EmbeddingModel), ollama.WithServerURL(pc.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		client = llm
	case "openai", "":
		if creds.Empty() {
			client = unavailableModel{}
			break
		}
		llm, err := openai.New(openAIOptions(pc, creds, pc.Model)...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported provider: %s", pc.Provider)
	}

	emb, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return emb, nil
}

func openAIOptions(pc ProviderConfig, creds config.Credentials, model string) []openai.Option {
	opts := []openai.Option{
		openai.WithToken(creds.APIKey),
		openai.WithModel(model),
	}
	if pc.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(pc.EmbeddingModel))
	}
	if pc.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(pc.BaseURL))
	}
	return opts
}

// unavailableModel stands in for a hosted client that could not be configured.
type unavailableModel struct{}

func (unavailableModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, ErrMissingCredential
}

func (unavailableModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", ErrMissingCredential
}

func (unavailableModel) CreateEmbedding(context.Context, []string) ([][]float32, error) {
	return nil, ErrMissingCredential
}
