package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var imageSizePattern = regexp.MustCompile(`^\d+x\d+$`)

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// LLM
	if c.LLM.Provider != "openai" && c.LLM.Provider != "ollama" {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 16384 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 16384",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Documents
	for key, path := range c.Documents {
		if strings.TrimSpace(key) == "" {
			errors = append(errors, ValidationError{
				Field:   "documents",
				Message: "document key must not be empty",
			})
		}
		if strings.TrimSpace(path) == "" {
			errors = append(errors, ValidationError{
				Field:   "documents." + key,
				Message: "document path must not be empty",
			})
		}
	}

	// Index
	if c.Index.Backend != "memory" && c.Index.Backend != "pgvector" {
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unsupported index backend: %s", c.Index.Backend),
		})
	}

	if c.Index.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Index.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "index.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Database
	if c.Index.Backend == "pgvector" {
		if c.Database.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "database URL is required for the pgvector backend",
			})
		} else if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Agent
	if c.Agent.MaxIterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "agent.max_iterations",
			Message: "max_iterations must be positive",
		})
	}

	// Image
	if !imageSizePattern.MatchString(c.Image.Size) {
		errors = append(errors, ValidationError{
			Field:   "image.size",
			Message: fmt.Sprintf("invalid image size: %s", c.Image.Size),
		})
	}

	// Chatbot
	if c.Chatbot.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "chatbot.max_attempts",
			Message: "max_attempts must be positive",
		})
	}

	// Fetch
	if c.Fetch.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetch.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	return errors
}
