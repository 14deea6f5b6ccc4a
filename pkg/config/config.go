package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const DefaultTopK = 10

const DefaultSystemPrompt = "You are an agent designed to answer queries over a set of given documents. " +
	"Always use the tools provided to answer a question. Do not rely on prior knowledge."

const DefaultImagePrompt = "A watercolor painting of a lighthouse on a rocky coast at sunrise"

type Config struct {
	LLM struct {
		Provider       string  `yaml:"provider"`
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		Streaming      bool    `yaml:"streaming"`
	} `yaml:"llm"`

	Documents map[string]string `yaml:"documents"`

	Index struct {
		Backend      string `yaml:"backend"`
		TopK         int    `yaml:"top_k"`
		ChunkSize    int    `yaml:"chunk_size"`
		ChunkOverlap int    `yaml:"chunk_overlap"`
	} `yaml:"index"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Agent struct {
		SystemPrompt  string `yaml:"system_prompt"`
		MaxIterations int    `yaml:"max_iterations"`
	} `yaml:"agent"`

	Image struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		Size      string `yaml:"size"`
		OutputDir string `yaml:"output_dir"`
		Prompt    string `yaml:"prompt"`
	} `yaml:"image"`

	Chatbot struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"chatbot"`

	Fetch struct {
		RateLimit      float64 `yaml:"rate_limit"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		CacheDir       string  `yaml:"cache_dir"`
	} `yaml:"fetch"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/pdfagent/config.yaml"),
			"/etc/pdfagent/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.Model = "mistral"
		default:
			config.LLM.Model = "gpt-4.1-nano"
		}
	}
	if config.LLM.EmbeddingModel == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		default:
			config.LLM.EmbeddingModel = "text-embedding-3-small"
		}
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}

	if config.Documents == nil {
		config.Documents = map[string]string{}
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "memory"
	}
	if config.Index.TopK == 0 {
		config.Index.TopK = DefaultTopK
	}
	if config.Index.ChunkSize == 0 {
		config.Index.ChunkSize = 1024
	}
	if config.Index.ChunkOverlap == 0 {
		config.Index.ChunkOverlap = 20
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "pdf_nodes"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Agent.SystemPrompt == "" {
		config.Agent.SystemPrompt = DefaultSystemPrompt
	}
	if config.Agent.MaxIterations == 0 {
		config.Agent.MaxIterations = 5
	}

	if config.Image.Model == "" {
		config.Image.Model = "dall-e-3"
	}
	if config.Image.Size == "" {
		config.Image.Size = "1024x1024"
	}
	if config.Image.OutputDir == "" {
		config.Image.OutputDir = "image"
	}
	if config.Image.Prompt == "" {
		config.Image.Prompt = DefaultImagePrompt
	}

	if config.Chatbot.MaxAttempts == 0 {
		config.Chatbot.MaxAttempts = 3
	}

	if config.Fetch.RateLimit == 0 {
		config.Fetch.RateLimit = 2.0
	}
	if config.Fetch.TimeoutSeconds == 0 {
		config.Fetch.TimeoutSeconds = 60
	}
	if config.Fetch.CacheDir == "" {
		config.Fetch.CacheDir = "pdf"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	switch config.LLM.Provider {
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			config.LLM.BaseURL = baseURL
		}
	default:
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
