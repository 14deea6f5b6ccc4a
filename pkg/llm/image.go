package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xhad/pdfagent/pkg/config"
)

const defaultImageHTTPTimeout = 120 * time.Second

// ImageConfig configures the image generation client.
type ImageConfig struct {
	// BaseURL defaults to the public OpenAI API.
	BaseURL    string
	Model      string
	Size       string
	HTTPClient *http.Client
}

// ImageClient calls an OpenAI compatible image generation endpoint.
type ImageClient struct {
	config ImageConfig
	client *openai.Client
}

func NewImageClient(cfg ImageConfig, creds config.Credentials) *ImageClient {
	clientConfig := openai.DefaultConfig(creds.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	} else {
		clientConfig.HTTPClient = &http.Client{Timeout: defaultImageHTTPTimeout}
	}

	return &ImageClient{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Generate requests one image for prompt and returns the decoded bytes.
func (c *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("image prompt must not be empty")
	}

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.config.Model,
		Size:           c.config.Size,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("image generation returned no image")
	}

	image, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return image, nil
}
