package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const APIKeyEnv = "OPENAI_API_KEY"

// Credentials carries the hosted API key to the clients that need it.
type Credentials struct {
	APIKey string
}

func (c Credentials) Empty() bool {
	return c.APIKey == ""
}

// LoadCredentials reads the API key from envFile, falling back to the process
// environment. A missing key only produces a warning; the process environment
// is never modified.
func LoadCredentials(envFile string, logger *zap.Logger) Credentials {
	if logger == nil {
		logger = zap.NewNop()
	}

	if envFile == "" {
		envFile = ".env"
	}

	values, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to read env file", zap.String("path", envFile), zap.Error(err))
	}

	key := strings.TrimSpace(values[APIKeyEnv])
	if key == "" {
		key = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}

	if key == "" {
		logger.Warn("API key not found, hosted model calls will likely fail",
			zap.String("variable", APIKeyEnv),
			zap.String("env_file", envFile))
	}

	return Credentials{APIKey: key}
}
