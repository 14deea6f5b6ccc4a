package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/pdfagent/internal/models"
	"github.com/xhad/pdfagent/pkg/fetcher"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for files whose extension has no loader.
var ErrUnsupportedFormat = errors.New("unsupported document format")

type LoaderConfig struct {
	// Fetcher downloads remote sources; remote paths fail without it.
	Fetcher *fetcher.Fetcher
	Logger  *zap.Logger
}

// Loader turns a document path into page level records.
type Loader struct {
	fetcher *fetcher.Fetcher
	logger  *zap.Logger
}

func NewWithConfig(config LoaderConfig) *Loader {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		fetcher: config.Fetcher,
		logger:  logger,
	}
}

// Load reads the document at path and returns one record per page. Records
// carry the source filename, the document key and the page number.
func (l *Loader) Load(ctx context.Context, key, path string) ([]schema.Document, error) {
	if models.IsRemote(path) {
		if l.fetcher == nil {
			return nil, fmt.Errorf("remote document %s: no fetcher configured", path)
		}
		local, err := l.fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		path = local
	}

	var (
		pages []string
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		pages, err = readPDF(path)
	case ".html", ".htm":
		pages, err = readHTML(path)
	case ".txt", ".md":
		pages, err = readText(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	filename := filepath.Base(path)
	docs := make([]schema.Document, 0, len(pages))
	for i, text := range pages {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		page := i + 1
		docs = append(docs, schema.Document{
			PageContent: text,
			Metadata: map[string]any{
				models.MetaID:         fmt.Sprintf("%s#%d", filename, page),
				models.MetaSource:     filename,
				models.MetaDocument:   key,
				models.MetaPage:       page,
				models.MetaTotalPages: len(pages),
			},
		})
	}

	l.logger.Debug("loaded document",
		zap.String("key", key),
		zap.String("path", path),
		zap.Int("pages", len(pages)),
		zap.Int("records", len(docs)))

	return docs, nil
}

func readText(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{sanitizeUTF8(string(data))}, nil
}
