package fetcher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type FetcherConfig struct {
	CacheDir   string
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	OnProgress func(url string)
	Logger     *zap.Logger
}

// Fetcher downloads remote documents into a local cache directory so they can
// be loaded like any other file.
type Fetcher struct {
	config  FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config FetcherConfig) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.CacheDir == "" {
		config.CacheDir = "pdf"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}
}

// Fetch downloads rawURL unless it is already cached and returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid document URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	target := filepath.Join(f.config.CacheDir, cacheName(parsed))
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		f.logger.Debug("using cached document", zap.String("url", rawURL), zap.String("path", target))
		return target, nil
	}

	if f.config.OnProgress != nil {
		f.config.OnProgress(rawURL)
	}

	// Apply rate limiting
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	if err := os.MkdirAll(f.config.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(f.config.CacheDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", rawURL, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", rawURL, err)
	}

	f.logger.Info("downloaded document",
		zap.String("url", rawURL),
		zap.String("path", target),
		zap.Int64("bytes", n))
	return target, nil
}

// cacheName keeps the original base name so loaders can pick a format by
// extension, prefixed with a short hash of the full URL.
func cacheName(u *url.URL) string {
	sum := sha1.Sum([]byte(u.String()))
	prefix := hex.EncodeToString(sum[:])[:12]

	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		base = "index.html"
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)

	return prefix + "_" + base
}
