package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfagent/pkg/fetcher"
)

func TestFetchCachesDownload(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	var progress int32
	f := fetcher.NewWithConfig(fetcher.FetcherConfig{
		CacheDir:  dir,
		RateLimit: 100,
		OnProgress: func(string) {
			atomic.AddInt32(&progress, 1)
		},
	})

	path, err := f.Fetch(context.Background(), srv.URL+"/papers/attention.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_attention.pdf"))
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	again, err := f.Fetch(context.Background(), srv.URL+"/papers/attention.pdf")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&progress))
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := fetcher.NewWithConfig(fetcher.FetcherConfig{CacheDir: t.TempDir(), RateLimit: 100})

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.pdf")
	assert.ErrorContains(t, err, "status code 404")

	_, err = f.Fetch(context.Background(), "ftp://example.com/a.pdf")
	assert.ErrorContains(t, err, "unsupported URL scheme")
}
