package loader_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfagent/internal/testutil"
	"github.com/xhad/pdfagent/pkg/fetcher"
	"github.com/xhad/pdfagent/pkg/loader"
)

func TestLoadPDFOneRecordPerPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdf", "handbook.pdf")
	testutil.WritePDF(t, path, "Vacation policy allows twenty days", "Expense reports are due monthly")

	l := loader.NewWithConfig(loader.LoaderConfig{})
	docs, err := l.Load(context.Background(), "handbook", path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Contains(t, docs[0].PageContent, "Vacation policy")
	assert.Contains(t, docs[1].PageContent, "Expense reports")

	assert.Equal(t, "handbook.pdf", docs[0].Metadata["source"])
	assert.Equal(t, "handbook", docs[0].Metadata["document"])
	assert.Equal(t, 1, docs[0].Metadata["page"])
	assert.Equal(t, 2, docs[1].Metadata["page"])
	assert.Equal(t, 2, docs[1].Metadata["total_pages"])
	assert.Equal(t, "handbook.pdf#2", docs[1].Metadata["id"])
}

func TestLoadCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	l := loader.NewWithConfig(loader.LoaderConfig{})
	_, err := l.Load(context.Background(), "broken", path)
	assert.Error(t, err)
}

func TestLoadHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.html")
	html := `<html><head><title>Guide</title><script>var x = 1;</script></head>
<body>
<nav>Home | About</nav>
<main>
<h1>Install</h1>
<p>Run   the installer.</p>
</main>
</body></html>`
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))

	l := loader.NewWithConfig(loader.LoaderConfig{})
	docs, err := l.Load(context.Background(), "guide", path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "Guide\n\nInstall Run the installer.", docs[0].PageContent)
	assert.NotContains(t, docs[0].PageContent, "Home | About")
}

func TestLoadTextAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("plain notes"), 0o644))

	l := loader.NewWithConfig(loader.LoaderConfig{})
	docs, err := l.Load(context.Background(), "notes", txt)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plain notes", docs[0].PageContent)

	_, err = l.Load(context.Background(), "sheet", filepath.Join(dir, "data.xlsx"))
	assert.ErrorIs(t, err, loader.ErrUnsupportedFormat)
}

func TestLoadRemote(t *testing.T) {
	src := filepath.Join(t.TempDir(), "remote.pdf")
	testutil.WritePDF(t, src, "Remote page text")
	data, err := os.ReadFile(src)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := loader.NewWithConfig(loader.LoaderConfig{
		Fetcher: fetcher.NewWithConfig(fetcher.FetcherConfig{CacheDir: t.TempDir(), RateLimit: 100}),
	})
	docs, err := l.Load(context.Background(), "remote", srv.URL+"/files/remote.pdf")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "Remote page text")

	noFetch := loader.NewWithConfig(loader.LoaderConfig{})
	_, err = noFetch.Load(context.Background(), "remote", srv.URL+"/files/remote.pdf")
	assert.Error(t, err)
}
