package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/pdfagent/internal/models"
)

// ErrEmptyIndex is returned when an index would be built from no records.
var ErrEmptyIndex = errors.New("no records to index")

// MemoryStore is a brute force cosine similarity index held in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	embedder  embeddings.Embedder
	batchSize int
	docs      []schema.Document
	vectors   [][]float32
}

var _ vectorstores.VectorStore = (*MemoryStore)(nil)

func NewMemoryStore(embedder embeddings.Embedder, batchSize int) *MemoryStore {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &MemoryStore{embedder: embedder, batchSize: batchSize}
}

// Len returns the number of indexed records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryStore) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	options := s.options(opts)
	if options.Embedder == nil {
		return nil, errors.New("memory store: embedder is required")
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}

	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		batch, err := options.Embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id, _ := doc.Metadata[models.MetaID].(string)
		if id == "" {
			id = fmt.Sprintf("%d", len(s.docs))
		}
		ids[i] = id
		s.docs = append(s.docs, doc)
		s.vectors = append(s.vectors, vectors[i])
	}
	return ids, nil
}

// SimilaritySearch returns at most numDocuments records ordered by
// descending cosine similarity, with Score set.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, fmt.Errorf("number of documents must be positive, got %d", numDocuments)
	}
	options := s.options(opts)
	if options.Embedder == nil {
		return nil, errors.New("memory store: embedder is required")
	}

	queryVector, err := options.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		idx   int
		score float32
	}
	hits := make([]hit, 0, len(s.vectors))
	for i, v := range s.vectors {
		score := cosine(queryVector, v)
		if options.ScoreThreshold > 0 && score < options.ScoreThreshold {
			continue
		}
		hits = append(hits, hit{idx: i, score: score})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})
	if len(hits) > numDocuments {
		hits = hits[:numDocuments]
	}

	results := make([]schema.Document, 0, len(hits))
	for _, h := range hits {
		doc := s.docs[h.idx]
		doc.Score = h.score
		results = append(results, doc)
	}
	return results, nil
}

func (s *MemoryStore) options(opts []vectorstores.Option) vectorstores.Options {
	options := vectorstores.Options{Embedder: s.embedder}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// MemoryBuilder builds a fresh MemoryStore per document.
type MemoryBuilder struct {
	Embedder  embeddings.Embedder
	BatchSize int
}

func (b MemoryBuilder) Build(ctx context.Context, key string, docs []schema.Document) (vectorstores.VectorStore, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrEmptyIndex)
	}
	s := NewMemoryStore(b.Embedder, b.BatchSize)
	if _, err := s.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return s, nil
}
