package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/pdfagent/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore keeps the indices of all documents in one pgvector table,
// partitioned by document key.
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder embeddings.Embedder) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "pdf_nodes"
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			source TEXT,
			content TEXT,
			embedding vector(%d),
			metadata JSONB,
			PRIMARY KEY (collection, id)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Collection returns the index of one document.
func (vs *VectorStore) Collection(name string) *Collection {
	return &Collection{store: vs, name: name}
}

// Build replaces the rows of key with docs so every run starts from the
// records loaded in that run.
func (vs *VectorStore) Build(ctx context.Context, key string, docs []schema.Document) (vectorstores.VectorStore, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrEmptyIndex)
	}
	col := vs.Collection(key)
	if err := col.Reset(ctx); err != nil {
		return nil, err
	}
	if _, err := col.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return col, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// Collection is a vectorstores.VectorStore scoped to one document key.
type Collection struct {
	store *VectorStore
	name  string
}

var _ vectorstores.VectorStore = (*Collection)(nil)

func (c *Collection) Reset(ctx context.Context) error {
	_, err := c.store.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE collection = $1", c.store.config.TableName), c.name)
	if err != nil {
		return fmt.Errorf("failed to reset collection %s: %w", c.name, err)
	}
	return nil
}

func (c *Collection) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	options := c.options(opts)
	vs := c.store

	stmt := fmt.Sprintf(`
		INSERT INTO %s (collection, id, source, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.TableName)

	ids := make([]string, 0, len(docs))

	for start := 0; start < len(docs); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = sanitizeUTF8(doc.PageContent)
		}

		vectors, err := options.Embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}

		tx, err := vs.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		for i, doc := range batch {
			id, _ := doc.Metadata[models.MetaID].(string)
			if id == "" {
				id = fmt.Sprintf("%d", start+i)
			}
			source, _ := doc.Metadata[models.MetaSource].(string)

			_, err = tx.Exec(ctx, stmt,
				c.name,
				id,
				source,
				texts[i],
				pgvector.NewVector(vectors[i]),
				doc.Metadata,
			)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, fmt.Errorf("failed to insert document: %w", err)
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return ids, nil
}

func (c *Collection) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, fmt.Errorf("number of documents must be positive, got %d", numDocuments)
	}
	options := c.options(opts)

	queryEmbedding, err := options.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE collection = $2 AND ($3::float8 <= 0 OR 1 - (embedding <=> $1) >= $3::float8)
		ORDER BY embedding <=> $1
		LIMIT $4`,
		c.store.config.TableName)

	rows, err := c.store.pool.Query(ctx, sql,
		pgvector.NewVector(queryEmbedding), c.name, float64(options.ScoreThreshold), numDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var (
			doc   schema.Document
			score float64
		)
		if err := rows.Scan(&doc.PageContent, &doc.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.Score = float32(score)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return docs, nil
}

func (c *Collection) options(opts []vectorstores.Option) vectorstores.Options {
	options := vectorstores.Options{Embedder: c.store.embedder}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
