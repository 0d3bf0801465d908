package document

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/triad-cloud/newsdex/internal/db"
	"github.com/triad-cloud/newsdex/internal/domain"
)

const (
	indexName = "newsdex_docs"
	keyPrefix = "newsdex:doc:"

	contentField = "__content"
	vectorField  = "__vector"
)

// store is the consumer interface for document storage (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig tunes the vector index build.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores headline documents as Redis hashes under an FT vector index.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a document repository for vectors of the given dimension.
func New(s store, vectorDim int) *Repo {
	return &Repo{store: s, vectorDim: vectorDim}
}

// WithHNSW overrides HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName, err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Text(contentField).
		VectorHNSW(vectorField, "vector", r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", indexName, err)
	}
	return nil
}

// Insert stores a document. The key is derived from the content hash, so
// re-ingesting an identical headline overwrites the same entry instead of
// accumulating duplicates.
func (r *Repo) Insert(ctx context.Context, doc domain.Document) error {
	if len(doc.Embedding) != r.vectorDim {
		return fmt.Errorf("embedding dimension %d, index expects %d", len(doc.Embedding), r.vectorDim)
	}

	id := doc.ID
	if id == "" {
		id = ContentID(doc.Content)
	}

	fields := map[string]string{
		contentField: doc.Content,
		vectorField:  vectorBlob(doc.Embedding),
	}
	if err := r.store.HSet(ctx, keyPrefix+id, fields); err != nil {
		return fmt.Errorf("store document %s: %w: %w", id, domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

// Has reports whether a document with this content is already stored.
func (r *Repo) Has(ctx context.Context, content string) (bool, error) {
	ok, err := r.store.Exists(ctx, keyPrefix+ContentID(content))
	if err != nil {
		return false, fmt.Errorf("check document: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return ok, nil
}

// SearchKNN returns up to topK documents ranked by similarity to the query
// vector, filtered to score >= threshold. An empty store or nothing above the
// threshold yields an empty slice, not an error.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, topK int, threshold float64) ([]domain.Result, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{contentField, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	results := make([]domain.Result, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Score < threshold {
			continue
		}
		results = append(results, domain.Result{
			Content: e.Fields[contentField],
			Score:   e.Score,
		})
	}
	return results, nil
}

// ContentID derives the document key suffix from its content hash.
func ContentID(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

func vectorBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
