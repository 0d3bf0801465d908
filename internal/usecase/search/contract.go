package search

import (
	"context"

	"github.com/triad-cloud/newsdex/internal/domain"
)

// Admitter gates and records requests per user identity.
type Admitter interface {
	Admit(ctx context.Context, userID string) error
	Record(ctx context.Context, userID string) error
}

// ResultCache memoizes search results by query parameters.
type ResultCache interface {
	Get(ctx context.Context, q domain.Query) ([]domain.Result, bool)
	Put(ctx context.Context, q domain.Query, results []domain.Result)
}

// Embedder vectorizes query text into an embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DocumentSearcher runs threshold/top-k similarity search over the store.
type DocumentSearcher interface {
	SearchKNN(ctx context.Context, vector []float32, topK int, threshold float64) ([]domain.Result, error)
}
