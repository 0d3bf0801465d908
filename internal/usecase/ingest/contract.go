package ingest

import (
	"context"

	"github.com/triad-cloud/newsdex/internal/domain"
)

// FeedFetcher downloads and extracts headline items from the source feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, limit int) ([]domain.FeedItem, error)
}

// Embedder vectorizes document content.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DocumentWriter stores embedded documents.
type DocumentWriter interface {
	Has(ctx context.Context, content string) (bool, error)
	Insert(ctx context.Context, doc domain.Document) error
}
