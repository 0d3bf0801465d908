package search

import (
	"context"
	"fmt"

	"github.com/triad-cloud/newsdex/internal/domain"
)

// Service orchestrates a single search request:
// admission -> record -> cache lookup -> (embed, knn, cache write) -> respond.
type Service struct {
	ledger Admitter
	cache  ResultCache
	embed  Embedder
	docs   DocumentSearcher
}

// New creates a search service.
func New(ledger Admitter, cache ResultCache, embed Embedder, docs DocumentSearcher) *Service {
	return &Service{ledger: ledger, cache: cache, embed: embed, docs: docs}
}

// Search executes one query on behalf of userID.
//
// The request is recorded against the user's ledger unconditionally after
// admission — a later cache hit or failure still counts. A cache hit
// short-circuits both embedding and the store query. A request either fully
// succeeds or fails with a distinguishable error; an empty result always
// means "no matches above threshold", never a swallowed failure.
func (s *Service) Search(ctx context.Context, userID string, q domain.Query) ([]domain.Result, error) {
	if err := s.ledger.Admit(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.ledger.Record(ctx, userID); err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, q); ok {
		return cached, nil
	}

	emb, err := s.embed.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.docs.SearchKNN(ctx, emb.Embedding, q.TopK, q.Threshold)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if results == nil {
		results = []domain.Result{}
	}

	s.cache.Put(ctx, q, results)
	return results, nil
}
