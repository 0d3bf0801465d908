package domain

import "errors"

var (
	// ErrRateLimited signals that admission control denied the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidQuery signals a malformed search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUpstreamUnavailable signals an unreachable store, cache, or feed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
