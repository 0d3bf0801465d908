package domain

import "context"

// EmbeddingResult carries a computed vector and provider token usage.
// TotalTokens is zero when the vector came from a cache.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into a fixed-length embedding.
// Implementations must be deterministic: the same text yields the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
