package health

import "context"

// DBPinger checks database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker probes the embedding provider.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
