package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/triad-cloud/newsdex/internal/domain"
	"github.com/triad-cloud/newsdex/internal/metrics"
)

// Pass labels for ingestion metrics and logs.
const (
	PassStartup = "startup"
	PassCycle   = "cycle"
	PassManual  = "manual"
)

// Config holds ingestion pass settings.
type Config struct {
	StartupItems int
	CycleItems   int
	Interval     time.Duration
}

// Service populates the document store from the headline feed.
type Service struct {
	feed   FeedFetcher
	embed  Embedder
	docs   DocumentWriter
	cfg    Config
	logger *zap.Logger
}

// New creates an ingestion service.
func New(feed FeedFetcher, embed Embedder, docs DocumentWriter, cfg Config, logger *zap.Logger) *Service {
	return &Service{feed: feed, embed: embed, docs: docs, cfg: cfg, logger: logger}
}

// Bootstrap runs the synchronous startup pass. Its failure propagates: the
// service must not become ready behind an empty index.
func (s *Service) Bootstrap(ctx context.Context) (int, error) {
	return s.RunOnce(ctx, s.cfg.StartupItems, PassStartup)
}

// Manual re-runs the startup-sized pass on operator demand.
func (s *Service) Manual(ctx context.Context) (int, error) {
	return s.RunOnce(ctx, s.cfg.StartupItems, PassManual)
}

// RunOnce fetches, embeds, and stores up to limit feed items.
func (s *Service) RunOnce(ctx context.Context, limit int, pass string) (int, error) {
	start := time.Now()

	items, err := s.feed.Fetch(ctx, limit)
	if err != nil {
		metrics.IngestFailuresTotal.WithLabelValues(pass).Inc()
		return 0, fmt.Errorf("fetch feed: %w", err)
	}

	inserted := 0
	skipped := 0
	for _, item := range items {
		content := item.Content()

		// Stored headlines are skipped before vectorization. The check
		// is best-effort; on a store error the item falls through.
		stored, err := s.docs.Has(ctx, content)
		if err != nil {
			s.logger.Warn("Existence check failed, re-embedding item",
				zap.String("title", item.Title), zap.Error(err))
		} else if stored {
			skipped++
			continue
		}

		emb, err := s.embed.Embed(ctx, content)
		if err != nil {
			metrics.IngestFailuresTotal.WithLabelValues(pass).Inc()
			return inserted, fmt.Errorf("embed %q: %w", item.Title, err)
		}

		doc := domain.Document{Content: content, Embedding: emb.Embedding}
		if err := s.docs.Insert(ctx, doc); err != nil {
			metrics.IngestFailuresTotal.WithLabelValues(pass).Inc()
			return inserted, fmt.Errorf("store %q: %w", item.Title, err)
		}
		inserted++
	}

	metrics.IngestDocumentsTotal.WithLabelValues(pass).Add(float64(inserted))
	metrics.IngestCycleDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("Ingestion pass completed",
		zap.String("pass", pass),
		zap.Int("documents", inserted),
		zap.Int("skipped", skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return inserted, nil
}

// RunScheduled performs background passes at the configured interval until
// ctx is cancelled. A failed cycle is logged and skipped; the loop never
// terminates on its own.
func (s *Service) RunScheduled(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Ingestion loop started", zap.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Ingestion loop stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, s.cfg.CycleItems, PassCycle); err != nil {
				s.logger.Error("Ingestion cycle failed, skipping until next interval", zap.Error(err))
			}
		}
	}
}
