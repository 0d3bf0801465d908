package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/triad-cloud/newsdex/internal/config"
	dbRedis "github.com/triad-cloud/newsdex/internal/db/redis"
	logpkg "github.com/triad-cloud/newsdex/internal/logger"
	"github.com/triad-cloud/newsdex/internal/metrics"
	documentrepo "github.com/triad-cloud/newsdex/internal/repository/document"
	"github.com/triad-cloud/newsdex/internal/repository/embcache"
	"github.com/triad-cloud/newsdex/internal/repository/resultcache"
	"github.com/triad-cloud/newsdex/internal/repository/userledger"
	chiTransport "github.com/triad-cloud/newsdex/internal/transport/chi"
	"github.com/triad-cloud/newsdex/internal/transport/hackernews"
	openaiEmb "github.com/triad-cloud/newsdex/internal/transport/openai"
	healthuc "github.com/triad-cloud/newsdex/internal/usecase/health"
	ingestuc "github.com/triad-cloud/newsdex/internal/usecase/ingest"
	searchuc "github.com/triad-cloud/newsdex/internal/usecase/search"
	"github.com/triad-cloud/newsdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting newsdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("feed_url", cfg.Feed.URL),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// Embedder chain: OpenAI -> Cached
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	// Provider reachability is a startup invariant: fail fast, not on the
	// first user query.
	if err := base.HealthCheck(ctx); err != nil {
		logger.Fatal("Embedding provider unreachable", zap.Error(err))
	}
	logger.Info("Embedding provider ready",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	embedder := embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)

	// Repositories
	docRepo := documentrepo.New(store, cfg.Embedding.Dimensions)
	if err := docRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	resCache := resultcache.New(
		store,
		time.Duration(cfg.Search.CacheTTLSec)*time.Second,
		metrics.SearchCacheTotal,
		logger,
	)
	ledger := userledger.New(store, userledger.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      time.Duration(cfg.RateLimit.WindowSec) * time.Second,
		CacheSize:   cfg.RateLimit.CacheSize,
		CacheTTL:    time.Duration(cfg.RateLimit.CacheTTLSec) * time.Second,
	}, logger)

	feed := hackernews.NewClient(cfg.Feed.URL, time.Duration(cfg.Feed.FetchTimeoutSec)*time.Second)

	// Use case services
	searchSvc := searchuc.New(ledger, resCache, embedder, docRepo)
	ingestSvc := ingestuc.New(feed, embedder, docRepo, ingestuc.Config{
		StartupItems: cfg.Ingest.StartupItems,
		CycleItems:   cfg.Ingest.CycleItems,
		Interval:     time.Duration(cfg.Ingest.IntervalSec) * time.Second,
	}, logger)
	healthSvc := healthuc.New(store, base)

	// Startup pass is synchronous: the server must not accept queries
	// against an empty index.
	inserted, err := ingestSvc.Bootstrap(ctx)
	if err != nil {
		logger.Fatal("Startup ingestion failed", zap.Error(err))
	}
	logger.Info("Startup ingestion complete", zap.Int("documents", inserted))

	// Periodic ingestion runs until shutdown
	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go ingestSvc.RunScheduled(schedCtx)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, ingestSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.CORSMiddleware())
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
