package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/triad-cloud/newsdex/internal/domain"
	"github.com/triad-cloud/newsdex/internal/metrics"
	healthuc "github.com/triad-cloud/newsdex/internal/usecase/health"
	ingestuc "github.com/triad-cloud/newsdex/internal/usecase/ingest"
	searchuc "github.com/triad-cloud/newsdex/internal/usecase/search"
)

// ErrorCode identifies an error class in API responses.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeRateLimited         ErrorCode = "rate_limited"
	CodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	CodeEmbeddingProvider   ErrorCode = "embedding_provider_error"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type searchRequest struct {
	Text      string   `json:"text"`
	TopK      *int     `json:"top_k"`
	Threshold *float64 `json:"threshold"`
}

type searchResponse struct {
	Results []domain.Result `json:"results"`
	Total   int             `json:"total"`
}

type ingestResponse struct {
	Message   string `json:"message"`
	Documents int    `json:"documents"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search, ingest, and health operations over HTTP.
type Server struct {
	search        *searchuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search: search,
		ingest: ingest,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider),
	}
	return s
}

// Register mounts all routes on the given router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/ingest", s.handleIngest)
	})
}

// handleSearch handles POST /api/v1/search?user_id=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "user_id is required")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := 0
	if req.TopK != nil {
		topK = *req.TopK
	}
	threshold := domain.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	q, err := domain.NewQuery(req.Text, topK, threshold)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results, err := s.search.Search(r.Context(), userID, q)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			metrics.SearchDeniedTotal.Inc()
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: results, Total: len(results)})
}

// handleIngest handles POST /api/v1/ingest — the operator-facing manual pass.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	inserted, err := s.ingest.Manual(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Message:   "ingestion completed",
		Documents: inserted,
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrRateLimited,
		domain.ErrInvalidQuery,
		domain.ErrUpstreamUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
