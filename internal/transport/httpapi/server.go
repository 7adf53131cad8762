package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"passage/internal/adapter/cache"
	"passage/internal/domain"
	"passage/internal/metrics"
	"passage/internal/port"
	"passage/internal/usecase"
)

// maxBulkQueries caps a single bulk search request.
const maxBulkQueries = 100

const (
	codeBadRequest    = "bad_request"
	codeEmptyQuery    = "empty_query_vector"
	codeNotFound      = "not_found"
	codeIndexNotFound = "index_not_found"
	codeInternal      = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes retrieval and document maintenance over HTTP.
type Server struct {
	retrieve      *usecase.RetrieveUseCase
	ingest        *usecase.IngestUseCase
	store         port.DocumentStore
	index         string
	strategy      string
	topK          int
	cache         *cache.QueryCache
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server. The strategy name labels search
// metrics; topK is the result size used when a request does not set one.
// qcache may be nil; when present it is dropped whenever a mutation
// changes what searches should return.
func NewServer(
	retrieve *usecase.RetrieveUseCase,
	ingest *usecase.IngestUseCase,
	store port.DocumentStore,
	index string,
	strategy string,
	topK int,
	qcache *cache.QueryCache,
	logger *zap.Logger,
) *Server {
	s := &Server{
		retrieve: retrieve,
		ingest:   ingest,
		store:    store,
		index:    index,
		strategy: strategy,
		topK:     topK,
		cache:    qcache,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyQueryVector, http.StatusBadRequest, codeEmptyQuery),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNoIndex, http.StatusNotFound, codeIndexNotFound),
	}
	return s
}

// Routes assembles the router with middleware and every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer())
	r.Use(chimiddleware.RequestID)
	r.Use(s.requestLogger())
	r.Use(metrics.Middleware())

	r.Post("/search", s.handleSearch)
	r.Post("/documents", s.handleUpload)
	r.Get("/documents/{id}", s.handleGetDocument)
	r.Delete("/documents/{id}", s.handleDeleteDocument)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type searchRequest struct {
	Query   string   `json:"query,omitempty"`
	Queries []string `json:"queries,omitempty"`
	TopK    int      `json:"top_k,omitempty"`
}

type searchHit struct {
	ID    int     `json:"id"`
	Title string  `json:"title,omitempty"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type searchResponse struct {
	Query string      `json:"query"`
	Hits  []searchHit `json:"hits"`
}

type bulkSearchResponse struct {
	Results []searchResponse `json:"results"`
}

// handleSearch handles POST /search. The body carries either a single
// query or an aligned batch of queries, never both.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	switch {
	case req.Query == "" && len(req.Queries) == 0:
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	case req.Query != "" && len(req.Queries) > 0:
		writeError(w, http.StatusBadRequest, codeBadRequest, "query and queries are mutually exclusive")
		return
	case len(req.Queries) > maxBulkQueries:
		writeError(w, http.StatusBadRequest, codeBadRequest,
			fmt.Sprintf("at most %d queries per request", maxBulkQueries))
		return
	}

	k := req.TopK
	if k <= 0 {
		k = s.topK
	}

	start := time.Now()
	if req.Query != "" {
		ranked, err := s.retrieve.Retrieve(r.Context(), req.Query, k)
		s.observeSearch(start, err)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, searchResponseFrom(req.Query, ranked))
		return
	}

	results, err := s.retrieve.BulkRetrieve(r.Context(), req.Queries, k)
	s.observeSearch(start, err)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := bulkSearchResponse{Results: make([]searchResponse, len(results))}
	for i, ranked := range results {
		resp.Results[i] = searchResponseFrom(req.Queries[i], ranked)
	}
	writeJSON(w, http.StatusOK, resp)
}

func searchResponseFrom(query string, ranked []domain.ScoredDocument) searchResponse {
	hits := make([]searchHit, len(ranked))
	for i, sd := range ranked {
		hits[i] = searchHit{
			ID:    sd.Document.ID,
			Title: sd.Document.Title,
			Text:  sd.Document.Text,
			Score: sd.Score,
		}
	}
	return searchResponse{Query: query, Hits: hits}
}

func (s *Server) observeSearch(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchesTotal.WithLabelValues(s.strategy, status).Inc()
	metrics.SearchDuration.WithLabelValues(s.strategy).Observe(time.Since(start).Seconds())
}

type uploadRequest struct {
	Documents []uploadDocument `json:"documents"`
}

type uploadDocument struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

type uploadResponse struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// handleUpload handles POST /documents, appending to the remote index.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "documents are required")
		return
	}
	for i, d := range req.Documents {
		if strings.TrimSpace(d.Text) == "" {
			writeError(w, http.StatusBadRequest, codeBadRequest,
				fmt.Sprintf("documents[%d]: text is required", i))
			return
		}
	}

	uploads := make([]usecase.Upload, len(req.Documents))
	for i, d := range req.Documents {
		uploads[i] = usecase.Upload{Title: d.Title, Text: d.Text}
	}

	res, err := s.ingest.Append(r.Context(), s.index, uploads, nil)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.invalidateCache()
	writeJSON(w, http.StatusCreated, uploadResponse{
		Indexed: res.Indexed,
		Skipped: res.Skipped,
		Total:   res.Total,
	})
}

// invalidateCache drops cached rankings after index contents change.
func (s *Server) invalidateCache() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

type documentResponse struct {
	ID    int    `json:"id"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// handleGetDocument handles GET /documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "document id must be an integer")
		return
	}

	doc, err := s.store.GetDocument(r.Context(), s.index, id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{
		ID:    id,
		Title: doc.Source.Title,
		Text:  doc.Source.DocumentText,
	})
}

// handleDeleteDocument handles DELETE /documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "document id must be an integer")
		return
	}

	if err := s.store.DeleteDocument(r.Context(), s.index, id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.invalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status    string `json:"status"`
	Documents *int   `json:"documents,omitempty"`
}

// handleHealth handles GET /healthz. The document endpoints need the
// remote store, so an unreachable backend reports the whole service
// unavailable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}

	resp := healthResponse{Status: "ok"}
	if n, err := s.store.Count(r.Context(), s.index); err == nil {
		resp.Documents = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQueryVector,
		domain.ErrNotFound,
		domain.ErrNoIndex,
		domain.ErrNoArtifacts,
		domain.ErrStaleArtifacts,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func (s *Server) recoverer() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					s.logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"))
					writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits a canonical log line per request and propagates X-Request-ID.
func (s *Server) requestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			s.logger.Info("http_request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()))
		})
	}
}
