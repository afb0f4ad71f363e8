package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	logpkg "github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
	healthuc "github.com/kailas-cloud/docchat/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/docchat/internal/usecase/session"
	"github.com/kailas-cloud/docchat/internal/version"
)

const (
	headerEmbeddingTokens  = "X-Embedding-Tokens"
	headerGenerationTokens = "X-Generation-Tokens"

	// statusClientClosedRequest is the de facto status for requests the client abandoned.
	statusClientClosedRequest = 499

	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
	uploadField           = "files"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes conversation sessions over HTTP.
type Server struct {
	sessions       *sessionuc.Service
	health         *healthuc.Service
	logger         *zap.Logger
	maxUploadBytes int64
	metrics        http.Handler
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes <= 0 selects a 32 MiB limit.
func NewServer(
	sessions *sessionuc.Service,
	health *healthuc.Service,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		sessions:       sessions,
		health:         health,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		metrics:        promhttp.Handler(),
	}
	s.errorHandlers = []errorHandler{
		extractionErrorHandler,
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorCodeSessionNotFound),
		sentinelHandler(domain.ErrTooManySessions, http.StatusTooManyRequests, ErrorCodeTooManySessions),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrChunking, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNoIndex, http.StatusConflict, ErrorCodeNoDocuments),
		sentinelHandler(domain.ErrEmptyIndex, http.StatusConflict, ErrorCodeEmptyIndex),
		sentinelHandler(domain.ErrBusy, http.StatusConflict, ErrorCodeSessionBusy),
		sentinelHandler(domain.ErrExternalServiceTimeout, http.StatusGatewayTimeout, ErrorCodeUpstreamTimeout),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrLanguageModel, http.StatusBadGateway, ErrorCodeLanguageModel),
		sentinelHandler(context.Canceled, statusClientClosedRequest, ErrorCodeClientClosed),
	}
	return s
}

// Router builds the HTTP handler with the full middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/documents", s.UploadDocuments)
			r.Post("/ask", s.Ask)
			r.Get("/history", s.GetHistory)
			r.Delete("/history/pending", s.DiscardPending)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Create(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+info.ID)
	writeJSON(w, http.StatusCreated, sessionToAPI(info))
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionToAPI(info))
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadDocuments handles POST /sessions/{id}/documents.
//
// Multipart bodies may carry several "files" parts. Any other content type is taken as a
// single document whose name comes from the "name" query parameter.
func (s *Server) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	raws, err := s.readUploads(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeValidationFailed,
				fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	stats, err := s.sessions.Ingest(ctx, chi.URLParam(r, "id"), raws)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Documents: stats.Documents,
		Pages:     stats.Pages,
		Chunks:    stats.Chunks,
	})
}

func (s *Server) readUploads(r *http.Request) ([]document.Raw, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return []document.Raw{{Name: r.URL.Query().Get("name"), Data: data}}, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		return nil, fmt.Errorf("no %q parts in form", uploadField)
	}

	raws := make([]document.Raw, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		raws = append(raws, document.Raw{Name: fh.Filename, Data: data})
	}
	return raws, nil
}

// Ask handles POST /sessions/{id}/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "question is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.sessions.Ask(ctx, chi.URLParam(r, "id"), req.Question)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:  ans.Text,
		History: messagesToAPI(ans.History),
		Sources: sourcesToAPI(ans.Sources),
	})
}

// GetHistory handles GET /sessions/{id}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.sessions.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Messages: messagesToAPI(msgs),
		Pending:  len(msgs)%2 == 1,
	})
}

// DiscardPending handles DELETE /sessions/{id}/history/pending.
func (s *Server) DiscardPending(w http.ResponseWriter, r *http.Request) {
	removed, err := s.sessions.DiscardPending(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DiscardResponse{Removed: removed})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage == nil {
		return
	}
	if n := usage.EmbeddingTokens(); n > 0 {
		w.Header().Set(headerEmbeddingTokens, strconv.FormatInt(n, 10))
	}
	if n := usage.GenerationTokens(); n > 0 {
		w.Header().Set(headerGenerationTokens, strconv.FormatInt(n, 10))
	}
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

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSessionNotFound,
		domain.ErrTooManySessions,
		domain.ErrInvalidRequest,
		domain.ErrChunking,
		domain.ErrExtraction,
		domain.ErrNoIndex,
		domain.ErrEmptyIndex,
		domain.ErrBusy,
		domain.ErrExternalServiceTimeout,
		domain.ErrEmbeddingProvider,
		domain.ErrLanguageModel,
		context.Canceled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// extractionErrorHandler reports which document could not be read.
func extractionErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrExtraction) {
		return false
	}
	resp := ErrorResponse{Code: ErrorCodeExtractionFailed, Message: msg}
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		resp.Document = ee.DocumentID
		resp.Message = ee.Reason
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))

	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
