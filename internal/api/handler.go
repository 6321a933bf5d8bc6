// Package api exposes the metrics layer over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mikallon/datacore/internal/config"
	"github.com/mikallon/datacore/internal/domain"
	"github.com/mikallon/datacore/internal/middleware"
	"github.com/mikallon/datacore/internal/service/query"
)

// Handler serves the metrics API.
type Handler struct {
	queries *query.Service
	logger  *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(queries *query.Service, logger *slog.Logger) *Handler {
	return &Handler{queries: queries, logger: logger}
}

// NewRouter builds the chi router with the standard middleware stack.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: false,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", h.ListMetrics)
		r.Get("/semantic-model", h.SemanticModel)
		r.Get("/history", h.History)
		r.Post("/metrics/query", h.QueryMetric)
		r.Post("/metrics/query/natural", h.QueryNatural)
	})
	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListMetrics returns the metric catalog.
func (h *Handler) ListMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.ListMetrics())
}

// SemanticModel returns the active semantic model's measures and dimensions.
func (h *Handler) SemanticModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.SemanticModel())
}

// QueryMetric runs a pre-built structured query.
func (h *Handler) QueryMetric(w http.ResponseWriter, r *http.Request) {
	var q domain.MetricQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if q.MetricName == "" {
		writeError(w, http.StatusBadRequest, "metric_name is required")
		return
	}

	result, err := h.queries.QueryMetric(r.Context(), q)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// naturalQueryRequest is the natural-language query payload.
type naturalQueryRequest struct {
	Query  string `json:"query"`
	UseLLM bool   `json:"use_llm"`
}

// QueryNatural resolves and runs a natural-language question.
func (h *Handler) QueryNatural(w http.ResponseWriter, r *http.Request) {
	var req naturalQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.queries.QueryNatural(r.Context(), req.Query, req.UseLLM)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// History returns recent query audit records.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := h.queries.History(r.Context(), limit)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.As(err, new(*domain.NotFoundError)):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, new(*domain.ValidationError)):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, new(*domain.ConfigurationError)):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"code": status, "message": message})
}
