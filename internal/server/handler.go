// Package server exposes the lookup service over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/logger"
	"github.com/goccy/go-json"
)

// Lookup is satisfied by *lookup.Service.
type Lookup interface {
	Related(ctx context.Context, id string) (*post.RankedResult, lookup.Source, error)
	Invalidate(ctx context.Context, ids ...string) (int64, error)
	Stats() (hits, misses int64)
}

type Handler struct {
	lookup Lookup
	logger *slog.Logger
}

func New(l Lookup) *Handler {
	return &Handler{
		lookup: l,
		logger: slog.Default().With("component", "related-handler"),
	}
}

// Routes registers the API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/related/{id}", h.Related)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// relatedResponse is a RankedResult plus where it was served from.
type relatedResponse struct {
	ID      string        `json:"_id"`
	Tags    []string      `json:"tags"`
	Related []*post.Post  `json:"related"`
	Source  lookup.Source `json:"source"`
}

func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	id := r.PathValue("id")

	limit := -1
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	result, source, err := h.lookup.Related(ctx, id)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("related lookup failed", "id", id, "error", err)
		}
		h.writeError(w, status, publicMessage(err, status))
		return
	}

	related := result.Related
	if limit >= 0 && limit < len(related) {
		related = related[:limit]
	}
	if related == nil {
		related = []*post.Post{}
	}

	log.Debug("related lookup",
		"id", id,
		"source", source,
		"returned", len(related),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, relatedResponse{
		ID:      result.ID,
		Tags:    result.Tags,
		Related: related,
		Source:  source,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := h.lookup.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

type invalidateRequest struct {
	IDs []string `json:"ids"`
}

// CacheInvalidate drops the listed ids, or the whole cache for an empty body.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reading request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "body must be {\"ids\": [...]}")
			return
		}
	}

	deleted, err := h.lookup.Invalidate(r.Context(), req.IDs...)
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

func publicMessage(err error, status int) string {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) && status < http.StatusInternalServerError {
		return appErr.Message
	}
	switch status {
	case http.StatusServiceUnavailable:
		return "related posts temporarily unavailable"
	default:
		return "lookup failed"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
