package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/vectorstore"
)

// adminHandler serves the indexing and maintenance endpoints.
type adminHandler struct {
	pipeline Pipeline
	indexer  ContentIndexer
	store    VectorAdmin
	logger   log.Logger
}

// indexDocumentRequest is the POST /api/v1/index/document body.
type indexDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *adminHandler) indexDocument(w http.ResponseWriter, r *http.Request) {
	var req indexDocumentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title_required", "title is required", h.logger)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content_required", "content is required", h.logger)
		return
	}

	chunks, sourceID, err := h.indexer.IndexDocument(r.Context(), req.Title, req.Content)
	if err != nil {
		h.logger.Error("indexing document", "error", err, "title", req.Title)
		writeError(w, http.StatusInternalServerError, "index_failed", "failed to index document", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"source_id": sourceID,
		"chunks":    chunks,
	}, h.logger)
}

// indexSource rebuilds one source type. The type is the last path segment,
// shared across the three typed index routes.
func (h *adminHandler) indexSource(w http.ResponseWriter, r *http.Request) {
	source := path.Base(r.URL.Path)

	var (
		indexed int
		err     error
	)
	switch source {
	case "schedules":
		indexed, err = h.indexer.IndexSchedules(r.Context())
	case "news":
		indexed, err = h.indexer.IndexNews(r.Context())
	case "announcements":
		indexed, err = h.indexer.IndexAnnouncements(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown_source", "unknown index source", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("indexing failed", "source", source, "error", err)
		writeError(w, http.StatusInternalServerError, "index_failed", "failed to index "+source, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source":  source,
		"indexed": indexed,
	}, h.logger)
}

func (h *adminHandler) reindex(w http.ResponseWriter, r *http.Request) {
	counts, err := h.indexer.ReindexAll(r.Context())
	if err != nil {
		h.logger.Error("full reindex failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reindex_failed", "reindex failed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, counts, h.logger)
}

func (h *adminHandler) stats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := h.pipeline.StoreStats(r.Context())
	if err != nil {
		h.logger.Error("reading store stats", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "failed to read store stats", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vectors": storeStats,
		"cache":   h.pipeline.CacheStats(),
	}, h.logger)
}

func (h *adminHandler) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.CacheStats(), h.logger)
}

func (h *adminHandler) clearCache(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	removed := h.pipeline.ClearCache(pattern)

	h.logger.Info("cache cleared", "pattern", pattern, "removed", removed)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed}, h.logger)
}

// deleteVectors removes embeddings. A source_type path segment narrows the
// scope to one type, a source_id query parameter to one source's chunks;
// without either everything goes.
func (h *adminHandler) deleteVectors(w http.ResponseWriter, r *http.Request) {
	sourceType := r.PathValue("source_type")
	sourceID := r.URL.Query().Get("source_id")

	if sourceType == "" && sourceID != "" {
		writeError(w, http.StatusBadRequest, "source_type_required", "source_id requires a source type in the path", h.logger)
		return
	}
	if sourceType != "" && !validSourceType(sourceType) {
		writeError(w, http.StatusBadRequest, "invalid_source_type", "unknown source type", h.logger)
		return
	}

	var (
		deleted int64
		err     error
	)
	switch {
	case sourceID != "":
		deleted, err = h.store.DeleteBySource(r.Context(), sourceType, sourceID)
	case sourceType != "":
		deleted, err = h.store.DeleteBySourceType(r.Context(), sourceType)
	default:
		deleted, err = h.store.DeleteAll(r.Context())
	}
	if err != nil {
		h.logger.Error("deleting vectors", "error", err, "source_type", sourceType, "source_id", sourceID)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete vectors", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted}, h.logger)
}

// validSourceType reports whether s is one of the indexable source types.
func validSourceType(s string) bool {
	switch s {
	case vectorstore.SourceTypeSchedule, vectorstore.SourceTypeNews,
		vectorstore.SourceTypeAnnouncement, vectorstore.SourceTypeDocument:
		return true
	}
	return false
}
