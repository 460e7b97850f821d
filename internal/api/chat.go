package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/vhoang/troly/internal/llm"
	"github.com/vhoang/troly/internal/log"
	"github.com/vhoang/troly/internal/rag"
)

// maxQuestionRunes bounds a single question. Longer inputs are almost always
// pasted documents, which belong on the index endpoint.
const maxQuestionRunes = 2000

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// chatRequest is the POST /api/v1/chat body.
type chatRequest struct {
	Question   string        `json:"question"`
	SourceType string        `json:"source_type,omitempty"`
	History    []llm.Message `json:"history,omitempty"`
	SessionID  string        `json:"session_id,omitempty"`
}

// chatHandler serves question answering requests.
type chatHandler struct {
	pipeline Pipeline
	logger   log.Logger
}

func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
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

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question_required", "question is required", h.logger)
		return
	}
	if utf8.RuneCountInString(req.Question) > maxQuestionRunes {
		writeError(w, http.StatusBadRequest, "question_too_long", "question exceeds 2000 characters", h.logger)
		return
	}
	if req.SourceType != "" && !validSourceType(req.SourceType) {
		writeError(w, http.StatusBadRequest, "invalid_source_type", "unknown source type", h.logger)
		return
	}

	resp := h.pipeline.Query(r.Context(), rag.QueryRequest{
		Question:   req.Question,
		SourceType: req.SourceType,
		History:    req.History,
		SessionID:  req.SessionID,
	})

	writeJSON(w, http.StatusOK, resp, h.logger)
}
