package handlers

import (
	"context"
	"net/http"
	"strconv"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/middleware"
	"flashquiz-backend/internal/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type historyLister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.StudyHistoryEntry, int, error)
}

type progressReader interface {
	Get(ctx context.Context, userID string) (*models.StudyProgress, error)
}

type HistoryHandler struct {
	history  historyLister
	progress progressReader
	log      *logger.Logger
}

func NewHistoryHandler(history historyLister, progress progressReader, log *logger.Logger) *HistoryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &HistoryHandler{history: history, progress: progress, log: log}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{"limit": "must be a positive integer"}, r))
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", map[string]string{"offset": "must be zero or more"}, r))
			return
		}
		offset = n
	}

	entries, total, err := h.history.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error("failed to list study history", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch history", r))
		return
	}
	if entries == nil {
		entries = []*models.StudyHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *HistoryHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	p, err := h.progress.Get(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to load study progress", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch progress", r))
		return
	}
	writeJSON(w, http.StatusOK, p)
}
