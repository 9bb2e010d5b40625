package handlers

import (
	"FrameForge/internal/report"
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryReader returns recent processing records, newest first.
type HistoryReader interface {
	History(ctx context.Context, limit int) ([]report.Record, error)
}

// HistoryHandler serves the processing history recorded by the database sink
type HistoryHandler struct {
	history HistoryReader
	logger  *zap.Logger
}

func NewHistoryHandler(history HistoryReader, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

type historyEntry struct {
	report.Record
	ProcessingSeconds float64 `json:"processing_time"`
}

// List handles GET /videos?limit=N
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read processing history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{Record: rec, ProcessingSeconds: rec.ProcessingSeconds()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": entries})
}
