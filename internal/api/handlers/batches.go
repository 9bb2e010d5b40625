package handlers

import (
	"FrameForge/internal/batch"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BatchReader is the read side of the batch store.
type BatchReader interface {
	ListBatches(ctx context.Context) ([]string, error)
	ReadMetadata(ctx context.Context, batchID string) (*batch.Metadata, error)
	ListImages(ctx context.Context, batchID string) ([]string, error)
	OpenImage(ctx context.Context, batchID, name string) (io.ReadCloser, error)
}

// BatchesHandler serves sealed batches and their images
type BatchesHandler struct {
	store  BatchReader
	logger *zap.Logger
}

func NewBatchesHandler(store BatchReader, logger *zap.Logger) *BatchesHandler {
	return &BatchesHandler{
		store:  store,
		logger: logger,
	}
}

// List returns sealed batch ids, most recent first
func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ListBatches(r.Context())
	if err != nil {
		h.logger.Error("Failed to list batches", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list batches")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batches": ids})
}

// Get returns the metadata of a sealed batch
func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meta, err := h.store.ReadMetadata(r.Context(), id)
	if err != nil {
		h.notFoundOr500(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// Images lists the image names of a batch in frame order
func (h *BatchesHandler) Images(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	names, err := h.store.ListImages(r.Context(), id)
	if err != nil {
		h.notFoundOr500(w, id, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batch_id": id, "images": names})
}

// Image streams one JPEG
func (h *BatchesHandler) Image(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	rc, err := h.store.OpenImage(r.Context(), id, name)
	if err != nil {
		h.notFoundOr500(w, id, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Failed to stream image", zap.String("batch_id", id), zap.String("name", name), zap.Error(err))
	}
}

func (h *BatchesHandler) notFoundOr500(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, batch.ErrBatchNotFound) || errors.Is(err, batch.ErrImageNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	h.logger.Error("Failed to read batch", zap.String("batch_id", id), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Failed to read batch")
}
