package handlers

import (
	"FrameForge/internal/enhance"
	"FrameForge/internal/pipeline"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Processor runs an uploaded video through extraction.
type Processor interface {
	ProcessUpload(ctx context.Context, file io.Reader, name string, params pipeline.Params) (*pipeline.Outcome, error)
}

// ProcessHandler handles video upload and extraction requests
type ProcessHandler struct {
	processor      Processor
	defaults       pipeline.Params
	maxUploadBytes int64
	logger         *zap.Logger
}

type imageResponse struct {
	Frame      int     `json:"frame"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	URL        string  `json:"url"`
}

type processResponse struct {
	BatchID         string          `json:"batch_id"`
	Extracted       int             `json:"extracted"`
	ProcessedFrames int             `json:"processed_frames"`
	IgnoredMethods  []string        `json:"ignored_methods,omitempty"`
	Images          []imageResponse `json:"images"`
}

func NewProcessHandler(processor Processor, defaults pipeline.Params, maxUploadBytes int64, logger *zap.Logger) *ProcessHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 500 << 20
	}
	return &ProcessHandler{
		processor:      processor,
		defaults:       defaults,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Handle runs the extraction synchronously and returns the batch summary.
func (h *ProcessHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Error("Failed to parse multipart form", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		h.logger.Error("Failed to read video file", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Failed to read video file")
		return
	}
	defer file.Close()

	params, ignored, err := h.parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(ignored) > 0 {
		h.logger.Warn("Ignoring unknown enhancement methods", zap.Strings("methods", ignored))
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.processor.ProcessUpload(r.Context(), file, header.Filename, params)
	if err != nil {
		if errors.Is(err, pipeline.ErrSourceUnreadable) {
			h.logger.Warn("Uploaded video unreadable", zap.String("filename", header.Filename), zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, "Video could not be read")
			return
		}
		h.logger.Error("Extraction failed", zap.String("filename", header.Filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Extraction failed")
		return
	}

	resp := processResponse{
		BatchID:         out.BatchID,
		Extracted:       len(out.Images),
		ProcessedFrames: out.Metadata.ProcessedFrames,
		IgnoredMethods:  ignored,
		Images:          make([]imageResponse, 0, len(out.Images)),
	}
	for _, img := range out.Images {
		resp.Images = append(resp.Images, imageResponse{
			Frame:      img.Frame,
			Name:       img.Name,
			Confidence: img.Confidence,
			URL:        fmt.Sprintf("/batches/%s/images/%s", out.BatchID, img.Name),
		})
	}

	writeJSON(w, http.StatusOK, resp)

	h.logger.Info("Extraction request completed",
		zap.String("batch_id", out.BatchID),
		zap.String("filename", header.Filename),
		zap.Int("extracted", len(out.Images)))
}

func (h *ProcessHandler) parseParams(r *http.Request) (pipeline.Params, []string, error) {
	params := pipeline.Params{
		FrameRate:           h.defaults.FrameRate,
		ConfidenceThreshold: h.defaults.ConfidenceThreshold,
		Methods:             h.defaults.Methods,
	}

	if v := r.FormValue("frame_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, nil, fmt.Errorf("invalid frame_rate: %q", v)
		}
		params.FrameRate = n
	}
	if v := r.FormValue("confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, nil, fmt.Errorf("invalid confidence: %q", v)
		}
		params.ConfidenceThreshold = f
	}

	var names []string
	for _, key := range []string{"method", "methods"} {
		for _, v := range r.MultipartForm.Value[key] {
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					names = append(names, name)
				}
			}
		}
	}
	if len(names) == 0 {
		return params, nil, nil
	}
	methods, ignored := enhance.ParseMethods(names)
	params.Methods = methods
	return params, ignored, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
