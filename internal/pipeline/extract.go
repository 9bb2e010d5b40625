package pipeline

import (
	"FrameForge/internal/batch"
	"FrameForge/internal/detector"
	"FrameForge/internal/enhance"
	"FrameForge/internal/metrics"
	"FrameForge/internal/report"
	types "FrameForge/pkg"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Params are the per-invocation knobs of an extraction.
type Params struct {
	FrameRate           int              `json:"frame_rate"`
	ConfidenceThreshold float64          `json:"confidence_threshold"`
	Methods             []enhance.Method `json:"methods"`
}

func (p Params) Validate() error {
	if p.FrameRate < 1 {
		return fmt.Errorf("frame_rate must be >= 1, got %d", p.FrameRate)
	}
	if p.ConfidenceThreshold <= 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0, 1], got %v", p.ConfidenceThreshold)
	}
	return nil
}

// ExtractedImage is one accepted, enhanced and stored crop.
type ExtractedImage struct {
	BatchID    string       `json:"batch_id"`
	Frame      int          `json:"frame"`
	Name       string       `json:"name"`
	Image      *image.NRGBA `json:"-"`
	Payload    []byte       `json:"-"`
	Confidence float64      `json:"confidence"`
	Crop       CropRegion   `json:"crop"`
}

// Outcome is the result of a completed invocation. An empty Images slice is
// a valid, sealed batch.
type Outcome struct {
	BatchID  string           `json:"batch_id"`
	Images   []ExtractedImage `json:"images"`
	Metadata batch.Metadata   `json:"metadata"`
}

// Extractor runs the sample, detect, crop, enhance and store pipeline over
// one video at a time. Frames are processed sequentially in stream order.
type Extractor struct {
	logger        *zap.Logger
	opener        VideoOpener
	detector      detector.Detector
	enhancer      *enhance.Pipeline
	store         *batch.Store
	sink          report.Sink
	retry         types.RetryConfig
	padding       float64
	archiveSource bool
	tempDir       string
}

func NewExtractor(
	logger *zap.Logger,
	opener VideoOpener,
	det detector.Detector,
	enhancer *enhance.Pipeline,
	store *batch.Store,
	sink report.Sink,
	cfg types.PipelineConfig,
) *Extractor {
	if sink == nil {
		sink = report.NopSink{}
	}
	padding := cfg.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	return &Extractor{
		logger:        logger,
		opener:        opener,
		detector:      det,
		enhancer:      enhancer,
		store:         store,
		sink:          sink,
		retry:         cfg.Retry,
		padding:       padding,
		archiveSource: cfg.ArchiveSource,
		tempDir:       cfg.TempDir,
	}
}

// ProcessFile extracts humans from the video at path into a new batch.
func (e *Extractor) ProcessFile(ctx context.Context, path string, params Params) (*Outcome, error) {
	return e.process(ctx, path, path, params)
}

func (e *Extractor) process(ctx context.Context, path, videoRef string, params Params) (*Outcome, error) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "Extractor.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("video.ref", videoRef),
		attribute.Int("params.frame_rate", params.FrameRate),
		attribute.Float64("params.confidence_threshold", params.ConfidenceThreshold),
	)

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	metrics.ActiveExtractions.Inc()
	defer metrics.ActiveExtractions.Dec()

	handle, err := e.opener.Open(ctx, path)
	if err != nil {
		if !errors.Is(err, ErrSourceUnreadable) {
			err = fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
		}
		e.logger.Error("Failed to open video", zap.String("video", videoRef), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "source unreadable")
		e.finish(ctx, report.Record{VideoRef: videoRef, Status: report.StatusFailed, Error: err.Error()}, start)
		return nil, err
	}
	defer handle.Close()

	// Once a batch exists it runs to completion; caller cancellation is not
	// observed mid-batch.
	ctx = context.WithoutCancel(ctx)

	b, err := e.store.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	span.SetAttributes(attribute.String("batch.id", b.ID))

	if e.archiveSource {
		if key, err := e.archive(ctx, b.ID, path); err != nil {
			e.logger.Warn("Failed to archive source video", zap.String("batch_id", b.ID), zap.Error(err))
		} else {
			videoRef = key
		}
	}

	info := handle.Info()
	sampler, err := NewSampler(handle, params.FrameRate)
	if err != nil {
		return nil, err
	}
	gate := detector.NewGate(e.detector, params.ConfidenceThreshold, e.logger)

	e.logger.Info("Starting extraction",
		zap.String("batch_id", b.ID),
		zap.String("video", videoRef),
		zap.Int("total_frames", info.TotalFrames),
		zap.Int("frame_rate", params.FrameRate),
		zap.Float64("confidence_threshold", params.ConfidenceThreshold),
		zap.Strings("methods", enhance.Names(params.Methods)))

	images := make([]ExtractedImage, 0)
	sampled := 0
	for {
		frame, err := sampler.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.logger.Warn("Decoding stopped early", zap.String("batch_id", b.ID), zap.Int("frames_seen", sampler.Seen()), zap.Error(err))
			metrics.FrameFailuresTotal.WithLabelValues("decode").Inc()
			break
		}
		sampled++
		metrics.FramesSampledTotal.Inc()

		if img, ok := e.processFrame(ctx, gate, b, frame, params.Methods); ok {
			images = append(images, img)
		}
	}
	metrics.FramesDecodedTotal.Add(float64(sampler.Seen()))

	totalFrames := info.TotalFrames
	if totalFrames <= 0 {
		totalFrames = sampler.Seen()
	}
	meta := batch.Metadata{
		VideoPath:           videoRef,
		Timestamp:           b.ID,
		FrameRate:           params.FrameRate,
		ConfidenceThreshold: params.ConfidenceThreshold,
		TotalFrames:         totalFrames,
		ProcessedFrames:     sampler.Seen(),
		SampledFrames:       sampled,
		ExtractedImages:     len(images),
		Methods:             enhance.Names(params.Methods),
		CreatedAt:           b.CreatedAt,
	}

	attempt := 0
	err = Retry(ctx, e.logger, e.retry, fmt.Sprintf("seal batch %s", b.ID), func() error {
		attempt++
		err := b.Seal(ctx, meta)
		// A failed attempt may still have stored metadata.json.
		if attempt > 1 && errors.Is(err, batch.ErrAlreadySealed) {
			e.logger.Warn("Metadata already stored by an earlier attempt", zap.String("batch_id", b.ID))
			return nil
		}
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed to seal batch %s: %w", b.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "seal failed")
		e.finish(ctx, report.Record{
			BatchID: b.ID, VideoRef: videoRef, FrameCount: sampler.Seen(),
			ExtractedCount: len(images), Status: report.StatusFailed, Error: err.Error(),
		}, start)
		return nil, err
	}

	span.SetAttributes(attribute.Int("batch.extracted", len(images)), attribute.Int("batch.processed_frames", sampler.Seen()))
	e.logger.Info("Extraction completed",
		zap.String("batch_id", b.ID),
		zap.Int("processed_frames", sampler.Seen()),
		zap.Int("sampled_frames", sampled),
		zap.Int("extracted_images", len(images)),
		zap.Duration("duration", time.Since(start)))

	e.finish(ctx, report.Record{
		BatchID: b.ID, VideoRef: videoRef, FrameCount: sampler.Seen(),
		ExtractedCount: len(images), Status: report.StatusCompleted,
	}, start)

	return &Outcome{BatchID: b.ID, Images: images, Metadata: meta}, nil
}

// processFrame returns the stored image for an accepted frame. Every
// per-frame failure is logged and skips only this frame.
func (e *Extractor) processFrame(ctx context.Context, gate *detector.Gate, b *batch.Batch, frame *SampledFrame, methods []enhance.Method) (ExtractedImage, bool) {
	log := e.logger.With(zap.String("batch_id", b.ID), zap.Int("frame", frame.Ordinal))

	detectStart := time.Now()
	verdict := gate.Evaluate(ctx, frame.Image)
	metrics.ProcessingDuration.WithLabelValues("detect").Observe(time.Since(detectStart).Seconds())
	if verdict.Err != nil {
		metrics.FrameFailuresTotal.WithLabelValues("detect").Inc()
		return ExtractedImage{}, false
	}
	if !verdict.Accepted {
		return ExtractedImage{}, false
	}

	bounds := frame.Image.Bounds()
	region, ok := ComputeCropRegion(verdict.Result.Landmarks, bounds.Dx(), bounds.Dy(), e.padding)
	if !ok {
		log.Debug("Skipping frame with empty crop")
		return ExtractedImage{}, false
	}
	crop := imaging.Crop(frame.Image, region.Rect().Add(bounds.Min))

	enhanceStart := time.Now()
	res := e.enhancer.Apply(crop, methods)
	if res.Err != nil {
		log.Warn("Enhancement failed", zap.Error(res.Err))
		metrics.FrameFailuresTotal.WithLabelValues("enhance").Inc()
		return ExtractedImage{}, false
	}
	final := e.enhancer.Finalize(res.Image)
	payload, err := e.enhancer.Encode(final)
	metrics.ProcessingDuration.WithLabelValues("enhance").Observe(time.Since(enhanceStart).Seconds())
	if err != nil {
		log.Warn("Encoding failed", zap.Error(err))
		metrics.FrameFailuresTotal.WithLabelValues("encode").Inc()
		return ExtractedImage{}, false
	}

	var name string
	err = Retry(ctx, e.logger, e.retry, fmt.Sprintf("write frame %d", frame.Ordinal), func() error {
		var werr error
		name, werr = b.WriteImage(ctx, frame.Ordinal, payload)
		return werr
	})
	if err != nil {
		log.Warn("Failed to store image", zap.Error(err))
		metrics.FrameFailuresTotal.WithLabelValues("write").Inc()
		return ExtractedImage{}, false
	}
	metrics.ImagesExtractedTotal.Inc()

	log.Debug("Extracted image", zap.String("name", name), zap.Float64("confidence", verdict.Confidence))
	return ExtractedImage{
		BatchID:    b.ID,
		Frame:      frame.Ordinal,
		Name:       name,
		Image:      final,
		Payload:    payload,
		Confidence: verdict.Confidence,
		Crop:       region,
	}, true
}

func (e *Extractor) archive(ctx context.Context, batchID, path string) (string, error) {
	var key string
	err := Retry(ctx, e.logger, e.retry, fmt.Sprintf("archive %s", path), func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		key, err = e.store.ArchiveSource(ctx, batchID, filepath.Ext(path), f)
		return err
	})
	return key, err
}

// finish reports the invocation to the sink. Sink errors never fail the
// invocation.
func (e *Extractor) finish(ctx context.Context, rec report.Record, start time.Time) {
	rec.ProcessingTime = time.Since(start)
	rec.CreatedAt = time.Now()
	metrics.VideosProcessedTotal.WithLabelValues(string(rec.Status)).Inc()
	metrics.ProcessingDuration.WithLabelValues("total").Observe(rec.ProcessingTime.Seconds())

	if err := e.sink.Record(ctx, rec); err != nil {
		e.logger.Warn("Failed to record video", zap.String("batch_id", rec.BatchID), zap.Error(err))
	}
}
