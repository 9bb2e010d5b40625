package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VideosProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frameforge_videos_processed_total",
		Help: "Total number of videos processed, by status",
	}, []string{"status"})

	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frameforge_processing_duration_seconds",
		Help:    "Duration of extraction stages",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frameforge_frames_decoded_total",
		Help: "Total number of frames decoded across all videos",
	})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frameforge_frames_sampled_total",
		Help: "Total number of frames handed to the detector",
	})

	ImagesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frameforge_images_extracted_total",
		Help: "Total number of images written to batches",
	})

	FrameFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frameforge_frame_failures_total",
		Help: "Per-frame failures that were skipped, by stage",
	}, []string{"stage"})

	ActiveExtractions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "frameforge_active_extractions",
		Help: "Number of extractions currently running",
	})
)
