package report

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is what the orchestration layer persists about one invocation.
type Record struct {
	BatchID        string        `json:"batch_id"`
	VideoRef       string        `json:"video_ref"`
	FrameCount     int           `json:"frame_count"`
	ExtractedCount int           `json:"extracted_count"`
	Status         Status        `json:"status"`
	ProcessingTime time.Duration `json:"-"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ProcessingSeconds is the processing time as stored and published.
func (r Record) ProcessingSeconds() float64 {
	return r.ProcessingTime.Seconds()
}

// Sink receives one Record per invocation. Callers log and ignore errors;
// a sink failure never affects the batch.
type Sink interface {
	Record(ctx context.Context, rec Record) error
	Close() error
}

type NopSink struct{}

func (NopSink) Record(context.Context, Record) error { return nil }
func (NopSink) Close() error                         { return nil }

// MultiSink fans a record out to every sink and joins their errors.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewMultiSink(logger *zap.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

func (m *MultiSink) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
