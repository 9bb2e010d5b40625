package pipeline

import (
	"FrameForge/internal/batch"
	"FrameForge/internal/detector"
	"FrameForge/internal/enhance"
	"FrameForge/internal/pipeline/storage"
	"FrameForge/internal/report"
	types "FrameForge/pkg"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// detectFunc adapts a function to detector.Detector.
type detectFunc func(img image.Image) (detector.Result, error)

func (f detectFunc) Name() string { return "func" }

func (f detectFunc) Detect(ctx context.Context, img image.Image) (detector.Result, error) {
	return f(img)
}

// frameOrdinal recovers the ordinal fakeVideo painted into the red channel.
func frameOrdinal(img image.Image) int {
	r, _, _, _ := img.At(0, 0).RGBA()
	return int(r >> 8)
}

func person(visibility float64) detector.Result {
	return detector.Result{Detected: true, Landmarks: []detector.Landmark{
		{X: 0.25, Y: 0.25, Visibility: visibility},
		{X: 0.75, Y: 0.75, Visibility: visibility},
	}}
}

type recordingSink struct {
	mu      sync.Mutex
	records []report.Record
	err     error
}

func (s *recordingSink) Record(ctx context.Context, rec report.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

// failingImages rejects every image write but lets metadata through.
type failingImages struct {
	storage.Storage
}

func (f failingImages) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	if strings.Contains(key, "frame_") {
		return errors.New("disk full")
	}
	return f.Storage.Upload(ctx, bucket, key, body)
}

// lostSealAck stores metadata.json but reports the first write as failed,
// like a store that times out after persisting the object.
type lostSealAck struct {
	storage.Storage
	failed bool
}

func (l *lostSealAck) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	if err := l.Storage.Upload(ctx, bucket, key, body); err != nil {
		return err
	}
	if strings.HasSuffix(key, batch.MetadataName) && !l.failed {
		l.failed = true
		return errors.New("connection reset")
	}
	return nil
}

type harness struct {
	extractor *Extractor
	store     *batch.Store
	sink      *recordingSink
	video     *fakeVideo
	opener    *fakeOpener
	tempDir   string
}

func newHarness(t *testing.T, det detector.Detector, wrap func(storage.Storage) storage.Storage) *harness {
	t.Helper()
	local, err := storage.NewLocalStorage(types.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	var st storage.Storage = local
	if wrap != nil {
		st = wrap(local)
	}

	logger := zap.NewNop()
	store := batch.NewStore(st, "", "extracted", logger)
	sink := &recordingSink{}
	video := newFakeVideo(100, 40, 30)
	opener := &fakeOpener{video: video}
	tempDir := t.TempDir()

	cfg := types.PipelineConfig{
		TempDir: tempDir,
		Retry:   types.RetryConfig{MaxAttempts: 1, InitialIntervalSec: 0.001, BackoffCoefficient: 2},
	}
	ex := NewExtractor(logger, opener, det, enhance.NewPipeline(logger, nil, 0), store, sink, cfg)
	return &harness{extractor: ex, store: store, sink: sink, video: video, opener: opener, tempDir: tempDir}
}

func defaultParams() Params {
	return Params{FrameRate: 10, ConfidenceThreshold: 0.5}
}

func TestExtractor_NoDetections(t *testing.T) {
	calls := 0
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		calls++
		return detector.NoDetection, nil
	}), nil)

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)

	assert.Empty(t, out.Images)
	assert.Equal(t, 10, calls)
	assert.Equal(t, 0, out.Metadata.ExtractedImages)
	assert.Equal(t, 100, out.Metadata.ProcessedFrames)
	assert.Equal(t, 10, out.Metadata.SampledFrames)
	assert.Equal(t, "clip.mp4", out.Metadata.VideoPath)
	assert.True(t, h.video.closed)

	ids, err := h.store.ListBatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{out.BatchID}, ids)

	meta, err := h.store.ReadMetadata(context.Background(), out.BatchID)
	require.NoError(t, err)
	assert.Equal(t, out.BatchID, meta.Timestamp)
	assert.Equal(t, 0, meta.ExtractedImages)

	require.Len(t, h.sink.records, 1)
	assert.Equal(t, report.StatusCompleted, h.sink.records[0].Status)
	assert.Equal(t, 100, h.sink.records[0].FrameCount)
}

func TestExtractor_AcceptedFramesAreStored(t *testing.T) {
	h := newHarness(t, detectFunc(func(img image.Image) (detector.Result, error) {
		switch frameOrdinal(img) {
		case 0, 20:
			return person(0.9), nil
		case 40:
			return person(0.5), nil // not strictly above threshold
		default:
			return person(0.1), nil
		}
	}), nil)

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)

	require.Len(t, out.Images, 2)
	assert.Equal(t, 0, out.Images[0].Frame)
	assert.Equal(t, 20, out.Images[1].Frame)
	assert.Equal(t, "frame_000020.jpg", out.Images[1].Name)
	assert.InDelta(t, 0.9, out.Images[0].Confidence, 1e-9)
	assert.Equal(t, CropRegion{XMin: 2, YMin: 1, XMax: 38, YMax: 28}, out.Images[0].Crop)
	assert.Equal(t, image.Rect(0, 0, 72, 54), out.Images[0].Image.Bounds())
	assert.NotEmpty(t, out.Images[0].Payload)

	names, err := h.store.ListImages(context.Background(), out.BatchID)
	require.NoError(t, err)
	assert.Equal(t, []string{"frame_000000.jpg", "frame_000020.jpg"}, names)
	assert.Equal(t, 2, out.Metadata.ExtractedImages)
}

func TestExtractor_SourceUnreadable(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), nil)
	h.opener.err = errors.New("moov atom not found")

	out, err := h.extractor.ProcessFile(context.Background(), "broken.mp4", defaultParams())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrSourceUnreadable)

	ids, err := h.store.ListBatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	partial, err := h.store.ListPartialBatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, partial)

	require.Len(t, h.sink.records, 1)
	assert.Equal(t, report.StatusFailed, h.sink.records[0].Status)
}

func TestExtractor_DetectorErrorSkipsFrame(t *testing.T) {
	h := newHarness(t, detectFunc(func(img image.Image) (detector.Result, error) {
		if frameOrdinal(img) == 10 {
			return detector.NoDetection, errors.New("inference timeout")
		}
		return person(0.8), nil
	}), nil)

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)
	assert.Len(t, out.Images, 9)
	for _, img := range out.Images {
		assert.NotEqual(t, 10, img.Frame)
	}
}

func TestExtractor_InvalidParams(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), nil)

	for _, p := range []Params{
		{FrameRate: 0, ConfidenceThreshold: 0.5},
		{FrameRate: 1, ConfidenceThreshold: 0},
		{FrameRate: 1, ConfidenceThreshold: 1.5},
	} {
		_, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", p)
		assert.Error(t, err)
	}
	assert.Equal(t, 0, h.video.decoded)
}

func TestExtractor_MidStreamDecodeErrorStillSeals(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return person(0.9), nil
	}), nil)
	h.video.failAt = 35

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)
	assert.Equal(t, 35, out.Metadata.ProcessedFrames)
	assert.Equal(t, 4, out.Metadata.SampledFrames)
	assert.Len(t, out.Images, 4)

	meta, err := h.store.ReadMetadata(context.Background(), out.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 4, meta.ExtractedImages)
}

func TestExtractor_FailedImageWriteIsExcluded(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return person(0.9), nil
	}), func(s storage.Storage) storage.Storage { return failingImages{s} })

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)
	assert.Empty(t, out.Images)
	assert.Equal(t, 0, out.Metadata.ExtractedImages)
}

func TestExtractor_SealRetryAfterLostAck(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), func(s storage.Storage) storage.Storage { return &lostSealAck{Storage: s} })
	h.extractor.retry.MaxAttempts = 3

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)

	meta, err := h.store.ReadMetadata(context.Background(), out.BatchID)
	require.NoError(t, err)
	assert.Equal(t, out.BatchID, meta.Timestamp)
	require.Len(t, h.sink.records, 1)
	assert.Equal(t, report.StatusCompleted, h.sink.records[0].Status)
}

func TestExtractor_EmptyResultEncodesAsEmptyList(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), nil)

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)
	require.NotNil(t, out.Images)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"images":[]`)
}

func TestExtractor_SinkErrorIsIgnored(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), nil)
	h.sink.err = errors.New("db unavailable")

	out, err := h.extractor.ProcessFile(context.Background(), "clip.mp4", defaultParams())
	require.NoError(t, err)
	assert.NotEmpty(t, out.BatchID)
}

func TestExtractor_ProcessUploadRemovesTempFile(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), nil)

	out, err := h.extractor.ProcessUpload(context.Background(), strings.NewReader("fake video bytes"), "holiday.mp4", defaultParams())
	require.NoError(t, err)
	assert.Equal(t, "holiday.mp4", out.Metadata.VideoPath)

	entries, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractor_ProcessUploadRemovesTempFileOnFailure(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), nil)
	h.opener.err = ErrSourceUnreadable

	_, err := h.extractor.ProcessUpload(context.Background(), strings.NewReader("junk"), "junk.mp4", defaultParams())
	assert.ErrorIs(t, err, ErrSourceUnreadable)

	entries, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractor_ArchiveSource(t *testing.T) {
	h := newHarness(t, detectFunc(func(image.Image) (detector.Result, error) {
		return detector.NoDetection, nil
	}), nil)
	h.extractor.archiveSource = true

	out, err := h.extractor.ProcessUpload(context.Background(), strings.NewReader("video"), "walk.mp4", defaultParams())
	require.NoError(t, err)
	assert.Equal(t, "uploads/video_"+out.BatchID+".mp4", out.Metadata.VideoPath)
}
