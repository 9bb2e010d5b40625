package pipeline

import (
	"FrameForge/pkg/ffmpeg"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"go.uber.org/zap"
)

// ErrSourceUnreadable is returned when a video cannot be opened or probed.
// No batch is created in that case.
var ErrSourceUnreadable = errors.New("source video unreadable")

type VideoInfo struct {
	TotalFrames int     `json:"total_frames"`
	FrameRate   float64 `json:"frame_rate"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// VideoHandle is an open, forward-only decode session. It is owned by a
// single invocation and must be closed on every exit path.
type VideoHandle interface {
	Info() VideoInfo
	// ReadFrame decodes the next frame, returning io.EOF after the last one.
	ReadFrame() (*image.NRGBA, error)
	Close() error
}

type VideoOpener interface {
	Open(ctx context.Context, path string) (VideoHandle, error)
}

// FFmpegOpener decodes videos by piping ffmpeg rawvideo output.
type FFmpegOpener struct {
	ff     *ffmpeg.FFmpeg
	logger *zap.Logger
}

func NewFFmpegOpener(ff *ffmpeg.FFmpeg, logger *zap.Logger) *FFmpegOpener {
	return &FFmpegOpener{ff: ff, logger: logger}
}

func (o *FFmpegOpener) Open(ctx context.Context, path string) (VideoHandle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	probe, err := o.ff.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	// The decode session runs to completion even if the caller's context is
	// cancelled; a batch is never abandoned half way.
	stream, err := o.ff.DecodeRaw(context.WithoutCancel(ctx), path, probe.Width, probe.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	o.logger.Info("Opened video",
		zap.String("path", path),
		zap.Int("width", probe.Width),
		zap.Int("height", probe.Height),
		zap.Int("total_frames", probe.TotalFrames),
		zap.Float64("frame_rate", probe.FrameRate))

	return &ffmpegHandle{
		info: VideoInfo{
			TotalFrames: probe.TotalFrames,
			FrameRate:   probe.FrameRate,
			Width:       probe.Width,
			Height:      probe.Height,
		},
		stream: stream,
		buf:    make([]byte, stream.FrameSize()),
	}, nil
}

type ffmpegHandle struct {
	info   VideoInfo
	stream *ffmpeg.RawStream
	buf    []byte
}

func (h *ffmpegHandle) Info() VideoInfo {
	return h.info
}

func (h *ffmpegHandle) ReadFrame() (*image.NRGBA, error) {
	if err := h.stream.ReadFrame(h.buf); err != nil {
		return nil, err
	}
	return rgb24ToNRGBA(h.buf, h.info.Width, h.info.Height), nil
}

func (h *ffmpegHandle) Close() error {
	return h.stream.Close()
}

func rgb24ToNRGBA(buf []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(buf) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
