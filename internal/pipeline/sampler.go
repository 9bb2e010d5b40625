package pipeline

import (
	"errors"
	"fmt"
	"image"
	"io"
)

// SampledFrame is a decoded frame chosen by the sampler. Ordinal is the
// 0-based index of the frame in the original stream.
type SampledFrame struct {
	Ordinal int
	Image   *image.NRGBA
}

// Sampler yields every stride-th frame of a video handle in stream order,
// starting at frame 0. Every frame is decoded to advance the position. A
// Sampler is not restartable.
type Sampler struct {
	handle VideoHandle
	stride int
	pos    int
	done   bool
}

func NewSampler(handle VideoHandle, stride int) (*Sampler, error) {
	if stride < 1 {
		return nil, fmt.Errorf("frame stride must be >= 1, got %d", stride)
	}
	return &Sampler{handle: handle, stride: stride}, nil
}

// Next returns the next sampled frame, or io.EOF when the stream is exhausted.
func (s *Sampler) Next() (*SampledFrame, error) {
	for !s.done {
		img, err := s.handle.ReadFrame()
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("decode failed after frame %d: %w", s.pos, err)
		}
		ordinal := s.pos
		s.pos++
		if ordinal%s.stride == 0 {
			return &SampledFrame{Ordinal: ordinal, Image: img}, nil
		}
	}
	return nil, io.EOF
}

// Seen is the number of frames decoded so far.
func (s *Sampler) Seen() int {
	return s.pos
}
