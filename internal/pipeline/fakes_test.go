package pipeline

import (
	"context"
	"image"
	"image/color"
	"io"
)

// fakeVideo is an in-memory VideoHandle producing n solid frames.
type fakeVideo struct {
	n       int
	w, h    int
	failAt  int
	pos     int
	closed  bool
	decoded int
}

func newFakeVideo(n, w, h int) *fakeVideo {
	return &fakeVideo{n: n, w: w, h: h, failAt: -1}
}

func (f *fakeVideo) Info() VideoInfo {
	return VideoInfo{TotalFrames: f.n, FrameRate: 25, Width: f.w, Height: f.h}
}

func (f *fakeVideo) ReadFrame() (*image.NRGBA, error) {
	if f.pos == f.failAt {
		return nil, io.ErrUnexpectedEOF
	}
	if f.pos >= f.n {
		return nil, io.EOF
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.w, f.h))
	shade := uint8(f.pos % 256)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: shade, G: 128, B: 255 - shade, A: 255})
		}
	}
	f.pos++
	f.decoded++
	return img, nil
}

func (f *fakeVideo) Close() error {
	f.closed = true
	return nil
}

type fakeOpener struct {
	video *fakeVideo
	err   error
}

func (o *fakeOpener) Open(ctx context.Context, path string) (VideoHandle, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.video, nil
}
