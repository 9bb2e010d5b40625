package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

type FFmpeg struct {
	pathToBinary string
	pathToProbe  string
}

func NewFFmpeg(pathToBinary, pathToProbe string) *FFmpeg {
	return &FFmpeg{pathToBinary: pathToBinary, pathToProbe: pathToProbe}
}

// ProbeResult describes the first video stream of a container.
type ProbeResult struct {
	Width       int
	Height      int
	TotalFrames int
	FrameRate   float64
	Duration    float64
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, inputFile string) (*ProbeResult, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,nb_frames,r_frame_rate,avg_frame_rate:format=duration",
		"-of", "json",
		inputFile,
	}
	cmd := exec.CommandContext(ctx, f.pathToProbe, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe command failed: %v, output: %s", err, stderr.String())
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	res := &ProbeResult{Width: s.Width, Height: s.Height}
	res.FrameRate = parseRate(s.RFrameRate)
	if res.FrameRate == 0 {
		res.FrameRate = parseRate(s.AvgFrameRate)
	}
	res.Duration, _ = strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if n, err := strconv.Atoi(strings.TrimSpace(s.NbFrames)); err == nil {
		res.TotalFrames = n
	} else if res.Duration > 0 && res.FrameRate > 0 {
		// Some containers (e.g. webm) don't carry a frame count.
		res.TotalFrames = int(res.Duration*res.FrameRate + 0.5)
	}
	return res, nil
}

// parseRate turns "30000/1001" or "25" into frames per second.
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// RawStream is a running ffmpeg process emitting packed rgb24 frames on stdout.
type RawStream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	reader    *bufio.Reader
	stderr    *bytes.Buffer
	frameSize int
	done      bool
	closed    bool
}

// decodeArgs keeps frames in stored orientation. ffmpeg otherwise applies
// rotation metadata and emits H x W frames for portrait phone videos, while
// the probed size stays W x H.
func decodeArgs(inputFile string) []string {
	return []string{
		"-v", "error",
		"-noautorotate",
		"-i", inputFile,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-vsync", "passthrough",
		"-",
	}
}

// DecodeRaw starts decoding inputFile into rgb24 frames of width x height.
func (f *FFmpeg) DecodeRaw(ctx context.Context, inputFile string, width, height int) (*RawStream, error) {
	cmd := exec.CommandContext(ctx, f.pathToBinary, decodeArgs(inputFile)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	frameSize := width * height * 3
	return &RawStream{
		cmd:       cmd,
		stdout:    stdout,
		reader:    bufio.NewReaderSize(stdout, frameSize),
		stderr:    stderr,
		frameSize: frameSize,
	}, nil
}

// FrameSize is the byte length of one rgb24 frame.
func (s *RawStream) FrameSize() int {
	return s.frameSize
}

// ReadFrame fills buf with the next frame. It returns io.EOF once ffmpeg has
// exited cleanly after the last complete frame.
func (s *RawStream) ReadFrame(buf []byte) error {
	if s.done {
		return io.EOF
	}
	if len(buf) < s.frameSize {
		return fmt.Errorf("frame buffer too small: %d < %d", len(buf), s.frameSize)
	}
	_, err := io.ReadFull(s.reader, buf[:s.frameSize])
	if err == nil {
		return nil
	}
	s.done = true
	waitErr := s.cmd.Wait()
	if errors.Is(err, io.EOF) {
		if waitErr != nil {
			return fmt.Errorf("ffmpeg decode failed: %v, output: %s", waitErr, s.stderr.String())
		}
		return io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("truncated frame from ffmpeg: %v, output: %s", waitErr, s.stderr.String())
	}
	return fmt.Errorf("failed to read frame: %w", err)
}

// Close stops the decoder. It is safe to call more than once.
func (s *RawStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stdout.Close()
	if s.done {
		return nil
	}
	s.done = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}
