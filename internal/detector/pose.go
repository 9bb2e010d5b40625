package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const PoseLandmarkBackend = "pose-landmark"

// PoseOptions configures the pose-landmark HTTP backend.
type PoseOptions struct {
	URL                    string  `mapstructure:"url"`
	TimeoutSec             float64 `mapstructure:"timeout_sec"`
	JPEGQuality            int     `mapstructure:"jpeg_quality"`
	ModelComplexity        int     `mapstructure:"model_complexity"`
	MinDetectionConfidence float64 `mapstructure:"min_detection_confidence"`
}

func (o *PoseOptions) SetDefaults() {
	if o.TimeoutSec <= 0 {
		o.TimeoutSec = 30
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = 90
	}
	if o.MinDetectionConfidence <= 0 {
		o.MinDetectionConfidence = 0.5
	}
}

func (o *PoseOptions) Validate() error {
	if o.URL == "" {
		return fmt.Errorf("url required for %s backend", PoseLandmarkBackend)
	}
	if _, err := url.Parse(o.URL); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if o.ModelComplexity < 0 || o.ModelComplexity > 2 {
		return fmt.Errorf("model_complexity must be between 0 and 2, got: %d", o.ModelComplexity)
	}
	if o.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be at most 100, got: %d", o.JPEGQuality)
	}
	return nil
}

type poseResponse struct {
	Landmarks []Landmark `json:"landmarks"`
	Error     string     `json:"error,omitempty"`
}

// PoseClient talks to an external pose-landmark service. Each frame is sent
// as a JPEG body to POST /pose.
type PoseClient struct {
	baseURL    string
	opts       PoseOptions
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPoseClient(opts PoseOptions, logger *zap.Logger) (*PoseClient, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &PoseClient{
		baseURL: strings.TrimRight(opts.URL, "/"),
		opts:    opts,
		httpClient: &http.Client{
			Timeout: time.Duration(opts.TimeoutSec * float64(time.Second)),
		},
		logger: logger,
	}, nil
}

// NewPoseClientFromOptions is the registry factory for the pose-landmark backend.
func NewPoseClientFromOptions(options map[string]interface{}, logger *zap.Logger) (Detector, error) {
	var opts PoseOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode pose options: %w", err)
	}
	return NewPoseClient(opts, logger)
}

func (c *PoseClient) Name() string {
	return PoseLandmarkBackend
}

func (c *PoseClient) Detect(ctx context.Context, img image.Image) (Result, error) {
	var body bytes.Buffer
	if err := imaging.Encode(&body, img, imaging.JPEG, imaging.JPEGQuality(c.opts.JPEGQuality)); err != nil {
		return NoDetection, fmt.Errorf("failed to encode frame: %w", err)
	}

	q := url.Values{}
	q.Set("model_complexity", strconv.Itoa(c.opts.ModelComplexity))
	q.Set("min_detection_confidence", strconv.FormatFloat(c.opts.MinDetectionConfidence, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pose?"+q.Encode(), &body)
	if err != nil {
		return NoDetection, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NoDetection, fmt.Errorf("pose request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return NoDetection, fmt.Errorf("pose service returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out poseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return NoDetection, fmt.Errorf("failed to parse pose response: %w", err)
	}
	if out.Error != "" {
		return NoDetection, fmt.Errorf("pose service error: %s", out.Error)
	}
	if len(out.Landmarks) == 0 {
		return NoDetection, nil
	}
	return Result{Detected: true, Landmarks: out.Landmarks}, nil
}

var _ HealthChecker = (*PoseClient)(nil)

// Health checks that the pose service is reachable.
func (c *PoseClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pose service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pose service returned status %d", resp.StatusCode)
	}
	return nil
}
