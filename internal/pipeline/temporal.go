package pipeline

import (
	"FrameForge/internal/batch"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

const DefaultTaskQueue = "frame-extraction"

// TemporalWorkflow runs extractions as Temporal workflows
type TemporalWorkflow struct {
	client    client.Client
	worker    worker.Worker
	logger    *zap.Logger
	extractor *Extractor
	taskQueue string
}

// WorkflowInput is the input of ExtractionWorkflow. VideoPath must be
// readable by the worker.
type WorkflowInput struct {
	VideoPath   string `json:"video_path"`
	VideoRef    string `json:"video_ref"`
	Params      Params `json:"params"`
	RemoveAfter bool   `json:"remove_after"`
}

// WorkflowOutput is the result of ExtractionWorkflow
type WorkflowOutput struct {
	BatchID         string           `json:"batch_id"`
	Extracted       int              `json:"extracted"`
	ProcessedFrames int              `json:"processed_frames"`
	Images          []ExtractedImage `json:"images"`
	Metadata        batch.Metadata   `json:"metadata"`
	Duration        time.Duration    `json:"duration"`
}

func NewTemporalWorkflow(c client.Client, logger *zap.Logger, extractor *Extractor, taskQueue string) *TemporalWorkflow {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &TemporalWorkflow{
		client:    c,
		logger:    logger,
		extractor: extractor,
		taskQueue: taskQueue,
	}
}

// StartWorker starts the Temporal worker
func (tw *TemporalWorkflow) StartWorker() error {
	tw.worker = worker.New(tw.client, tw.taskQueue, worker.Options{
		// one extraction at a time per worker
		MaxConcurrentActivityExecutionSize: 1,
	})

	activities := NewActivities(tw.extractor, tw.logger)
	tw.worker.RegisterWorkflow(ExtractionWorkflow)
	tw.worker.RegisterActivity(activities)

	return tw.worker.Start()
}

// StopWorker stops the Temporal worker
func (tw *TemporalWorkflow) StopWorker() {
	if tw.worker != nil {
		tw.worker.Stop()
	}
}

// Submit stages an uploaded video where the worker can read it and runs the
// extraction workflow to completion.
func (tw *TemporalWorkflow) Submit(ctx context.Context, file io.Reader, name string, params Params) (*WorkflowOutput, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	localPath, err := tw.extractor.stage(file, name)
	if err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	tw.logger.Info("Upload staged for workflow", zap.String("name", name), zap.String("local_path", localPath))

	out, err := tw.ExecuteWorkflow(ctx, WorkflowInput{
		VideoPath:   localPath,
		VideoRef:    filepath.Base(name),
		Params:      params,
		RemoveAfter: true,
	})
	if err != nil {
		// the activity never ran if the workflow could not start
		_ = os.Remove(localPath)
		return nil, err
	}
	return out, nil
}

// ProcessUpload runs an uploaded video through the workflow and returns the
// outcome in the same shape as Extractor.ProcessUpload. Images carry no pixel
// data; their bytes are read back from the batch store.
func (tw *TemporalWorkflow) ProcessUpload(ctx context.Context, file io.Reader, name string, params Params) (*Outcome, error) {
	out, err := tw.Submit(ctx, file, name, params)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		BatchID:  out.BatchID,
		Images:   out.Images,
		Metadata: out.Metadata,
	}, nil
}

// ExecuteWorkflow starts ExtractionWorkflow and waits for its result.
func (tw *TemporalWorkflow) ExecuteWorkflow(ctx context.Context, input WorkflowInput) (*WorkflowOutput, error) {
	workflowOptions := client.StartWorkflowOptions{
		ID:                       "frame-extraction-" + uuid.NewString(),
		TaskQueue:                tw.taskQueue,
		WorkflowExecutionTimeout: 60 * time.Minute,
		WorkflowRunTimeout:       60 * time.Minute,
	}

	we, err := tw.client.ExecuteWorkflow(ctx, workflowOptions, ExtractionWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow: %w", err)
	}
	tw.logger.Info("Started extraction workflow", zap.String("workflow_id", we.GetID()), zap.String("run_id", we.GetRunID()))

	var result WorkflowOutput
	if err := we.Get(ctx, &result); err != nil {
		return nil, workflowError(err)
	}
	return &result, nil
}

const sourceUnreadableType = "SourceUnreadable"

// workflowError restores ErrSourceUnreadable from a failed workflow. The
// activity's ApplicationError sits under the workflow and activity error
// wrappers, so every link of the chain is checked.
func workflowError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if appErr, ok := e.(*temporal.ApplicationError); ok && appErr.Type() == sourceUnreadableType {
			return fmt.Errorf("%w: %s", ErrSourceUnreadable, appErr.Message())
		}
	}
	return fmt.Errorf("workflow execution failed: %w", err)
}

// ExtractionWorkflow runs a single extraction activity. The activity is
// never retried: a second attempt would create a second batch.
func ExtractionWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	logger.Info("Starting extraction workflow",
		"video", input.VideoRef,
		"frame_rate", input.Params.FrameRate,
		"confidence_threshold", input.Params.ConfidenceThreshold)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 50 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var result WorkflowOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractActivity", input).Get(ctx, &result); err != nil {
		logger.Error("Extraction failed", "error", err)
		return result, err
	}

	result.Duration = workflow.Now(ctx).Sub(startTime)
	logger.Info("Extraction workflow completed",
		"batch_id", result.BatchID,
		"extracted", result.Extracted,
		"processed_frames", result.ProcessedFrames,
		"duration", result.Duration)

	return result, nil
}

// Activities holds dependencies for Temporal activities
type Activities struct {
	extractor *Extractor
	logger    *zap.Logger
}

func NewActivities(extractor *Extractor, logger *zap.Logger) *Activities {
	return &Activities{extractor: extractor, logger: logger}
}

// ExtractActivity runs one extraction over a video file on the worker host.
func (a *Activities) ExtractActivity(ctx context.Context, input WorkflowInput) (WorkflowOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Starting extraction activity", "video_path", input.VideoPath)

	if input.RemoveAfter {
		defer func() {
			if err := os.Remove(input.VideoPath); err != nil && !os.IsNotExist(err) {
				a.logger.Warn("Failed to remove staged video", zap.String("path", input.VideoPath), zap.Error(err))
			}
		}()
	}

	ref := input.VideoRef
	if ref == "" {
		ref = input.VideoPath
	}
	out, err := a.extractor.process(ctx, input.VideoPath, ref, input.Params)
	if err != nil {
		if errors.Is(err, ErrSourceUnreadable) {
			return WorkflowOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), sourceUnreadableType, err)
		}
		return WorkflowOutput{}, err
	}

	images := make([]ExtractedImage, len(out.Images))
	for i, img := range out.Images {
		img.Image, img.Payload = nil, nil
		images[i] = img
	}

	logger.Info("Extraction activity completed", "batch_id", out.BatchID, "extracted", len(out.Images))
	return WorkflowOutput{
		BatchID:         out.BatchID,
		Extracted:       len(out.Images),
		ProcessedFrames: out.Metadata.ProcessedFrames,
		Images:          images,
		Metadata:        out.Metadata,
	}, nil
}
