package sdk

import (
	"FrameForge/internal/batch"
	"FrameForge/internal/cache"
	"FrameForge/internal/config"
	"FrameForge/internal/detector"
	"FrameForge/internal/enhance"
	"FrameForge/internal/pipeline"
	"FrameForge/internal/pipeline/storage"
	"FrameForge/internal/report"
	"FrameForge/pkg/ffmpeg"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Client assembles the extraction stack from config and exposes it to the
// binaries.
type Client struct {
	logger    *zap.Logger
	storage   storage.Storage
	store     *batch.Store
	extractor *pipeline.Extractor
	sink      report.Sink
	history   *report.PostgresSink
	cache     *cache.MetadataCache
	defaults  pipeline.Params
}

// New wires storage, cache, reporting sinks, the detector backend and the
// enhancement pipeline. Optional collaborators (Postgres, AMQP, Redis) are
// skipped when not configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	st, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	bucket := storage.Bucket(cfg.Storage)
	if m, ok := st.(*storage.MinIOStorage); ok {
		if err := m.EnsureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	c := &Client{
		logger:  logger,
		storage: st,
		store:   batch.NewStore(st, bucket, cfg.Storage.Prefix, logger),
		defaults: pipeline.Params{
			FrameRate:           cfg.Pipeline.FrameRate,
			ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
			Methods:             cfg.Methods(),
		},
	}

	if cfg.Redis.Addr != "" {
		mc, err := cache.NewMetadataCache(cfg.Redis, logger)
		if err != nil {
			// Reads fall through to storage without a cache.
			logger.Warn("Metadata cache unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			c.cache = mc
			c.store.WithCache(mc)
		}
	}

	sinks, err := c.buildSinks(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.sink = report.NewMultiSink(logger, sinks...)

	det, err := detector.NewDefaultRegistry().New(cfg.Detector.Backend, cfg.DetectorOptions(), logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	checkDetector(ctx, det, logger)

	locator, err := enhance.NewPigoLocator(cfg.Face, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to init face locator: %w", err)
	}
	enhancer := enhance.NewPipeline(logger, locator, cfg.Pipeline.JPEGQuality)

	opener := pipeline.NewFFmpegOpener(ffmpeg.NewFFmpeg(cfg.Pipeline.FFMpegPath, cfg.Pipeline.FFProbePath), logger)
	c.extractor = pipeline.NewExtractor(logger, opener, det, enhancer, c.store, c.sink, cfg.Pipeline)

	logger.Info("Extraction stack ready",
		zap.String("storage", cfg.Storage.Type),
		zap.String("detector", det.Name()),
		zap.Strings("default_methods", cfg.Pipeline.Methods),
		zap.Int("sinks", len(sinks)))
	return c, nil
}

// checkDetector probes a backend that supports it. An unreachable service is
// logged, not fatal: it may come up after this process, and frames sent
// before then count as detection failures.
func checkDetector(ctx context.Context, det detector.Detector, logger *zap.Logger) {
	hc, ok := det.(detector.HealthChecker)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := hc.Health(ctx); err != nil {
		logger.Warn("Detector backend is not healthy", zap.String("detector", det.Name()), zap.Error(err))
		return
	}
	logger.Info("Detector backend is healthy", zap.String("detector", det.Name()))
}

func (c *Client) buildSinks(ctx context.Context, cfg *config.Config) ([]report.Sink, error) {
	var sinks []report.Sink
	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := report.Migrate(pool); err != nil {
			pool.Close()
			return nil, err
		}
		c.history = report.NewPostgresSink(pool, c.logger)
		sinks = append(sinks, c.history)
	}
	if cfg.AMQP.URL != "" {
		s, err := report.NewAMQPSink(cfg.AMQP, c.logger)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// Defaults returns the configured extraction parameters.
func (c *Client) Defaults() pipeline.Params {
	return c.defaults
}

func (c *Client) Extractor() *pipeline.Extractor {
	return c.extractor
}

func (c *Client) Store() *batch.Store {
	return c.store
}

func (c *Client) ExtractFile(ctx context.Context, path string, params pipeline.Params) (*pipeline.Outcome, error) {
	return c.extractor.ProcessFile(ctx, path, params)
}

func (c *Client) ExtractUpload(ctx context.Context, file io.Reader, name string, params pipeline.Params) (*pipeline.Outcome, error) {
	return c.extractor.ProcessUpload(ctx, file, name, params)
}

func (c *Client) ListBatches(ctx context.Context) ([]string, error) {
	return c.store.ListBatches(ctx)
}

func (c *Client) ListPartialBatches(ctx context.Context) ([]string, error) {
	return c.store.ListPartialBatches(ctx)
}

func (c *Client) ReadMetadata(ctx context.Context, batchID string) (*batch.Metadata, error) {
	return c.store.ReadMetadata(ctx, batchID)
}

// History returns the most recent processing records, newest first. It
// needs a configured database.
func (c *Client) History(ctx context.Context, limit int) ([]report.Record, error) {
	if c.history == nil {
		return nil, errors.New("processing history requires database.dsn")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.history.Recent(ctx, limit)
}

func (c *Client) Close() error {
	var errs []error
	if c.sink != nil {
		errs = append(errs, c.sink.Close())
	}
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	return errors.Join(errs...)
}
