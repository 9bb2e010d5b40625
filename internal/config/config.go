package config

import (
	"FrameForge/internal/detector"
	"FrameForge/internal/enhance"
	types "FrameForge/pkg"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "FRAMEFORGE"

// envKeys are the settings that can be overridden from the environment,
// e.g. FRAMEFORGE_DATABASE_DSN or FRAMEFORGE_STORAGE_S3_SECRET_ACCESS_KEY.
var envKeys = []string{
	"server.addr",
	"database.dsn",
	"pipeline.ff_mpeg_path",
	"pipeline.ff_probe_path",
	"pipeline.temp_dir",
	"detector.backend",
	"detector.url",
	"face.cascade_path",
	"storage.type",
	"storage.bucket",
	"storage.local.base_path",
	"storage.s3.bucket",
	"storage.s3.region",
	"storage.s3.access_key_id",
	"storage.s3.secret_access_key",
	"storage.minio.endpoint",
	"storage.minio.access_key",
	"storage.minio.secret_key",
	"storage.minio.bucket",
	"redis.addr",
	"redis.password",
	"amqp.url",
	"tracing.enabled",
	"tracing.endpoint",
	"temporal.host_port",
	"temporal.task_queue",
	"logging.level",
}

type ConfigLoader struct {
	logger *zap.Logger
	v      *viper.Viper
}

func NewConfigLoader(logger *zap.Logger) *ConfigLoader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return &ConfigLoader{
		logger: logger,
		v:      v,
	}
}

// Load reads an optional .env file, then the YAML config at filePath, then
// environment overrides. A missing config file is not an error when the
// environment supplies what validate needs.
func (cl *ConfigLoader) Load(filePath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		cl.logger.Warn("Failed to read .env file", zap.Error(err))
	}

	cl.v.SetConfigFile(filePath)
	if err := cl.v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			cl.logger.Error("Failed to read config file", zap.String("file", filePath), zap.Error(err))
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		cl.logger.Warn("Config file not found, using defaults and environment", zap.String("file", filePath))
	}

	var cfg Config
	if err := cl.v.Unmarshal(&cfg); err != nil {
		cl.logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cl.validate(&cfg); err != nil {
		cl.logger.Error("Config validation failed", zap.Error(err))
		return nil, err
	}

	cl.logger.Info("Config loaded successfully", zap.String("file", filePath))
	return &cfg, nil
}

func (cl *ConfigLoader) validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 500 << 20
	}

	if cfg.Pipeline.FFMpegPath == "" {
		cfg.Pipeline.FFMpegPath = "ffmpeg" // Default to the one that's in PATH
	}
	if cfg.Pipeline.FFProbePath == "" {
		cfg.Pipeline.FFProbePath = "ffprobe"
	}
	if cfg.Pipeline.TempDir == "" {
		cfg.Pipeline.TempDir = os.TempDir()
	}
	if cfg.Pipeline.FrameRate == 0 {
		cfg.Pipeline.FrameRate = 10
	}
	if cfg.Pipeline.FrameRate < 1 {
		return fmt.Errorf("pipeline.frame_rate must be >= 1")
	}
	if cfg.Pipeline.ConfidenceThreshold == 0 {
		cfg.Pipeline.ConfidenceThreshold = 0.5
	}
	if cfg.Pipeline.ConfidenceThreshold < 0 || cfg.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be in (0, 1]")
	}
	if cfg.Pipeline.Padding < 0 {
		return fmt.Errorf("pipeline.padding must be non-negative")
	}
	if len(cfg.Pipeline.Methods) == 0 {
		cfg.Pipeline.Methods = enhance.Names(enhance.DefaultMethods())
	}
	if methods, unknown := enhance.ParseMethods(cfg.Pipeline.Methods); len(unknown) > 0 {
		cl.logger.Warn("Ignoring unknown enhancement methods", zap.Strings("methods", unknown))
		cfg.Pipeline.Methods = enhance.Names(methods)
	}
	if cfg.Pipeline.JPEGQuality == 0 {
		cfg.Pipeline.JPEGQuality = enhance.DefaultJPEGQuality
	}
	if cfg.Pipeline.JPEGQuality < 1 || cfg.Pipeline.JPEGQuality > 100 {
		return fmt.Errorf("pipeline.jpeg_quality must be between 1 and 100")
	}

	if cfg.Pipeline.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be non-negative")
	}
	if cfg.Pipeline.Retry.MaxAttempts == 0 {
		cfg.Pipeline.Retry.MaxAttempts = 3 // Default
	}
	if cfg.Pipeline.Retry.InitialIntervalSec <= 0 {
		cfg.Pipeline.Retry.InitialIntervalSec = 1.0 // Default
	}
	if cfg.Pipeline.Retry.BackoffCoefficient <= 1 {
		cfg.Pipeline.Retry.BackoffCoefficient = 2.0 // Default
	}

	if cfg.Detector.Backend == "" {
		cfg.Detector.Backend = detector.PoseLandmarkBackend
	}
	if cfg.Detector.Backend == detector.PoseLandmarkBackend && cfg.Detector.URL == "" {
		cfg.Detector.URL = "http://localhost:8001"
	}

	storage := strings.ToLower(cfg.Storage.Type)
	switch storage {
	case "s3":
		if cfg.Storage.S3.Bucket == "" && cfg.Storage.Bucket == "" {
			return fmt.Errorf("s3 bucket required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region required")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("s3 access_key and secret_key required")
		}
	case "minio":
		if cfg.Storage.MinIO.Endpoint == "" {
			return fmt.Errorf("minio endpoint required")
		}
		if cfg.Storage.MinIO.Bucket == "" && cfg.Storage.Bucket == "" {
			return fmt.Errorf("minio bucket required")
		}
	case "local", "":
		cfg.Storage.Type = "local"
		if cfg.Storage.Local.BasePath == "" {
			cfg.Storage.Local.BasePath = "./outputs"
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", storage)
	}

	if cfg.Redis.TTLMinutes <= 0 {
		cfg.Redis.TTLMinutes = 60
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "frameforge"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "frame-extraction"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if !isValidLogLevel(cfg.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "console"
	}
	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		return fmt.Errorf("file_path required for file logging")
	}

	return nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg types.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Output == "file" {
		zc.OutputPaths = []string{cfg.FilePath}
		zc.ErrorOutputPaths = []string{cfg.FilePath}
	}
	return zc.Build()
}

func isValidLogLevel(level string) bool {
	levels := []string{"debug", "info", "warn", "error"}
	for _, l := range levels {
		if strings.ToLower(level) == l {
			return true
		}
	}
	return false
}
