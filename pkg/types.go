package types

type ServerConfig struct {
	Addr           string `mapstructure:"addr" json:"addr"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`
}

type PipelineConfig struct {
	FFMpegPath          string      `mapstructure:"ff_mpeg_path" json:"ff_mpeg_path"`
	FFProbePath         string      `mapstructure:"ff_probe_path" json:"ff_probe_path"`
	TempDir             string      `mapstructure:"temp_dir" json:"temp_dir"`
	FrameRate           int         `mapstructure:"frame_rate" json:"frame_rate"`
	ConfidenceThreshold float64     `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	Padding             float64     `mapstructure:"padding" json:"padding"`
	Methods             []string    `mapstructure:"methods" json:"methods"`
	ArchiveSource       bool        `mapstructure:"archive_source" json:"archive_source"`
	JPEGQuality         int         `mapstructure:"jpeg_quality" json:"jpeg_quality"`
	Retry               RetryConfig `mapstructure:"retry" json:"retry"`
}

type RetryConfig struct {
	MaxAttempts        int32   `mapstructure:"max_attempts" json:"max_attempts"`
	InitialIntervalSec float64 `mapstructure:"initial_interval_sec" json:"initial_interval_sec"`
	BackoffCoefficient float64 `mapstructure:"backoff_coefficient" json:"backoff_coefficient"`
}

type DetectorConfig struct {
	Backend    string                 `mapstructure:"backend" json:"backend"`
	URL        string                 `mapstructure:"url" json:"url"`
	TimeoutSec float64                `mapstructure:"timeout_sec" json:"timeout_sec"`
	Options    map[string]interface{} `mapstructure:"options" json:"options"`
}

type FaceConfig struct {
	CascadePath  string  `mapstructure:"cascade_path" json:"cascade_path"`
	MinSize      int     `mapstructure:"min_size" json:"min_size"`
	MaxSize      int     `mapstructure:"max_size" json:"max_size"`
	MinQuality   float64 `mapstructure:"min_quality" json:"min_quality"`
	IoUThreshold float64 `mapstructure:"iou_threshold" json:"iou_threshold"`
}

type StorageConfig struct {
	Type   string      `mapstructure:"type" json:"type"`
	Bucket string      `mapstructure:"bucket" json:"bucket"`
	Prefix string      `mapstructure:"prefix" json:"prefix"`
	Local  LocalConfig `mapstructure:"local" json:"local"`
	S3     S3Config    `mapstructure:"s3" json:"s3"`
	MinIO  MinIOConfig `mapstructure:"minio" json:"minio"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base_path" json:"base_path"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" json:"bucket"`
	Region          string `mapstructure:"region" json:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"secret_access_key"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" json:"endpoint"`
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl" json:"use_ssl"`
	Bucket    string `mapstructure:"bucket" json:"bucket"`
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr" json:"addr"`
	Password   string `mapstructure:"password" json:"password"`
	DB         int    `mapstructure:"db" json:"db"`
	TTLMinutes int    `mapstructure:"ttl_minutes" json:"ttl_minutes"`
}

type AMQPConfig struct {
	URL        string `mapstructure:"url" json:"url"`
	Exchange   string `mapstructure:"exchange" json:"exchange"`
	RoutingKey string `mapstructure:"routing_key" json:"routing_key"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port" json:"host_port"`
	TaskQueue string `mapstructure:"task_queue" json:"task_queue"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level" json:"level"`
	Output   string `mapstructure:"output" json:"output"`
	FilePath string `mapstructure:"file_path" json:"file_path"`
}
