package config

import (
	"FrameForge/internal/enhance"
	types "FrameForge/pkg"
)

type Config struct {
	Server   types.ServerConfig   `mapstructure:"server" json:"server"`
	Database DatabaseConfig       `mapstructure:"database" json:"database"`
	Pipeline types.PipelineConfig `mapstructure:"pipeline" json:"pipeline"`
	Detector types.DetectorConfig `mapstructure:"detector" json:"detector"`
	Face     types.FaceConfig     `mapstructure:"face" json:"face"`
	Storage  types.StorageConfig  `mapstructure:"storage" json:"storage"`
	Redis    types.RedisConfig    `mapstructure:"redis" json:"redis"`
	AMQP     types.AMQPConfig     `mapstructure:"amqp" json:"amqp"`
	Tracing  types.TracingConfig  `mapstructure:"tracing" json:"tracing"`
	Temporal types.TemporalConfig `mapstructure:"temporal" json:"temporal"`
	Logging  types.LoggingConfig  `mapstructure:"logging" json:"logging"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// Methods returns the configured default enhancement methods. validate has
// already dropped unknown names.
func (c *Config) Methods() []enhance.Method {
	methods, _ := enhance.ParseMethods(c.Pipeline.Methods)
	return methods
}

// DetectorOptions merges the top-level url and timeout into the backend
// options map.
func (c *Config) DetectorOptions() map[string]interface{} {
	opts := make(map[string]interface{}, len(c.Detector.Options)+2)
	for k, v := range c.Detector.Options {
		opts[k] = v
	}
	if c.Detector.URL != "" {
		opts["url"] = c.Detector.URL
	}
	if c.Detector.TimeoutSec > 0 {
		opts["timeout_sec"] = c.Detector.TimeoutSec
	}
	return opts
}
