// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrBucketRequired is returned when S3_BUCKET is not set.
	ErrBucketRequired = errors.New("config: S3_BUCKET is required")
	// ErrOpenAIKeyRequired is returned when OPENAI_API_KEY is not set.
	ErrOpenAIKeyRequired = errors.New("config: OPENAI_API_KEY is required")
	// ErrInvalidChunkSize is returned when the multipart chunk size is not positive.
	ErrInvalidChunkSize = errors.New("config: UPLOAD_CHUNK_SIZE_BYTES must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Working directories
	TempDir    string `env:"TEMP_DIR, default=/tmp/clipforge" json:"temp_dir"`
	ClipsDir   string `env:"CLIPS_DIR, default=/tmp/clipforge/clips" json:"clips_dir"`
	ResultsDir string `env:"RESULTS_DIR, default=/tmp/clipforge/results" json:"results_dir"`

	// External tools
	FFmpegPath string `env:"FFMPEG_BINARY, default=ffmpeg" json:"ffmpeg_path"`
	YtDlpPath  string `env:"YTDLP_BINARY, default=yt-dlp" json:"ytdlp_path"`

	// S3 settings
	S3Bucket           string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Region           string `env:"S3_REGION, default=eu-south-1" json:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Accelerate       bool   `env:"S3_ACCELERATE, default=false" json:"s3_accelerate"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Upload negotiation settings
	SingleUploadMaxBytes int64 `env:"SINGLE_UPLOAD_MAX_BYTES, default=104857600" json:"single_upload_max_bytes"`
	UploadChunkSizeBytes int64 `env:"UPLOAD_CHUNK_SIZE_BYTES, default=8388608" json:"upload_chunk_size_bytes"`
	MaxUploadBytes       int64 `env:"MAX_UPLOAD_BYTES, default=5368709120" json:"max_upload_bytes"`
	PresignExpirySec     int   `env:"PRESIGN_EXPIRY_SEC, default=3600" json:"presign_expiry_sec"`

	// Enrichment settings
	OpenAIAPIKey     string `env:"OPENAI_API_KEY, required" json:"-"` // Masked in JSON
	TranscribeModel  string `env:"TRANSCRIBE_MODEL, default=gpt-4o-mini-transcribe" json:"transcribe_model"`
	TitleModel       string `env:"TITLE_MODEL, default=gpt-3.5-turbo" json:"title_model"`
	EnrichTimeoutSec int    `env:"ENRICH_TIMEOUT_SEC, default=120" json:"enrich_timeout_sec"`
	RelayClipsToS3   bool   `env:"RELAY_CLIPS_TO_S3, default=false" json:"relay_clips_to_s3"`
	KeepClips        bool   `env:"KEEP_CLIPS, default=true" json:"keep_clips"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "S3_BUCKET") {
			return nil, ErrBucketRequired
		}
		if strings.Contains(err.Error(), "OPENAI_API_KEY") {
			return nil, ErrOpenAIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.S3Bucket == "" {
		return ErrBucketRequired
	}
	if c.OpenAIAPIKey == "" {
		return ErrOpenAIKeyRequired
	}
	if c.UploadChunkSizeBytes <= 0 {
		return ErrInvalidChunkSize
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, ClipsDir: %s, S3Bucket: %s, S3Region: %s, S3Accelerate: %t, SingleUploadMaxBytes: %d, UploadChunkSizeBytes: %d, MaxUploadBytes: %d, TranscribeModel: %s, TitleModel: %s, KeepClips: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.ClipsDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Accelerate,
		c.SingleUploadMaxBytes,
		c.UploadChunkSizeBytes,
		c.MaxUploadBytes,
		c.TranscribeModel,
		c.TitleModel,
		c.KeepClips,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
