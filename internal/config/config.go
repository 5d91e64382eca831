// Package config reads process configuration from the environment once at
// startup. Everything is immutable after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the clipfetch server.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Pipeline  PipelineConfig
	Tools     ToolsConfig
	Retention RetentionConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type StoreConfig struct {
	// DownloadDir is the artifact root; the store owns it exclusively.
	DownloadDir   string
	CapacityBytes int64
}

type PipelineConfig struct {
	Workers            int
	QueueCapacity      int
	PerHostConcurrency int
	PerHostRate        float64
	PerHostBurst       int
	RetryLimit         int
	RetryBaseDelay     time.Duration
	// MaxAwaitWait caps the optional synchronous wait on submission.
	MaxAwaitWait time.Duration
}

type ToolsConfig struct {
	YtdlpPath        string
	FfmpegPath       string
	ExtractTimeout   time.Duration
	TranscodeTimeout time.Duration
	// OutputCapBytes bounds in-memory capture of each tool stream.
	OutputCapBytes int
}

type RetentionConfig struct {
	ReaperInterval time.Duration
	ArtifactTTL    time.Duration
	JobRetention   time.Duration
	UnclaimedGrace time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns a descriptive error if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CLIPFETCH_PORT", 8000),
			Env:  envString("CLIPFETCH_ENV", "development"),
		},
		Store: StoreConfig{
			DownloadDir:   envString("CLIPFETCH_DOWNLOAD_DIR", "downloads"),
			CapacityBytes: envInt64("CLIPFETCH_STORE_CAPACITY_BYTES", 10<<30),
		},
		Pipeline: PipelineConfig{
			Workers:            envInt("CLIPFETCH_WORKERS", 4),
			QueueCapacity:      envInt("CLIPFETCH_QUEUE_CAPACITY", 256),
			PerHostConcurrency: envInt("CLIPFETCH_PER_HOST_CONCURRENCY", 2),
			PerHostRate:        envFloat("CLIPFETCH_PER_HOST_RATE", 1.0),
			PerHostBurst:       envInt("CLIPFETCH_PER_HOST_BURST", 2),
			RetryLimit:         envInt("CLIPFETCH_RETRY_LIMIT", 3),
			RetryBaseDelay:     envDuration("CLIPFETCH_RETRY_BASE_DELAY", 2*time.Second),
			MaxAwaitWait:       envDuration("CLIPFETCH_MAX_AWAIT_WAIT", 30*time.Second),
		},
		Tools: ToolsConfig{
			YtdlpPath:        envString("CLIPFETCH_YTDLP_PATH", "yt-dlp"),
			FfmpegPath:       envString("CLIPFETCH_FFMPEG_PATH", "ffmpeg"),
			ExtractTimeout:   envDuration("CLIPFETCH_EXTRACT_TIMEOUT", 10*time.Minute),
			TranscodeTimeout: envDuration("CLIPFETCH_TRANSCODE_TIMEOUT", 15*time.Minute),
			OutputCapBytes:   envInt("CLIPFETCH_TOOL_OUTPUT_CAP", 64<<10),
		},
		Retention: RetentionConfig{
			ReaperInterval: envDuration("CLIPFETCH_REAPER_INTERVAL", time.Minute),
			ArtifactTTL:    envDuration("CLIPFETCH_ARTIFACT_TTL", 6*time.Hour),
			JobRetention:   envDuration("CLIPFETCH_JOB_RETENTION", 24*time.Hour),
			UnclaimedGrace: envDuration("CLIPFETCH_UNCLAIMED_GRACE", 30*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("CLIPFETCH_PORT must be a valid port, got %d", c.Server.Port)
	}
	if c.Store.DownloadDir == "" {
		return fmt.Errorf("CLIPFETCH_DOWNLOAD_DIR is required")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("CLIPFETCH_WORKERS must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.PerHostConcurrency <= 0 {
		return fmt.Errorf("CLIPFETCH_PER_HOST_CONCURRENCY must be positive, got %d", c.Pipeline.PerHostConcurrency)
	}
	if c.Pipeline.RetryLimit < 0 {
		return fmt.Errorf("CLIPFETCH_RETRY_LIMIT must be >= 0, got %d", c.Pipeline.RetryLimit)
	}
	if c.Tools.YtdlpPath == "" || c.Tools.FfmpegPath == "" {
		return fmt.Errorf("tool paths must not be empty")
	}
	if c.Tools.OutputCapBytes <= 0 {
		return fmt.Errorf("CLIPFETCH_TOOL_OUTPUT_CAP must be positive, got %d", c.Tools.OutputCapBytes)
	}
	if c.Retention.ReaperInterval <= 0 {
		return fmt.Errorf("CLIPFETCH_REAPER_INTERVAL must be positive")
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
