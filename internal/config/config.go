package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	defaultListen           = ":8080"
	defaultWorkDir          = "/tmp/hlsgrab"
	defaultWorkers          = 5
	defaultMaxJobs          = 4
	defaultSegmentAttempts  = 3
	defaultRetryBackoff     = Duration(time.Second)
	defaultConnectTimeout   = Duration(10 * time.Second)
	defaultReadTimeout      = Duration(30 * time.Second)
	defaultResolveDepth     = 5
	defaultProgressInterval = Duration(5 * time.Second)
	defaultMaxNotifyWait    = Duration(30 * time.Minute)
	defaultMaxFileSize      = 4 << 30 // 4 GiB
	defaultFFmpegPath       = "ffmpeg"
)

// Duration parses yaml values like "10s" or "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("cannot parse duration %q: %w", s, err)
	}

	*d = Duration(v)

	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type DownloadConfig struct {
	WorkDir         string   `yaml:"work_dir"`
	Workers         int      `yaml:"workers"`
	MaxJobs         int      `yaml:"max_jobs"`
	SegmentAttempts int      `yaml:"segment_attempts"`
	RetryBackoff    Duration `yaml:"retry_backoff"`
	ConnectTimeout  Duration `yaml:"connect_timeout"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	MaxResolveDepth int      `yaml:"max_resolve_depth"`
	MaxFileSize     int64    `yaml:"max_file_size"`

	// Strict aborts a job on the first segment that exhausts its retries.
	// The default is best-effort: failed segments are skipped.
	Strict bool `yaml:"strict"`
}

type ConvertConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
}

type NotifyConfig struct {
	ProgressInterval Duration `yaml:"progress_interval"`
	MaxRateLimitWait Duration `yaml:"max_rate_limit_wait"`
}

type Config struct {
	Listen         string         `yaml:"listen"`
	RedisURL       string         `yaml:"redis_url"`
	LogLevel       string         `yaml:"log_level"`
	DownloadConfig DownloadConfig `yaml:"download"`
	ConvertConfig  ConvertConfig  `yaml:"convert"`
	NotifyConfig   NotifyConfig   `yaml:"notify"`
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
	if c.DownloadConfig.WorkDir == "" {
		c.DownloadConfig.WorkDir = defaultWorkDir
	}
	if c.DownloadConfig.Workers < 1 {
		c.DownloadConfig.Workers = defaultWorkers
	}
	if c.DownloadConfig.MaxJobs < 1 {
		c.DownloadConfig.MaxJobs = defaultMaxJobs
	}
	if c.DownloadConfig.SegmentAttempts < 1 {
		c.DownloadConfig.SegmentAttempts = defaultSegmentAttempts
	}
	if c.DownloadConfig.RetryBackoff == 0 {
		c.DownloadConfig.RetryBackoff = defaultRetryBackoff
	}
	if c.DownloadConfig.ConnectTimeout == 0 {
		c.DownloadConfig.ConnectTimeout = defaultConnectTimeout
	}
	if c.DownloadConfig.ReadTimeout == 0 {
		c.DownloadConfig.ReadTimeout = defaultReadTimeout
	}
	if c.DownloadConfig.MaxResolveDepth < 1 {
		c.DownloadConfig.MaxResolveDepth = defaultResolveDepth
	}
	if c.DownloadConfig.MaxFileSize == 0 {
		c.DownloadConfig.MaxFileSize = defaultMaxFileSize
	}
	if c.ConvertConfig.FFmpegPath == "" {
		c.ConvertConfig.FFmpegPath = defaultFFmpegPath
	}
	if c.NotifyConfig.ProgressInterval == 0 {
		c.NotifyConfig.ProgressInterval = defaultProgressInterval
	}
	if c.NotifyConfig.MaxRateLimitWait == 0 {
		c.NotifyConfig.MaxRateLimitWait = defaultMaxNotifyWait
	}
}

func Load(path string) (*Config, error) {
	// A missing .env file is fine, real environment still applies.
	_ = godotenv.Load()

	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file: %w", err)
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Listen = v
	}

	cfg.SetDefaults()

	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
