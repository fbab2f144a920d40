package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoAPIKeys means neither the config file nor YOUTUBE_API_KEYS supplied
// a single key. The process must not start without one.
var ErrNoAPIKeys = errors.New("no YouTube API keys configured: set youtube.api_keys or the YOUTUBE_API_KEYS environment variable")

// Duration wraps time.Duration so YAML values like "30m" or "24h" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all ytpulse configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	DBPath  string        `yaml:"db_path"`
	Log     LogConfig     `yaml:"log"`
	YouTube YouTubeConfig `yaml:"youtube"`
	Quota   QuotaConfig   `yaml:"quota"`
	Jobs    JobsConfig    `yaml:"jobs"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// YouTubeConfig holds upstream API settings. APIKeys may also come from the
// YOUTUBE_API_KEYS environment variable as a comma-separated list.
type YouTubeConfig struct {
	APIKeys        []string `yaml:"api_keys"`
	RequestsPerSec float64  `yaml:"requests_per_sec"`
	Burst          int      `yaml:"burst"`
}

// QuotaConfig sets the cooldown policy after quota-exceeded signals and the
// cadence of the quota-epoch reset.
type QuotaConfig struct {
	ShortCooldown Duration `yaml:"short_cooldown"`
	DailyCooldown Duration `yaml:"daily_cooldown"`
	ResetInterval Duration `yaml:"reset_interval"`
}

// JobsConfig sets the background job cadence.
type JobsConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
	AlertInterval   Duration `yaml:"alert_interval"`
}

// HTTPConfig controls the inbound API surface.
type HTTPConfig struct {
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8000",
		DBPath: "ytpulse.db",
		Log: LogConfig{
			Level:     "info",
			File:      "ytpulse.log",
			MaxSizeMB: 10,
		},
		YouTube: YouTubeConfig{
			RequestsPerSec: 5,
			Burst:          10,
		},
		Quota: QuotaConfig{
			ShortCooldown: Duration(time.Hour),
			DailyCooldown: Duration(24 * time.Hour),
			ResetInterval: Duration(24 * time.Hour),
		},
		Jobs: JobsConfig{
			RefreshInterval: Duration(6 * time.Hour),
			AlertInterval:   Duration(15 * time.Minute),
		},
		HTTP: HTTPConfig{
			RateLimitPerSec: 10,
			RateLimitBurst:  20,
		},
	}
}

// Load reads a YAML config file, expands environment variables, and applies
// the YOUTUBE_API_KEYS fallback. A missing file is not an error: defaults
// plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if len(cfg.YouTube.APIKeys) == 0 {
		cfg.YouTube.APIKeys = splitKeys(os.Getenv("YOUTUBE_API_KEYS"))
	}
	if len(cfg.YouTube.APIKeys) == 0 {
		return nil, ErrNoAPIKeys
	}

	return cfg, nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
