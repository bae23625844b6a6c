// Package config defines service configuration and its defaults.
package config

import (
	"context"
	"fmt"
	"time"
)

// Scoring providers.
const (
	ProviderSimulated = "simulated"
	ProviderGemini    = "gemini"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// AudioDir is where submitted recordings are kept until the sweeper removes them.
	AudioDir string `koanf:"audio_dir"`
	// MaxAudioBytes caps a single multipart audio upload.
	MaxAudioBytes int64 `koanf:"max_audio_bytes"`

	// RetentionWindow is the age after which sessions and their audio are evicted.
	RetentionWindow time.Duration `koanf:"retention_window"`
	// SweepInterval is how often the retention sweeper runs.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// QueueCapacity bounds the evaluation queue. Zero means unbounded.
	QueueCapacity int `koanf:"queue_capacity"`
	// MaxPrompts caps totalPrompts on a rapid-fire session.
	MaxPrompts int `koanf:"max_prompts"`

	// ScoringProvider selects the scoring client: simulated or gemini.
	ScoringProvider string `koanf:"scoring_provider"`
	GeminiAPIKey    string `koanf:"gemini_api_key"`
	GeminiModel     string `koanf:"gemini_model"`
	// ScoringTimeout bounds one scoring call. The queue itself never times out a job.
	ScoringTimeout time.Duration `koanf:"scoring_timeout"`

	// ScoringLatencyMinMS and ScoringLatencyMaxMS bound the simulated scorer's latency.
	ScoringLatencyMinMS int `koanf:"scoring_latency_min_ms"`
	ScoringLatencyMaxMS int `koanf:"scoring_latency_max_ms"`
	// ScoringFailureRate is the fraction of simulated calls that fail.
	ScoringFailureRate float64 `koanf:"scoring_failure_rate"`

	// DatabaseURL enables the PostgreSQL session store. Empty keeps history in memory.
	DatabaseURL string `koanf:"database_url"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		AudioDir:            "uploads",
		MaxAudioBytes:       25 << 20,
		RetentionWindow:     24 * time.Hour,
		SweepInterval:       time.Hour,
		QueueCapacity:       0,
		MaxPrompts:          50,
		ScoringProvider:     ProviderSimulated,
		GeminiModel:         "gemini-2.5-pro",
		ScoringTimeout:      90 * time.Second,
		ScoringLatencyMinMS: 300,
		ScoringLatencyMaxMS: 1200,
		ScoringFailureRate:  0,
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RetentionWindow <= 0:
		return fmt.Errorf("%w: retention_window must be positive", ErrInvalidConfig)
	case c.SweepInterval <= 0:
		return fmt.Errorf("%w: sweep_interval must be positive", ErrInvalidConfig)
	case c.QueueCapacity < 0:
		return fmt.Errorf("%w: queue_capacity must not be negative", ErrInvalidConfig)
	case c.MaxPrompts <= 0:
		return fmt.Errorf("%w: max_prompts must be positive", ErrInvalidConfig)
	case c.MaxAudioBytes <= 0:
		return fmt.Errorf("%w: max_audio_bytes must be positive", ErrInvalidConfig)
	case c.ScoringLatencyMinMS < 0 || c.ScoringLatencyMaxMS < c.ScoringLatencyMinMS:
		return fmt.Errorf("%w: scoring latency bounds are inverted", ErrInvalidConfig)
	case c.ScoringFailureRate < 0 || c.ScoringFailureRate > 1:
		return fmt.Errorf("%w: scoring_failure_rate must be within [0,1]", ErrInvalidConfig)
	}
	switch c.ScoringProvider {
	case ProviderSimulated:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: gemini provider requires gemini_api_key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown scoring_provider %q", ErrInvalidConfig, c.ScoringProvider)
	}
	return nil
}
