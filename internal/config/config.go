package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	DatabaseURL string `env:"DATABASE_URL"`
	Timezone    string `env:"TIMEZONE" envDefault:"Asia/Taipei"`

	// LLM
	LLMProvider       string        `env:"LLM_PROVIDER" envDefault:"none"`
	ModelName         string        `env:"MODEL_NAME"`
	VisionModelName   string        `env:"VISION_MODEL_NAME"`
	AnthropicAPIKey   string        `env:"ANTHROPIC_API_KEY"`
	VeniceAPIKey      string        `env:"VENICE_API_KEY"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	OllamaURL         string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	LLMQuestTimeout   time.Duration `env:"LLM_QUEST_TIMEOUT" envDefault:"3s"`
	LLMDefaultTimeout time.Duration `env:"LLM_DEFAULT_TIMEOUT" envDefault:"15s"`
	LLMRetryMin       time.Duration `env:"LLM_RETRY_MIN" envDefault:"2s"`
	LLMRetryMax       time.Duration `env:"LLM_RETRY_MAX" envDefault:"10s"`
	LLMMaxAttempts    uint          `env:"LLM_MAX_ATTEMPTS" envDefault:"3"`

	// Gameplay tuning
	BaseXP                   int     `env:"BASE_XP" envDefault:"50"`
	STierMultiplier          float64 `env:"S_TIER_MULTIPLIER" envDefault:"100"`
	BaseDropRate             float64 `env:"BASE_DROP_RATE" envDefault:"0.20"`
	FlowAlpha                float64 `env:"FLOW_ALPHA" envDefault:"0.25"`
	EngagementOverride       bool    `env:"ENGAGEMENT_OVERRIDE" envDefault:"true"`
	EngagementLootMultiplier float64 `env:"ENGAGEMENT_LOOT_MULTIPLIER" envDefault:"1.5"`
	SerendipityRate          float64 `env:"SERENDIPITY_RATE" envDefault:"0.20"`
	TestMode                 bool    `env:"TEST_MODE" envDefault:"false"`
	BossDamage               int     `env:"BOSS_DAMAGE" envDefault:"50"`
	HPDecayPerMissedDay      int     `env:"HP_DECAY_PER_MISSED_DAY" envDefault:"10"`

	// Workers
	WorkerCount   int           `env:"WORKER_COUNT" envDefault:"4"`
	WorkerID      string        `env:"WORKER_ID"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	// Tracing is off unless an endpoint is set.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the game rules cannot work with.
func (c *Config) Validate() error {
	if c.STierMultiplier < 50 {
		return fmt.Errorf("S_TIER_MULTIPLIER must be at least the A tier multiplier (50), got %v", c.STierMultiplier)
	}
	if c.FlowAlpha <= 0 || c.FlowAlpha > 1 {
		return fmt.Errorf("FLOW_ALPHA must be in (0, 1], got %v", c.FlowAlpha)
	}
	if c.BaseDropRate < 0 || c.BaseDropRate > 1 {
		return fmt.Errorf("BASE_DROP_RATE must be in [0, 1], got %v", c.BaseDropRate)
	}
	if c.LLMMaxAttempts == 0 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be positive")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured game timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

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
