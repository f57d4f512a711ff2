package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all vigil configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Memory    MemoryConfig    `yaml:"memory"`
	Trust     TrustConfig     `yaml:"trust"`
	Detector  DetectorConfig  `yaml:"detector"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider"` // "anthropic", "ollama"
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model"`    // e.g. "llama3.2"
	EmbeddingModel string `yaml:"embedding_model"` // e.g. "nomic-embed-text"
	AnthropicKey   string `yaml:"anthropic_key"`
}

type MemoryConfig struct {
	BufferSize       int `yaml:"buffer_size"`        // conversation turns kept per user
	ContextTimeoutMs int `yaml:"context_timeout_ms"` // combined budget for context fetch
}

type TrustConfig struct {
	StudyDelta      int     `yaml:"study_delta"`
	ViolationDelta  int     `yaml:"violation_delta"`
	QuizPassDelta   int     `yaml:"quiz_pass_delta"`
	QuizFailDelta   int     `yaml:"quiz_fail_delta"`
	AchievementOdds float64 `yaml:"achievement_odds"` // chance a STUDY result records an event
}

type DetectorConfig struct {
	BlacklistURL     string  `yaml:"blacklist_url"`
	BlacklistTTLSec  int     `yaml:"blacklist_ttl_sec"`
	EntropyThreshold float64 `yaml:"entropy_threshold"`
	MinKeystrokes    int     `yaml:"min_keystrokes"`
	ClickThreshold   int     `yaml:"click_threshold"`
	MouseTravelPx    float64 `yaml:"mouse_travel_px"`
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression for consolidation
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37800,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "anthropic",
		},
		Memory: MemoryConfig{
			BufferSize:       20,
			ContextTimeoutMs: 700,
		},
		Trust: TrustConfig{
			StudyDelta:      2,
			ViolationDelta:  -5,
			QuizPassDelta:   5,
			QuizFailDelta:   -3,
			AchievementOdds: 0.2,
		},
		Detector: DetectorConfig{
			BlacklistTTLSec:  60,
			EntropyThreshold: 2.0,
			MinKeystrokes:    10,
			ClickThreshold:   30,
			MouseTravelPx:    4000,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "0 4 * * *", // 04:00 daily
		},
	}
}

// Load reads a YAML config file, layering it over defaults. A missing file
// is not an error: defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ContextTimeout is the combined deadline for assembling memory context.
func (c *Config) ContextTimeout() time.Duration {
	if c.Memory.ContextTimeoutMs <= 0 {
		return 700 * time.Millisecond
	}
	return time.Duration(c.Memory.ContextTimeoutMs) * time.Millisecond
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
