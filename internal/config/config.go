// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLMConfig holds settings for the external text-completion service used by
// the natural-language resolver. When APIKey is empty, resolution runs on
// the rule-based path only.
type LLMConfig struct {
	APIKey   string        // access credential; empty disables the LLM path
	Endpoint string        // OpenAI-compatible chat-completions URL
	Model    string        // model name (default "local-model")
	Timeout  time.Duration // request timeout (default 30s)
}

// Enabled returns true when an access credential is configured.
func (l *LLMConfig) Enabled() bool {
	return l.APIKey != ""
}

// Config holds the configuration for the metrics API and its stores.
type Config struct {
	ListenAddr        string // HTTP listen address (default ":8090")
	FactDBPath        string // path to the DuckDB fact-table database
	MetaDBPath        string // path to the SQLite query-history database
	SemanticModelPath string // path to the semantic model YAML (schema.yml shape)
	MetricsPath       string // path to the metric definitions YAML (metrics.yml shape)
	ReloadSchedule    string // cron expression for catalog reload (empty = off)
	LogLevel          string // log level: debug, info, warn, error (default "info")

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// LLM holds the text-completion service configuration.
	LLM LLMConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromEnv loads configuration from environment variables. LLM variables
// are optional; the service starts without them and answers natural-language
// queries with the rule-based resolver alone.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		FactDBPath:        os.Getenv("FACT_DB_PATH"),
		MetaDBPath:        os.Getenv("META_DB_PATH"),
		SemanticModelPath: os.Getenv("SEMANTIC_MODEL_PATH"),
		MetricsPath:       os.Getenv("METRICS_PATH"),
		ReloadSchedule:    os.Getenv("CATALOG_RELOAD_SCHEDULE"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		RateLimitRPS:      100,
		RateLimitBurst:    200,
		LLM: LLMConfig{
			APIKey:   firstEnv("LLM_API_KEY", "OPENAI_API_KEY", "DEEPSEEK_API_KEY"),
			Endpoint: os.Getenv("LLM_ENDPOINT"),
			Model:    os.Getenv("LLM_MODEL"),
			Timeout:  30 * time.Second,
		},
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}
	if cfg.FactDBPath == "" {
		cfg.FactDBPath = "datacore.duckdb"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "datacore-meta.db"
	}
	if cfg.SemanticModelPath == "" {
		cfg.SemanticModelPath = "models/dws/schema.yml"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "models/metrics.yml"
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = "http://localhost:1234/v1/chat/completions"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "local-model"
	}

	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid LLM_TIMEOUT %q, using default 30s", v))
		} else {
			cfg.LLM.Timeout = d
		}
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid RATE_LIMIT_RPS %q, using default 100", v))
		} else {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid RATE_LIMIT_BURST %q, using default 200", v))
		} else {
			cfg.RateLimitBurst = n
		}
	}

	cfg.CORSAllowedOrigins = []string{"*"}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		if len(origins) > 0 {
			cfg.CORSAllowedOrigins = origins
		}
	}

	return cfg, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
