package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-sourced setting for the decant core, per
// spec.md §6 "Configuration (environment)". Values come from the process
// environment with sensible defaults; there is no functional-options layer
// here because, unlike the teacher's multi-agent framework, this core has
// exactly one deployment shape (a single HTTP server process).
type Config struct {
	Port    int
	Env     string // dev | prod | test
	LogLevel string

	DatabasePath string

	OpenAIAPIKey string
	OpenAIModel  string

	// MasterKey enables the encrypted-at-rest settings keystore when set.
	MasterKey string

	CORSAllowedOrigins []string

	RateLimit RateLimitConfig

	// ExtractorAPIKeys holds optional per-extractor credentials, keyed by
	// content type tag ("youtube", "github", "twitter").
	ExtractorAPIKeys map[string]string
}

// RateLimitConfig configures the three rate-limit scopes named in spec.md §5.
type RateLimitConfig struct {
	GlobalPerMinute   int
	ImportPerMinute   int
	SettingsPerMinute int
}

// Load builds a Config from the process environment, applying the defaults
// spec.md documents for each variable.
func Load() *Config {
	cfg := &Config{
		Port:         envInt("PORT", 8080),
		Env:          envString("NODE_ENV", "dev"),
		LogLevel:     envString("LOG_LEVEL", "info"),
		DatabasePath: envString("DATABASE_PATH", defaultDatabasePath()),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  envString("OPENAI_MODEL", "gpt-4o-mini"),
		MasterKey:    os.Getenv("DECANT_MASTER_KEY"),
		RateLimit: RateLimitConfig{
			GlobalPerMinute:   envInt("RATE_LIMIT_GLOBAL_PER_MIN", 100),
			ImportPerMinute:   envInt("RATE_LIMIT_IMPORT_PER_MIN", 10),
			SettingsPerMinute: envInt("RATE_LIMIT_SETTINGS_PER_MIN", 5),
		},
		ExtractorAPIKeys: map[string]string{
			"youtube": os.Getenv("YOUTUBE_API_KEY"),
			"github":  os.Getenv("GITHUB_API_KEY"),
			"twitter": os.Getenv("TWITTER_API_KEY"),
		},
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	return cfg
}

// IsProduction reports whether the configured environment redacts
// non-operational error messages (spec.md §7).
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".decant", "data", "decant.db")
	}
	return filepath.Join(home, ".decant", "data", "decant.db")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// String renders the configuration for diagnostic logging, redacting secrets.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port:%d Env:%s DatabasePath:%s MasterKeySet:%v}",
		c.Port, c.Env, c.DatabasePath, c.MasterKey != "")
}
