// Package config loads the pipeline's main TOML configuration file and
// the secrets that ride along in environment variables: settings that
// are safe to check into version control live in config.toml,
// credentials don't.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/normalize"
)

// Config is the decoded shape of the main TOML configuration file.
type Config struct {
	ScanInterval  int            `toml:"scan_interval"`
	MaxPerMessage int            `toml:"max_per_message"`
	SeenSetPath   string         `toml:"seen_set_path"`
	Database      DatabaseConfig `toml:"database"`

	Filter  model.FilterConfig  `toml:"filter"`
	Scoring model.ScoringConfig `toml:"scoring"`

	Sites []model.SiteConfig `toml:"sites"`
}

// DatabaseConfig selects and configures the opportunity store backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite". Any other value is a fatal
	// config error at Load time.
	Driver string `toml:"driver"`
	// DSN is the Postgres connection string, or the SQLite file path.
	// For postgres, HUNTER_DATABASE_URL (Secrets.DatabaseURL) takes
	// precedence over this value when it is set.
	DSN string `toml:"dsn"`
}

// Secrets holds credentials read from the environment, never from the
// TOML file.
type Secrets struct {
	TelegramBotToken string
	TelegramChatID   string
	LLMAPIKey        string
	LLMBaseURL       string
	DatabaseURL      string
}

// Load reads and decodes the TOML file at path. A missing or malformed
// file is a fatal, descriptive error: config problems are caught at
// startup, never mid-tick.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		// Not fatal: an unrecognized key is more often a typo to warn
		// about than a reason to refuse to start.
		fmt.Fprintf(os.Stderr, "config: warning: unrecognized keys in %s: %v\n", path, undecoded)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 3600
	}
	if c.MaxPerMessage <= 0 {
		c.MaxPerMessage = 10
	}
	if c.SeenSetPath == "" {
		c.SeenSetPath = "workspace/seen_opportunities.json"
	}
	if c.Scoring.Concurrency <= 0 {
		c.Scoring.Concurrency = 3
	}
	if len(c.Scoring.Skills) == 0 {
		c.Scoring.Skills = normalize.DefaultSkillVocabulary
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown database driver %q (want postgres or sqlite)", c.Database.Driver)
	}
	if len(c.Sites) == 0 {
		return fmt.Errorf("config: no sites configured")
	}
	for i, s := range c.Sites {
		if s.Name == "" {
			return fmt.Errorf("config: sites[%d] missing name", i)
		}
		if s.Kind == "" {
			return fmt.Errorf("config: site %q missing kind", s.Name)
		}
	}
	return nil
}

// ScanIntervalDuration returns the configured interval as a
// time.Duration.
func (c *Config) ScanIntervalDuration() time.Duration {
	return time.Duration(c.ScanInterval) * time.Second
}

// LoadSecrets reads credentials from the environment. Unlike Load, a
// missing secret is not fatal here: callers decide which secrets they
// actually need (e.g. `report` never touches the LLM or chat token).
func LoadSecrets() Secrets {
	return Secrets{
		TelegramBotToken: getEnv("HUNTER_TELEGRAM_TOKEN", ""),
		TelegramChatID:   getEnv("HUNTER_TELEGRAM_CHAT_ID", ""),
		LLMAPIKey:        getEnv("HUNTER_LLM_API_KEY", ""),
		LLMBaseURL:       getEnv("HUNTER_LLM_BASE_URL", ""),
		DatabaseURL:      getEnv("HUNTER_DATABASE_URL", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
