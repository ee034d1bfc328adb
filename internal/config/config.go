package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Build metadata, set with -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	DBPath          string        `yaml:"db_path"`
	AdminSecret     string        `yaml:"admin_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	ChallengeTTL    time.Duration `yaml:"challenge_ttl"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	DefaultStatuses []string      `yaml:"default_statuses"`
	RateLimits      RateLimits    `yaml:"rate_limits"`
}

type RateLimits struct {
	ArticlePerMinute  int `yaml:"article_per_minute"`
	CommentPerMinute  int `yaml:"comment_per_minute"`
	ReactionPerMinute int `yaml:"reaction_per_minute"`
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		DBPath:          "newsroom.db",
		AdminSecret:     "dev-admin-secret",
		TokenTTL:        24 * time.Hour,
		ChallengeTTL:    5 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "text",
		CORSOrigins:     []string{"*"},
		DefaultStatuses: []string{"like", "dislike"},
		RateLimits: RateLimits{
			ArticlePerMinute:  10,
			CommentPerMinute:  30,
			ReactionPerMinute: 120,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// NEWSROOM_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	return LoadFile(os.Getenv("NEWSROOM_CONFIG"))
}

// LoadFile is Load with an explicit file path. An empty path skips the
// file layer.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	overlayEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.DBPath == "" {
		return errors.New("config: db_path is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: token_ttl must be positive")
	}
	if c.ChallengeTTL <= 0 {
		return errors.New("config: challenge_ttl must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	return nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	cfg.Addr = envString("NEWSROOM_ADDR", cfg.Addr)
	if os.Getenv("NEWSROOM_ADDR") == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		}
	}
	cfg.DBPath = envString("NEWSROOM_DB", cfg.DBPath)
	cfg.AdminSecret = envString("NEWSROOM_ADMIN_SECRET", cfg.AdminSecret)
	cfg.TokenTTL = envDuration("NEWSROOM_TOKEN_TTL", cfg.TokenTTL)
	cfg.ChallengeTTL = envDuration("NEWSROOM_CHALLENGE_TTL", cfg.ChallengeTTL)
	cfg.LogLevel = envString("NEWSROOM_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("NEWSROOM_LOG_FORMAT", cfg.LogFormat)
	cfg.CORSOrigins = envList("NEWSROOM_CORS_ORIGINS", cfg.CORSOrigins)
	cfg.DefaultStatuses = envList("NEWSROOM_DEFAULT_STATUSES", cfg.DefaultStatuses)
	cfg.RateLimits.ArticlePerMinute = envInt("NEWSROOM_RL_ARTICLE_PER_MIN", cfg.RateLimits.ArticlePerMinute)
	cfg.RateLimits.CommentPerMinute = envInt("NEWSROOM_RL_COMMENT_PER_MIN", cfg.RateLimits.CommentPerMinute)
	cfg.RateLimits.ReactionPerMinute = envInt("NEWSROOM_RL_REACTION_PER_MIN", cfg.RateLimits.ReactionPerMinute)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
