// Package config handles configuration loading for TradeLens.
// It supports YAML config files, a .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TRADELENS"

// Config represents the complete application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	Store    StoreConfig    `mapstructure:"store"    yaml:"store"`
	Redis    RedisConfig    `mapstructure:"redis"    yaml:"redis"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// LLMConfig holds reasoning-engine provider configuration.
type LLMConfig struct {
	Primary      string        `mapstructure:"primary"       yaml:"primary"` // "gemini", "openai", "anthropic", "ollama"
	GeminiKey    string        `mapstructure:"gemini_key"    yaml:"gemini_key"`
	OpenAIKey    string        `mapstructure:"openai_key"    yaml:"openai_key"`
	AnthropicKey string        `mapstructure:"anthropic_key" yaml:"anthropic_key"`
	AnthropicURL string        `mapstructure:"anthropic_url" yaml:"anthropic_url"`
	OllamaURL    string        `mapstructure:"ollama_url"    yaml:"ollama_url"`
	Model        string        `mapstructure:"model"         yaml:"model"`
	Temperature  float64       `mapstructure:"temperature"   yaml:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"    yaml:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"       yaml:"driver"` // "sqlite", "postgres", "memory"
	SQLitePath  string `mapstructure:"sqlite_path"  yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// RedisConfig configures the optional response cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Addr     string        `mapstructure:"addr"     yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db"       yaml:"db"`
	NewsTTL  time.Duration `mapstructure:"news_ttl" yaml:"news_ttl"`
	HotTTL   time.Duration `mapstructure:"hot_ttl"  yaml:"hot_ttl"`
}

// AnalysisConfig holds orchestrator settings.
type AnalysisConfig struct {
	KnowledgeLimit     int           `mapstructure:"knowledge_limit"      yaml:"knowledge_limit"`
	CategorizeMaxChars int           `mapstructure:"categorize_max_chars" yaml:"categorize_max_chars"`
	ExtractMaxChars    int           `mapstructure:"extract_max_chars"    yaml:"extract_max_chars"`
	Timeout            time.Duration `mapstructure:"timeout"              yaml:"timeout"`
	DefaultTimezone    string        `mapstructure:"default_timezone"     yaml:"default_timezone"`
}

// NewsConfig configures RSS headline feeds used alongside web search.
type NewsConfig struct {
	Feeds      []string `mapstructure:"feeds"        yaml:"feeds"`
	MaxItems   int      `mapstructure:"max_items"    yaml:"max_items"`
	RatePerMin int      `mapstructure:"rate_per_min" yaml:"rate_per_min"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"   yaml:"level"`  // "debug", "info", "warn", "error"
	Format  string `mapstructure:"format"  yaml:"format"` // "text" or "json"
	Tracing bool   `mapstructure:"tracing" yaml:"tracing"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.tradelens/config.yaml (home directory)
//  3. /etc/tradelens/config.yaml (system)
//
// A .env file in the working directory is loaded first, without overriding
// variables already set. Environment variables override config file values.
// Format: TRADELENS_<SECTION>_<KEY>, e.g., TRADELENS_LLM_GEMINI_KEY
func Load() (*Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".tradelens"))
	v.AddConfigPath("/etc/tradelens")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// loadDotEnv loads a .env file if present. Existing variables win.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "gemini")
	v.SetDefault("llm.ollama_url", "")
	v.SetDefault("llm.anthropic_url", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", 180*time.Second)

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", filepath.Join(homeDir(), ".tradelens", "tradelens.db"))

	// Redis defaults (off unless configured)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.news_ttl", 15*time.Minute)
	v.SetDefault("redis.hot_ttl", time.Hour)

	// Analysis defaults
	v.SetDefault("analysis.knowledge_limit", 5)
	v.SetDefault("analysis.categorize_max_chars", 4000)
	v.SetDefault("analysis.extract_max_chars", 8000)
	v.SetDefault("analysis.timeout", 5*time.Minute)
	v.SetDefault("analysis.default_timezone", "UTC")

	// News defaults
	v.SetDefault("news.feeds", []string{
		"https://feeds.content.dowjones.io/public/rss/mw_topstories",
		"https://www.investing.com/rss/news.rss",
	})
	v.SetDefault("news.max_items", 10)
	v.SetDefault("news.rate_per_min", 30)

	// API defaults
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.tracing", false)
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// GEMINI_API_KEY and API_KEY are accepted as fallbacks for the Gemini key.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("TRADELENS_LLM_GEMINI_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	} else if cfg.LLM.GeminiKey == "" {
		for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
			if key := os.Getenv(name); key != "" {
				cfg.LLM.GeminiKey = key
				break
			}
		}
	}
	if key := os.Getenv("TRADELENS_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("TRADELENS_LLM_ANTHROPIC_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.LLM.AnthropicKey == "" {
		cfg.LLM.AnthropicKey = key
	}
	if dsn := os.Getenv("TRADELENS_STORE_POSTGRES_DSN"); dsn != "" {
		cfg.Store.PostgresDSN = dsn
	}
	if pw := os.Getenv("TRADELENS_REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
}

// Addr returns host:port for the API server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
