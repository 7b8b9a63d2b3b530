// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.recall/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: model selection (primary + fallback), embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: search top-K, rerank candidate cap
//   - Results: result set TTL, registry backend (memory or redis)
//   - Media: reverse geocoder endpoint
//
// Security: sensitive data (passwords) is never logged; config directory uses 0750 permissions.
// Validation: comprehensive range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidSearchTopK indicates the search top-K value is out of range.
	ErrInvalidSearchTopK = errors.New("invalid search top-K")

	// ErrInvalidRerankCandidates indicates the rerank candidate cap is out of range.
	ErrInvalidRerankCandidates = errors.New("invalid rerank candidates")

	// ErrInvalidMinScore indicates the similarity floor is out of range.
	ErrInvalidMinScore = errors.New("invalid minimum score")

	// ErrInvalidResultTTL indicates the result set TTL is out of range.
	ErrInvalidResultTTL = errors.New("invalid result TTL")

	// ErrInvalidRegistryBackend indicates an unknown result registry backend.
	ErrInvalidRegistryBackend = errors.New("invalid registry backend")

	// ErrInvalidRedisAddr indicates the redis address is missing for the redis backend.
	ErrInvalidRedisAddr = errors.New("invalid redis address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation Learning).
	// Our pgvector schema uses 768 dimensions; see memory.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultSearchTopK is the number of hits fetched per query before reranking.
	DefaultSearchTopK = 10

	// DefaultRerankCandidates caps how many hits are offered to the reranker.
	DefaultRerankCandidates = 10

	// DefaultMinScore is the similarity floor: hits scoring at or below it
	// are dropped before presentation.
	DefaultMinScore = 0.5

	// DefaultResultTTL is how long a stored result set stays selectable.
	DefaultResultTTL = 10 * time.Minute
)

// Result registry backends accepted in Config.RegistryBackend.
const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName         string `mapstructure:"model_name" json:"model_name"`                   // primary generation model (e.g. "gemini-2.5-flash")
	FallbackModelName string `mapstructure:"fallback_model_name" json:"fallback_model_name"` // used when the primary model fails on media description
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval configuration
	SearchTopK       int     `mapstructure:"search_top_k" json:"search_top_k"`
	RerankCandidates int     `mapstructure:"rerank_candidates" json:"rerank_candidates"`
	MinScore         float64 `mapstructure:"min_score" json:"min_score"` // similarity floor, hits scoring <= this are dropped

	// Result registry configuration
	ResultTTL       time.Duration `mapstructure:"result_ttl" json:"result_ttl"`
	RegistryBackend string        `mapstructure:"registry_backend" json:"registry_backend"` // "memory" (default) or "redis"

	// Redis configuration (only used when registry_backend is "redis")
	RedisAddr     string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" json:"redis_password"` // SENSITIVE: masked in MarshalJSON
	RedisDB       int    `mapstructure:"redis_db" json:"redis_db"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Media configuration
	GeocoderBaseURL string `mapstructure:"geocoder_base_url" json:"geocoder_base_url"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.recall/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".recall")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("fallback_model_name", "gemini-2.0-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	// Retrieval defaults
	viper.SetDefault("search_top_k", DefaultSearchTopK)
	viper.SetDefault("rerank_candidates", DefaultRerankCandidates)
	viper.SetDefault("min_score", DefaultMinScore)

	// Result registry defaults
	viper.SetDefault("result_ttl", DefaultResultTTL)
	viper.SetDefault("registry_backend", RegistryMemory)

	// Redis defaults
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("redis_db", 0)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "recall")
	viper.SetDefault("postgres_password", "recall_dev_password")
	viper.SetDefault("postgres_db_name", "recall")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Media defaults
	viper.SetDefault("geocoder_base_url", "https://nominatim.openstreetmap.org")
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// GEMINI_API_KEY is read directly by Genkit (not via Viper); its presence is
// checked in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "RECALL_MODEL_NAME")
	mustBind("fallback_model_name", "RECALL_FALLBACK_MODEL_NAME")
	mustBind("embedder_model", "RECALL_EMBEDDER_MODEL")
	mustBind("registry_backend", "RECALL_REGISTRY_BACKEND")
	mustBind("redis_addr", "RECALL_REDIS_ADDR")
	mustBind("redis_password", "RECALL_REDIS_PASSWORD")
	mustBind("geocoder_base_url", "RECALL_GEOCODER_BASE_URL")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// against real password characters.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - RedisPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.RedisPassword = maskSecret(a.RedisPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified name for the primary model.
// Example: "googleai/gemini-2.5-flash". A name already containing "/" is
// returned as-is.
func (c *Config) FullModelName() string {
	return qualifyModelName(c.ModelName)
}

// FullFallbackModelName returns the provider-qualified fallback model name,
// or "" when no fallback is configured.
func (c *Config) FullFallbackModelName() string {
	if c.FallbackModelName == "" {
		return ""
	}
	return qualifyModelName(c.FallbackModelName)
}

func qualifyModelName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
