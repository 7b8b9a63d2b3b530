package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. API key validation (required for all AI operations)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Retrieval configuration
	if c.SearchTopK < 1 || c.SearchTopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidSearchTopK, c.SearchTopK)
	}
	if c.RerankCandidates < 1 || c.RerankCandidates > c.SearchTopK {
		return fmt.Errorf("%w: must be between 1 and search_top_k (%d), got %d",
			ErrInvalidRerankCandidates, c.SearchTopK, c.RerankCandidates)
	}
	if c.MinScore < 0 || c.MinScore >= 1 {
		return fmt.Errorf("%w: must be in [0, 1), got %g", ErrInvalidMinScore, c.MinScore)
	}

	// 4. Result registry configuration
	if c.ResultTTL < time.Minute || c.ResultTTL > 24*time.Hour {
		return fmt.Errorf("%w: must be between 1m and 24h, got %s", ErrInvalidResultTTL, c.ResultTTL)
	}
	switch c.RegistryBackend {
	case RegistryMemory:
	case RegistryRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis backend", ErrInvalidRedisAddr)
		}
	default:
		return fmt.Errorf("%w: %q is not valid, must be %q or %q",
			ErrInvalidRegistryBackend, c.RegistryBackend, RegistryMemory, RegistryRedis)
	}

	// 5. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "recall_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// 6. PostgreSQL SSL mode validation
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
