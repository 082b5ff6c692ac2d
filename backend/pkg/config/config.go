package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI            string
	Neo4jUser           string
	Neo4jPassword       string
	Neo4jDatabase       string
	Neo4jMaxPoolSize    int
	Neo4jTimeoutSeconds int

	// Redis pub/sub for live notifications; empty address disables publishing
	RedisAddr    string
	RedisChannel string

	// HTTP
	CORSAllowedOrigins []string

	// Link preview
	LinkPreviewTimeoutSeconds int

	// Search
	SearchMaxPageSize    int
	SearchCandidateLimit int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                      getEnv("PORT", "8080"),
		Env:                       getEnv("ENV", "development"),
		Neo4jURI:                  getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:                 getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:             getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:             getEnv("NEO4J_DATABASE", ""),
		Neo4jMaxPoolSize:          getEnvInt("NEO4J_MAX_POOL_SIZE", 50),
		Neo4jTimeoutSeconds:       getEnvInt("NEO4J_TIMEOUT_SECONDS", 10),
		RedisAddr:                 getEnv("REDIS_ADDR", ""),
		RedisChannel:              getEnv("REDIS_CHANNEL", "notifications"),
		CORSAllowedOrigins:        getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LinkPreviewTimeoutSeconds: getEnvInt("LINK_PREVIEW_TIMEOUT_SECONDS", 10),
		SearchMaxPageSize:         getEnvInt("SEARCH_MAX_PAGE_SIZE", 100),
		SearchCandidateLimit:      getEnvInt("SEARCH_CANDIDATE_LIMIT", 500),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("NEO4J_USER is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.Neo4jMaxPoolSize <= 0 {
		return fmt.Errorf("NEO4J_MAX_POOL_SIZE must be positive")
	}
	if c.Neo4jTimeoutSeconds <= 0 {
		return fmt.Errorf("NEO4J_TIMEOUT_SECONDS must be positive")
	}
	if c.SearchMaxPageSize <= 0 {
		return fmt.Errorf("SEARCH_MAX_PAGE_SIZE must be positive")
	}
	if c.SearchCandidateLimit <= 0 {
		return fmt.Errorf("SEARCH_CANDIDATE_LIMIT must be positive")
	}
	if c.LinkPreviewTimeoutSeconds <= 0 {
		return fmt.Errorf("LINK_PREVIEW_TIMEOUT_SECONDS must be positive")
	}
	// Redis is optional; notifications are dropped when it is not configured
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// NotificationsEnabled reports whether a redis address was configured
func (c *Config) NotificationsEnabled() bool {
	return c.RedisAddr != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
