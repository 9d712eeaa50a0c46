package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Logging    LoggingConfig
	OpenAI     OpenAIConfig
	Listings   ListingsConfig
	Knowledge  KnowledgeConfig
	Router     RouterConfig
	Redis      RedisConfig
	Usage      UsageConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	Enabled            bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	GinMode         string
	AllowedOrigins  string
	ShutdownTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OpenAIConfig holds OpenAI-compatible provider configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string // Model for classification and answers
	ChatTemperature     float64
	ChatTopP            float64
	ChatMaxTokens       int
	ChatExtraBody       string // JSON string for extra_body
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingExtraBody  string
	BatchSize           int
	Timeout             int
	Enabled             bool
}

// ListingsConfig holds the property listings API configuration
type ListingsConfig struct {
	BaseURL          string
	ListingURLPrefix string
	PlaceholderImage string
	Timeout          time.Duration
	PerPage          int
	ShowLimit        int
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimit        float64 // requests per second
	RateBurst        int
	BreakerEnabled   bool
}

// KnowledgeConfig holds knowledge store and retrieval configuration
type KnowledgeConfig struct {
	Source        string // postgres or file
	File          string
	TopK          int
	MinScore      float64
	ContextBudget int // characters
}

// RouterConfig holds per-call timeouts of the router
type RouterConfig struct {
	ClassifierTimeout time.Duration
	EmbedTimeout      time.Duration
	GenerateTimeout   time.Duration
	SpeculativeEmbed  bool
	HistoryTurns      int
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// UsageConfig holds anonymous usage limit configuration
type UsageConfig struct {
	AnonymousLimit int
	Window         time.Duration
	Enabled        bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "marrfa"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 2),
			Enabled:            getEnvAsBool("PG_ENABLED", true),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8000),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:         getEnv("GIN_MODE", "release"),
			AllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature:     getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.2),
			ChatTopP:            getEnvAsFloat("OPENAI_CHAT_TOP_P", 0),
			ChatMaxTokens:       getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 800),
			ChatExtraBody:       getEnv("OPENAI_CHAT_EXTRA_BODY", ""),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			EmbeddingExtraBody:  getEnv("OPENAI_EMBEDDING_EXTRA_BODY", ""),
			BatchSize:           getEnvAsInt("OPENAI_BATCH_SIZE", 100),
			Timeout:             getEnvAsInt("OPENAI_TIMEOUT", 30),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
		Listings: ListingsConfig{
			BaseURL:          getEnv("LISTINGS_API_URL", "https://apiv2.marrfa.com/properties"),
			ListingURLPrefix: getEnv("LISTINGS_URL_PREFIX", "https://www.marrfa.com/propertylisting/"),
			PlaceholderImage: getEnv("LISTINGS_PLACEHOLDER_IMAGE", "https://www.marrfa.com/static/placeholder-property.png"),
			Timeout:          getEnvAsDuration("LISTINGS_TIMEOUT", 20*time.Second),
			PerPage:          getEnvAsInt("LISTINGS_PER_PAGE", 15),
			ShowLimit:        getEnvAsInt("LISTINGS_SHOW_LIMIT", 10),
			MaxAttempts:      getEnvAsInt("LISTINGS_MAX_ATTEMPTS", 3),
			InitialBackoff:   getEnvAsDuration("LISTINGS_INITIAL_BACKOFF", 200*time.Millisecond),
			RateLimit:        getEnvAsFloat("LISTINGS_RATE_LIMIT", 5),
			RateBurst:        getEnvAsInt("LISTINGS_RATE_BURST", 10),
			BreakerEnabled:   getEnvAsBool("LISTINGS_BREAKER_ENABLED", true),
		},
		Knowledge: KnowledgeConfig{
			Source:        getEnv("KNOWLEDGE_SOURCE", "postgres"),
			File:          getEnv("KNOWLEDGE_FILE", "./knowledge/chunks.jsonl"),
			TopK:          getEnvAsInt("KNOWLEDGE_TOP_K", 5),
			MinScore:      getEnvAsFloat("KNOWLEDGE_MIN_SCORE", 0.2),
			ContextBudget: getEnvAsInt("KNOWLEDGE_CONTEXT_BUDGET", 6000),
		},
		Router: RouterConfig{
			ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 8*time.Second),
			EmbedTimeout:      getEnvAsDuration("EMBED_TIMEOUT", 10*time.Second),
			GenerateTimeout:   getEnvAsDuration("GENERATE_TIMEOUT", 30*time.Second),
			SpeculativeEmbed:  getEnvAsBool("ROUTER_SPECULATIVE_EMBED", false),
			HistoryTurns:      getEnvAsInt("ROUTER_HISTORY_TURNS", 6),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Usage: UsageConfig{
			AnonymousLimit: getEnvAsInt("USAGE_ANONYMOUS_LIMIT", 3),
			Window:         getEnvAsDuration("USAGE_WINDOW", 24*time.Hour),
			Enabled:        getEnv("REDIS_ADDR", "") != "",
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would make the router misbehave
func (c *Config) Validate() error {
	if c.Knowledge.Source != "postgres" && c.Knowledge.Source != "file" {
		return fmt.Errorf("KNOWLEDGE_SOURCE must be postgres or file, got %q", c.Knowledge.Source)
	}
	if c.Knowledge.TopK <= 0 {
		return fmt.Errorf("KNOWLEDGE_TOP_K must be positive")
	}
	if c.Knowledge.ContextBudget <= 0 {
		return fmt.Errorf("KNOWLEDGE_CONTEXT_BUDGET must be positive")
	}
	if c.Listings.MaxAttempts <= 0 {
		return fmt.Errorf("LISTINGS_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid bool value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("750ms") or plain seconds ("20")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}
