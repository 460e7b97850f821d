// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./troly.yaml or /etc/troly/troly.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider selection, chat model, embedding model and dimension
//   - Retrieval: chunking, top-k, similarity threshold, query cache
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: HTTP listen address, CORS, rate limiting
//
// Sensitive values (passwords, API keys) are masked in MarshalJSON and String.
// Validation uses sentinel errors checkable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the chat model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedModel indicates the embedding model is invalid.
	ErrInvalidEmbedModel = errors.New("invalid embedding model")

	// ErrInvalidEmbedDimension indicates the embedding dimension is out of range.
	ErrInvalidEmbedDimension = errors.New("invalid embedding dimension")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidChunking indicates chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidCache indicates the query cache configuration is out of range.
	ErrInvalidCache = errors.New("invalid cache configuration")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

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

	// ErrInvalidListenAddr indicates the HTTP listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOllama   = "ollama"
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider   string `mapstructure:"provider" json:"provider"` // "ollama" (default) or "gemini"
	ModelName  string `mapstructure:"model_name" json:"model_name"`
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedModel     string `mapstructure:"embed_model" json:"embed_model"`
	EmbedDimension int    `mapstructure:"embed_dimension" json:"embed_dimension"`

	// Retrieval configuration
	ChunkSize           int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK                int     `mapstructure:"top_k" json:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`

	// Query cache configuration
	CacheTTL     time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	CacheMaxSize int           `mapstructure:"cache_max_size" json:"cache_max_size"`

	// Generation configuration
	LLMTimeout   time.Duration `mapstructure:"llm_timeout" json:"llm_timeout"`
	EmbedTimeout time.Duration `mapstructure:"embed_timeout" json:"embed_timeout"`

	// Date parsing: resolve a weekday name falling on today to next week
	// instead of today.
	WeekdayNextWeek bool `mapstructure:"weekday_next_week" json:"weekday_next_week"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	ListenAddr      string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins     []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateLimitPerSec float64  `mapstructure:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	RateLimitBurst  int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Observability configuration
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	Environment  string `mapstructure:"environment" json:"environment"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	viper.SetConfigName("troly")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/troly")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"config_name", "troly.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderOllama)
	viper.SetDefault("model_name", "qwen2.5:7b")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embed_model", "bge-m3")
	viper.SetDefault("embed_dimension", 1024)

	// Retrieval defaults
	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 100)
	viper.SetDefault("top_k", 3)
	viper.SetDefault("similarity_threshold", 0.4)

	// Query cache defaults
	viper.SetDefault("cache_ttl", "300s")
	viper.SetDefault("cache_max_size", 100)

	// Generation defaults
	viper.SetDefault("llm_timeout", "90s")
	viper.SetDefault("embed_timeout", "30s")

	// Date parsing defaults
	viper.SetDefault("weekday_next_week", false)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "troly")
	viper.SetDefault("postgres_password", "troly_dev_password")
	viper.SetDefault("postgres_db_name", "troly")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP server defaults
	viper.SetDefault("listen_addr", ":8088")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("rate_limit_per_sec", 10.0)
	viper.SetDefault("rate_limit_burst", 20)

	// Observability defaults
	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("environment", "dev")

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", true)
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper;
// Validate() checks its presence when the gemini provider is selected.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind. A panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "TROLY_PROVIDER")
	mustBind("model_name", "TROLY_MODEL_NAME")
	mustBind("ollama_host", "TROLY_OLLAMA_HOST")
	mustBind("embed_model", "TROLY_EMBED_MODEL")
	mustBind("listen_addr", "TROLY_LISTEN_ADDR")
	mustBind("cors_origins", "TROLY_CORS_ORIGINS")
	mustBind("log_level", "TROLY_LOG_LEVEL")
	mustBind("otlp_endpoint", "TROLY_OTLP_ENDPOINT")
	mustBind("postgres_password", "TROLY_POSTGRES_PASSWORD")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matching against real secret characters.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "ollama/qwen2.5:7b", "googleai/gemini-2.5-flash".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
