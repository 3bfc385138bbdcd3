// Package config provides configuration for the chat gateway.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "CHATGATE_MODE"
	// ModeMock routes every provider family to the mock adapter.
	ModeMock = "MOCK"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// ProviderConfig holds the credentials and endpoint of one provider.
type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Enabled reports whether the provider has credentials.
func (p ProviderConfig) Enabled() bool {
	return p.APIKey != ""
}

// Config holds the gateway configuration.
type Config struct {
	// Server settings
	HTTPPort        int
	APIPrefix       string
	ShutdownTimeout time.Duration

	// Storage
	StoreBackend string
	DatabaseURL  string

	// Conversation defaults
	DefaultSystemPrompt string
	DefaultModel        string

	// Generation defaults applied by adapters
	DefaultTemperature float64
	DefaultTopP        float64
	DefaultTopK        int
	DefaultMaxTokens   int

	// Providers
	Mode             string
	LLMTimeout       time.Duration
	MockChunkDelay   time.Duration
	OpenAI           ProviderConfig
	Anthropic        ProviderConfig
	Gemini           ProviderConfig
	Deepseek         ProviderConfig
	Qwen             ProviderConfig
	ModelCatalogPath string
	Catalog          []domain.ModelInfo

	// Admission policy
	MaxMessageChars int
	PolicyPath      string

	// WebSocket settings
	WSPingInterval   time.Duration
	WSWriteTimeout   time.Duration
	WSReadTimeout    time.Duration
	WSMaxMessageSize int64

	// Observability
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8000),
		APIPrefix:       getEnv("API_PREFIX", "/api"),
		ShutdownTimeout: getEnvMillis("SHUTDOWN_TIMEOUT_MS", 10000),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		DefaultSystemPrompt: getEnv("DEFAULT_SYSTEM_PROMPT", "You are a helpful AI assistant."),
		DefaultModel:        getEnv("DEFAULT_MODEL", ""),

		DefaultTemperature: getEnvFloat("DEFAULT_TEMPERATURE", 0.7),
		DefaultTopP:        getEnvFloat("DEFAULT_TOP_P", 0.95),
		DefaultTopK:        getEnvInt("DEFAULT_TOP_K", 64),
		DefaultMaxTokens:   getEnvInt("DEFAULT_MAX_TOKENS", 8192),

		Mode:           strings.ToUpper(getEnv(EnvMode, "")),
		LLMTimeout:     getEnvMillis("LLM_TIMEOUT_MS", 60000),
		MockChunkDelay: getEnvMillis("MOCK_CHUNK_DELAY_MS", 0),
		OpenAI: ProviderConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			DefaultModel: getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		},
		Anthropic: ProviderConfig{
			APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:      getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			DefaultModel: getEnv("ANTHROPIC_MODEL", "claude-2"),
		},
		Gemini: ProviderConfig{
			APIKey:       getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
			BaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			DefaultModel: getEnv("GEMINI_MODEL", "gemini-pro"),
		},
		Deepseek: ProviderConfig{
			APIKey:       getEnv("DEEPSEEK_API_KEY", ""),
			BaseURL:      getEnv("DEEPSEEK_API_BASE", "https://api.deepseek.com/v1"),
			DefaultModel: getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		},
		Qwen: ProviderConfig{
			APIKey:       getEnv("DASHSCOPE_API_KEY", ""),
			BaseURL:      getEnv("QWEN_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),
			DefaultModel: getEnv("QWEN_MODEL", "qwen-turbo"),
		},
		ModelCatalogPath: getEnv("MODEL_CATALOG_PATH", ""),

		MaxMessageChars: getEnvInt("MAX_MESSAGE_CHARS", 32000),
		PolicyPath:      getEnv("POLICY_PATH", ""),

		WSPingInterval:   getEnvMillis("WS_PING_INTERVAL_MS", 30000),
		WSWriteTimeout:   getEnvMillis("WS_WRITE_TIMEOUT_MS", 10000),
		WSReadTimeout:    getEnvMillis("WS_READ_TIMEOUT_MS", 60000),
		WSMaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),

		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	catalog := DefaultCatalog()
	if cfg.ModelCatalogPath != "" {
		loaded, err := LoadCatalog(cfg.ModelCatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	cfg.Catalog = catalog

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for store backend %q", c.StoreBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT_MS must be positive"))
	}
	if c.MaxMessageChars <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_CHARS must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// MockMode reports whether adapters should be replaced by the mock adapter.
func (c *Config) MockMode() bool {
	return c.Mode == ModeMock
}

// GenerationDefaults returns the adapter default parameters.
func (c *Config) GenerationDefaults() domain.GenerationParams {
	temp, topP := c.DefaultTemperature, c.DefaultTopP
	topK, maxTokens := c.DefaultTopK, c.DefaultMaxTokens
	return domain.GenerationParams{
		Temperature: &temp,
		TopP:        &topP,
		TopK:        &topK,
		MaxTokens:   &maxTokens,
	}
}

// ParseLevel maps LOG_LEVEL onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", level)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillis(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
