// Package config loads application configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Search      SearchConfig      `mapstructure:"search"`
	CORS        CORSConfig        `mapstructure:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// VectorStoreConfig selects and configures the vector store driver.
type VectorStoreConfig struct {
	// Driver is "chroma" or "memory".
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model string `mapstructure:"model"`
	// FallbackModels are tried in order when the primary model cannot
	// be loaded.
	FallbackModels []string      `mapstructure:"fallback_models"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKeyEnv      string        `mapstructure:"api_key_env"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKeyEnv    string        `mapstructure:"api_key_env"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// SearchConfig controls retrieval defaults.
type SearchConfig struct {
	NResults          int    `mapstructure:"n_results"`
	DefaultCollection string `mapstructure:"default_collection"`
}

// CORSConfig lists origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultSystemPrompt instructs the model to answer from retrieved
// context only.
const DefaultSystemPrompt = "You are a helpful AI assistant. Based on the provided context, answer the user's " +
	"question accurately and concisely. If the context doesn't contain relevant information, politely say so " +
	"and provide a general helpful response if possible."

// Load reads configuration from the given file (optional) and the
// environment. Environment variables use the CHATBOT_ prefix with
// underscores, e.g. CHATBOT_SERVER_PORT.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CHATBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)

	v.SetDefault("vectorstore.driver", "chroma")
	v.SetDefault("vectorstore.url", "http://localhost:8000")

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.fallback_models", []string{"text-embedding-ada-002"})
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("embedding.timeout", "30s")

	v.SetDefault("llm.model", "llama3-8b-8192")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key_env", "GROQ_API_KEY")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 1.0)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("chunking.chunk_size", 1000)
	v.SetDefault("chunking.chunk_overlap", 200)

	v.SetDefault("search.n_results", 5)
	v.SetDefault("search.default_collection", "default")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

// Validate checks the configuration for values that would fail at
// runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.VectorStore.Driver {
	case "chroma":
		if c.VectorStore.URL == "" {
			return fmt.Errorf("vectorstore url is required for the chroma driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown vectorstore driver: %q", c.VectorStore.Driver)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding model cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model cannot be empty")
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunk overlap must satisfy 0 <= overlap < chunk size: %d", c.Chunking.ChunkOverlap)
	}
	if c.Search.NResults <= 0 {
		return fmt.Errorf("search n_results must be positive: %d", c.Search.NResults)
	}
	return nil
}
