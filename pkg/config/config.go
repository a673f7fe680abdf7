package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Query     QueryConfig     `mapstructure:"query"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Host        string   `mapstructure:"host"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	IdleSeconds    int     `mapstructure:"stream_idle_seconds"`
}

type EmbeddingConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Dimension      int    `mapstructure:"dimension"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type VectorConfig struct {
	Address        string `mapstructure:"address"`
	TimeoutSeconds int    `mapstructure:"search_timeout_seconds"`
}

type StoreConfig struct {
	DBPath     string `mapstructure:"db_path"`
	SessionURI string `mapstructure:"session_uri"`
}

type CacheConfig struct {
	URI     string `mapstructure:"uri"`
	MaxSize int    `mapstructure:"max_size"`
}

type UploadConfig struct {
	Dir               string   `mapstructure:"dir"`
	MaxSizeBytes      int64    `mapstructure:"max_size_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

type ChunkingConfig struct {
	Strategy          string `mapstructure:"strategy"`
	HierarchicalSizes []int  `mapstructure:"hierarchical_sizes"`
	Overlap           int    `mapstructure:"overlap"`
	RecursiveSize     int    `mapstructure:"recursive_size"`
	RecursiveOverlap  int    `mapstructure:"recursive_overlap"`
}

type QueryConfig struct {
	TopK            int `mapstructure:"top_k"`
	ExpansionCount  int `mapstructure:"expansion_count"`
	HistoryLimit    int `mapstructure:"history_limit"`
	PromptTokenCeil int `mapstructure:"prompt_token_ceiling"`
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	if configPath != "" {
		absPath, _ := filepath.Abs(configPath)
		viper.SetConfigFile(absPath)
	} else {
		viper.SetConfigName("docai")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.docai")
	}

	setDefaults()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		// No config file: run on defaults and environment.
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ensureDir(config.Upload.Dir)
	ensureDir(filepath.Dir(config.Store.DBPath))

	return config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("llm.base_url", "http://localhost:11434/v1")
	viper.SetDefault("llm.model", "qwen3")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.timeout_seconds", 60)
	viper.SetDefault("llm.stream_idle_seconds", 30)

	viper.SetDefault("embedding.base_url", "http://localhost:11434/v1")
	viper.SetDefault("embedding.model", "nomic-embed-text")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.timeout_seconds", 30)

	viper.SetDefault("vector.address", "localhost:6334")
	viper.SetDefault("vector.search_timeout_seconds", 5)

	viper.SetDefault("store.db_path", "data/docai.db")
	viper.SetDefault("store.session_uri", "")

	viper.SetDefault("cache.uri", "")
	viper.SetDefault("cache.max_size", 4096)

	viper.SetDefault("upload.dir", "data/uploads")
	viper.SetDefault("upload.max_size_bytes", int64(50*1024*1024))
	viper.SetDefault("upload.allowed_extensions", []string{"pdf", "docx", "txt", "md"})

	viper.SetDefault("chunking.strategy", "hierarchical")
	viper.SetDefault("chunking.hierarchical_sizes", []int{2000, 1000, 500})
	viper.SetDefault("chunking.overlap", 100)
	viper.SetDefault("chunking.recursive_size", 1000)
	viper.SetDefault("chunking.recursive_overlap", 200)

	viper.SetDefault("query.top_k", 5)
	viper.SetDefault("query.expansion_count", 3)
	viper.SetDefault("query.history_limit", 10)
	viper.SetDefault("query.prompt_token_ceiling", 4096)
}

func bindEnvVars() {
	viper.SetEnvPrefix("DOCAI")
	viper.AutomaticEnv()

	bindings := map[string]string{
		"server.port":              "DOCAI_SERVER_PORT",
		"server.host":              "DOCAI_SERVER_HOST",
		"server.cors_origins":      "DOCAI_CORS_ORIGINS",
		"llm.base_url":             "DOCAI_LLM_BASE_URL",
		"llm.api_key":              "DOCAI_LLM_API_KEY",
		"llm.model":                "DOCAI_LLM_MODEL",
		"embedding.base_url":       "DOCAI_EMBEDDING_BASE_URL",
		"embedding.api_key":        "DOCAI_EMBEDDING_API_KEY",
		"embedding.model":          "DOCAI_EMBEDDING_MODEL",
		"embedding.dimension":      "DOCAI_EMBEDDING_DIMENSION",
		"vector.address":           "DOCAI_VECTOR_ADDRESS",
		"store.db_path":            "DOCAI_DB_PATH",
		"store.session_uri":        "DOCAI_SESSION_URI",
		"cache.uri":                "DOCAI_CACHE_URI",
		"upload.dir":               "DOCAI_UPLOAD_DIR",
		"upload.max_size_bytes":    "DOCAI_MAX_FILE_SIZE",
		"upload.allowed_extensions": "DOCAI_ALLOWED_EXTENSIONS",
		"chunking.strategy":        "DOCAI_CHUNKING_STRATEGY",
		"chunking.hierarchical_sizes": "DOCAI_HIERARCHICAL_CHUNK_SIZES",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Printf("Warning: failed to bind %s env var: %v", key, err)
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Vector.Address == "" {
		return fmt.Errorf("vector store address cannot be empty")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive: %d", c.Embedding.Dimension)
	}
	if c.Upload.MaxSizeBytes <= 0 {
		return fmt.Errorf("max upload size must be positive: %d", c.Upload.MaxSizeBytes)
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("allowed extensions list cannot be empty")
	}

	switch strings.ToLower(c.Chunking.Strategy) {
	case "hierarchical", "recursive":
	default:
		return fmt.Errorf("invalid chunking strategy: %s (supported: hierarchical, recursive)", c.Chunking.Strategy)
	}

	if len(c.Chunking.HierarchicalSizes) == 0 {
		return fmt.Errorf("hierarchical chunk sizes cannot be empty")
	}
	for _, size := range c.Chunking.HierarchicalSizes {
		if size <= 0 {
			return fmt.Errorf("chunk size must be positive: %d", size)
		}
		if c.Chunking.Overlap >= size {
			return fmt.Errorf("overlap %d must be smaller than chunk size %d", c.Chunking.Overlap, size)
		}
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative: %d", c.Chunking.Overlap)
	}
	if c.Chunking.RecursiveSize <= 0 || c.Chunking.RecursiveOverlap < 0 || c.Chunking.RecursiveOverlap >= c.Chunking.RecursiveSize {
		return fmt.Errorf("invalid recursive chunking parameters: size %d overlap %d", c.Chunking.RecursiveSize, c.Chunking.RecursiveOverlap)
	}

	if c.Query.TopK <= 0 {
		return fmt.Errorf("top_k must be positive: %d", c.Query.TopK)
	}
	if c.Query.ExpansionCount < 0 {
		return fmt.Errorf("expansion_count must be non-negative: %d", c.Query.ExpansionCount)
	}
	if c.Query.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must be non-negative: %d", c.Query.HistoryLimit)
	}

	return nil
}

// AllowedExtension reports whether the suffix after the final dot is on
// the allow-list, matched case-insensitively.
func (c *Config) AllowedExtension(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, allowed := range c.Upload.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

func ensureDir(dir string) {
	if dir == "" || dir == "." || dir == "/" {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: failed to create directory %s: %v", dir, err)
	}
}
