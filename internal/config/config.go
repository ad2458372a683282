// Package config provides configuration loading for the kotaeru server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Collection CollectionConfig `yaml:"collection"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the record database, the keyword index,
// and the uploaded-documents directory.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	DocumentsDir     string `yaml:"documents_dir"`
}

// CollectionConfig names the vector collection.
type CollectionConfig struct {
	Name string `yaml:"name"`
}

// ChunkingConfig holds text splitting parameters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "local" (ONNX), "openai", or "mock".
	Provider   string `yaml:"provider"`
	Dimensions int    `yaml:"dimensions"`
	// ModelPath is the ONNX model file for the local provider.
	ModelPath string `yaml:"model_path"`
	// Model is the API model name for the openai provider.
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
	CacheSize int    `yaml:"cache_size"`
}

// LLMConfig selects and tunes the answer generator.
type LLMConfig struct {
	// Provider is one of "openai", "anthropic", or "mock".
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// RetrievalConfig holds answer retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// IngestConfig holds ingestion behavior settings.
type IngestConfig struct {
	// OnDuplicate is "append" (default) or "skip".
	OnDuplicate string `yaml:"on_duplicate"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to
// true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, and
// expands "./"-relative paths against the config file's directory. Other
// relative paths stay relative to the working directory, matching how
// the default data/ layout is used.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.DocumentsDir = expandPath(cfg.Storage.DocumentsDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory
// add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath makes "./"-prefixed paths absolute relative to configDir.
// Absolute paths and plain relative paths are returned unchanged.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	return path
}

// OpenAIAPIKey returns the OpenAI key from the environment. The legacy
// spelling OPEN_AI_API_KEY is accepted for compatibility with older
// deployments.
func OpenAIAPIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPEN_AI_API_KEY")
}

// AnthropicAPIKey returns the Anthropic key from the environment.
func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}
