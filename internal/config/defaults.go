package config

// Default returns a configuration with every default applied, for use
// when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "data/kotaeru.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "data/keyword.bleve"
	}
	if cfg.Storage.DocumentsDir == "" {
		cfg.Storage.DocumentsDir = "data/documents"
	}
	if cfg.Collection.Name == "" {
		cfg.Collection.Name = "documents"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "local"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-5-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Ingest.OnDuplicate == "" {
		cfg.Ingest.OnDuplicate = "append"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{
			".txt", ".md", ".rst", ".pdf", ".doc", ".docx",
			".xlsx", ".pptx", ".odt", ".odp", ".ods", ".rtf",
		}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
