package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/sitebrain/data/db/sitebrain.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/sitebrain/data/indices/bleve"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "SITEBRAIN_API_KEY"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 1200
	}
	if cfg.Search.ChunkOverlap == 0 {
		cfg.Search.ChunkOverlap = 150
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 6
	}
	if cfg.Search.PrefilterLimit == 0 {
		cfg.Search.PrefilterLimit = 60
	}
	if cfg.Search.ScanLimit == 0 {
		cfg.Search.ScanLimit = 200
	}
	if cfg.Search.ContextMaxChars == 0 {
		cfg.Search.ContextMaxChars = 2400
	}
	if cfg.Worker.LeaseSeconds == 0 {
		cfg.Worker.LeaseSeconds = 60
	}
	if cfg.Worker.MaxIterations == 0 {
		cfg.Worker.MaxIterations = 25
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 2 * time.Second
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".html", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
