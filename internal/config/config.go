// Package config provides configuration loading and structs for the sitebrain server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Worker    WorkerConfig    `yaml:"worker"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EmbeddingConfig holds external embedding provider settings.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// SearchConfig holds chunking and retrieval settings.
type SearchConfig struct {
	ChunkSize       int `yaml:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap"`
	TopK            int `yaml:"top_k"`
	PrefilterLimit  int `yaml:"prefilter_limit"`
	ScanLimit       int `yaml:"scan_limit"`
	ContextMaxChars int `yaml:"context_max_chars"`
}

// IndexingConfig holds the host-supplied template allow-list and field slots.
// Both values accept either a delimited string or a YAML list.
type IndexingConfig struct {
	ContextTemplates StringList `yaml:"context_templates"`
	ContextFields    StringList `yaml:"context_fields"`
}

// WorkerConfig holds ingestion worker settings.
type WorkerConfig struct {
	LeaseSeconds  int           `yaml:"lease_seconds"`
	MaxIterations int           `yaml:"max_iterations"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxAttempts   int           `yaml:"max_attempts"` // 0 = retry failed documents indefinitely
}

// WatchConfig holds drop-directory watch settings for external file ingestion.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// StringList is a []string that also unmarshals from a single delimited scalar,
// matching the loosely structured values the CMS host hands over.
type StringList []string

// UnmarshalYAML accepts either a sequence of strings or one scalar string.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = StringList(items)
		return nil
	default:
		return fmt.Errorf("context list must be a string or a list of strings")
	}
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
