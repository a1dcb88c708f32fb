// Package config loads and validates the assistant configuration.
//
// Resolution order: built-in defaults, then the YAML config file, then
// CARA_* environment variables (highest priority).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	apperrors "github.com/prajwal-28/context-aware-research-assistant/internal/errors"
)

// DefaultConfigName is the config file name looked up in the data directory.
const DefaultConfigName = "cara.yaml"

// Config represents the complete assistant configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Synthesis  SynthesisConfig  `yaml:"synthesis" json:"synthesis"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataDir holds the vector index, graph database, and lock files.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// UploadsDir is watched for new documents when --watch is enabled.
	UploadsDir string `yaml:"uploads_dir" json:"uploads_dir"`
}

// RetrievalConfig configures the hybrid retrieval engine.
type RetrievalConfig struct {
	// TopK is the default number of vector results per query.
	TopK int `yaml:"top_k" json:"top_k"`

	// MaxHops is the default graph traversal depth.
	MaxHops int `yaml:"max_hops" json:"max_hops"`

	// FanoutLimit caps neighbors expanded per node per hop.
	// 0 disables the cap.
	FanoutLimit int `yaml:"fanout_limit" json:"fanout_limit"`

	// FetchWorkers bounds concurrent edge fetches during expansion.
	FetchWorkers int `yaml:"fetch_workers" json:"fetch_workers"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama" or "static".
	// Empty auto-detects: Ollama if reachable, static otherwise.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the number of query embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// SynthesisConfig configures LLM answer synthesis.
type SynthesisConfig struct {
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	// MaxContextChars truncates each context item in the prompt.
	MaxContextChars int `yaml:"max_context_chars" json:"max_context_chars"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	ChunkSize     int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap" json:"chunk_overlap"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// DefaultDataDir returns the default data directory (~/.cara).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cara")
	}
	return filepath.Join(home, ".cara")
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:    DefaultDataDir(),
			UploadsDir: "uploads",
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			MaxHops:      2,
			FanoutLimit:  25,
			FetchWorkers: 4,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "",
			Model:      "nomic-embed-text",
			Dimensions: 0, // auto-detect from the embedder
			BatchSize:  32,
			OllamaHost: "",
			CacheSize:  1000,
		},
		Synthesis: SynthesisConfig{
			Model:           "qwen3:0.6b",
			OllamaHost:      "",
			Timeout:         "60s",
			MaxContextChars: 500,
		},
		Ingest: IngestConfig{
			ChunkSize:     1024,
			ChunkOverlap:  200,
			WatchDebounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "",
		},
	}
}

// Load reads configuration from path, merging over defaults and applying
// environment overrides. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, apperrors.New(apperrors.ErrCodeConfigNotFound,
				fmt.Sprintf("cannot read config file %s", path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.ConfigError(
				fmt.Sprintf("invalid YAML in %s", path), err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return apperrors.ConfigError("cannot marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.ConfigError("cannot create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.ConfigError("cannot write config file", err)
	}
	return nil
}

// applyEnvOverrides applies CARA_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CARA_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("CARA_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("CARA_MAX_HOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.MaxHops = n
		}
	}
	if v := os.Getenv("CARA_FANOUT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.FanoutLimit = n
		}
	}
	if v := os.Getenv("CARA_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Synthesis.OllamaHost = v
	}
	if v := os.Getenv("CARA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Retrieval.TopK < 1 {
		return apperrors.ConfigError(
			fmt.Sprintf("retrieval.top_k must be >= 1, got %d", c.Retrieval.TopK), nil)
	}
	if c.Retrieval.MaxHops < 1 {
		return apperrors.ConfigError(
			fmt.Sprintf("retrieval.max_hops must be >= 1, got %d", c.Retrieval.MaxHops), nil)
	}
	if c.Retrieval.FanoutLimit < 0 {
		return apperrors.ConfigError(
			fmt.Sprintf("retrieval.fanout_limit must be >= 0, got %d", c.Retrieval.FanoutLimit), nil)
	}
	if c.Retrieval.FetchWorkers < 1 {
		return apperrors.ConfigError(
			fmt.Sprintf("retrieval.fetch_workers must be >= 1, got %d", c.Retrieval.FetchWorkers), nil)
	}
	if c.Ingest.ChunkSize <= 0 {
		return apperrors.ConfigError(
			fmt.Sprintf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize), nil)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return apperrors.ConfigError(
			fmt.Sprintf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap), nil)
	}
	if c.Embeddings.BatchSize < 1 {
		return apperrors.ConfigError(
			fmt.Sprintf("embeddings.batch_size must be >= 1, got %d", c.Embeddings.BatchSize), nil)
	}
	return nil
}

// ConfigPath returns the path of the config file inside the data directory.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Paths.DataDir, DefaultConfigName)
}

// VectorIndexPath returns the vector index file location.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.Paths.DataDir, "vectors.hnsw")
}

// GraphDBPath returns the SQLite graph database location.
func (c *Config) GraphDBPath() string {
	return filepath.Join(c.Paths.DataDir, "graph.db")
}
