package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the passage retrieval tool.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Index    IndexConfig    `yaml:"index"`
	Retrieve RetrieveConfig `yaml:"retrieve"`
	Elastic  ElasticConfig  `yaml:"elastic"`
	Serve    ServeConfig    `yaml:"serve"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CorpusConfig holds corpus loading configuration. Path may point at a
// JSON mapping or at a directory of text files; includes and excludes
// only apply to directories.
type CorpusConfig struct {
	Path     string   `yaml:"path"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// IndexConfig holds sparse index configuration.
type IndexConfig struct {
	NGramMin    int `yaml:"ngram_min"`
	NGramMax    int `yaml:"ngram_max"`
	MaxFeatures int `yaml:"max_features"`
	AnnoyTrees  int `yaml:"annoy_trees"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	Strategy     string `yaml:"strategy"` // "sparse", "annoy", "elastic"
	TopK         int    `yaml:"top_k"`
	ExampleQuery string `yaml:"example_query"`
}

// ElasticConfig holds document store configuration.
type ElasticConfig struct {
	URL          string `yaml:"url"`
	Index        string `yaml:"index"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	Retries      int    `yaml:"retries"`
	SettingsPath string `yaml:"settings_path"`
}

// ServeConfig holds HTTP server configuration. Cached rankings are
// dropped whenever documents are appended or deleted through the API.
type ServeConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_sec"`
	CacheSize       int `yaml:"cache_size"`
	CacheTTLSec     int `yaml:"cache_ttl_sec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Format string `yaml:"format"` // "console" or "json"
	Level  string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Path:     "data/wikipedia_documents.json",
			Includes: []string{"**/*.txt"},
			Excludes: []string{"**/.*/**"},
		},
		Index: IndexConfig{
			NGramMin:    1,
			NGramMax:    2,
			MaxFeatures: 50000,
			AnnoyTrees:  64,
		},
		Retrieve: RetrieveConfig{
			Strategy: "sparse",
			TopK:     10,
		},
		Elastic: ElasticConfig{
			URL:          "http://localhost:9200",
			Index:        "origin-meeting-wiki",
			TimeoutSec:   30,
			Retries:      10,
			SettingsPath: "setting.json",
		},
		Serve: ServeConfig{
			Port:            8080,
			ReadTimeoutSec:  10,
			WriteTimeoutSec: 30,
			ShutdownSec:     10,
			CacheSize:       256,
			CacheTTLSec:     300,
		},
		Logging: LoggingConfig{
			Format: "console",
			Level:  "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for passage.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try passage.yaml in the directory
	path := filepath.Join(dir, "passage.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .passage/config.yaml
	path = filepath.Join(dir, ".passage", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDir returns the directory holding built artifacts for a root.
func DataDir(dir string) string {
	return filepath.Join(dir, ".passage")
}

// ModelPath returns the path to the fitted vectorizer artifact.
func ModelPath(dir string) string {
	return filepath.Join(DataDir(dir), "tfidv.bin")
}

// MatrixPath returns the path to the document matrix artifact.
func MatrixPath(dir string) string {
	return filepath.Join(DataDir(dir), "sparse_embedding.bin")
}

// AnnoyPath returns the path to the approximate index sidecar.
func AnnoyPath(dir string) string {
	return filepath.Join(DataDir(dir), "vectors.ann")
}

// SnapshotPath returns the path to the corpus snapshot database.
func SnapshotPath(dir string) string {
	return filepath.Join(DataDir(dir), "corpus.db")
}

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
