// Package config loads and saves the TOML configuration file that
// wires storage, index, embedding, generation, chunking and retrieval
// settings together.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is the config file name inside the config directory.
const DefaultFileName = "config.toml"

// Config is the full application configuration.
type Config struct {
	Storage   Storage   `toml:"storage"`
	Index     Index     `toml:"index"`
	Embedding Embedding `toml:"embedding"`
	LLM       LLM       `toml:"llm"`
	Chunking  Chunking  `toml:"chunking"`
	Retrieval Retrieval `toml:"retrieval"`
	Chat      Chat      `toml:"chat"`
}

// Storage configures the SQLite store location.
type Storage struct {
	// DataDir holds the database file. Empty selects ~/.sercha/data.
	DataDir string `toml:"data_dir"`
}

// Index configures the in-memory vector index.
type Index struct {
	M              int `toml:"m"`
	EfConstruction int `toml:"ef_construction"`
	EfSearch       int `toml:"ef_search"`
}

// Embedding configures the embedding provider.
type Embedding struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	// APIKeyEnv names the environment variable holding the API key for
	// hosted providers. The key itself never lands in the config file.
	APIKeyEnv         string  `toml:"api_key_env"`
	Dimensions        int     `toml:"dimensions"`
	TimeoutSecs       int     `toml:"timeout_secs"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// LLM configures the answer generator.
type LLM struct {
	// Provider is "ollama" or "openai".
	Provider    string `toml:"provider"`
	BaseURL     string `toml:"base_url"`
	Model       string `toml:"model"`
	APIKeyEnv   string `toml:"api_key_env"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// Chunking configures the text splitter.
type Chunking struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// Retrieval configures similarity search defaults.
type Retrieval struct {
	MatchCount int     `toml:"match_count"`
	Threshold  float64 `toml:"threshold"`
	Oversample int     `toml:"oversample"`
}

// Chat configures answer orchestration.
type Chat struct {
	// HistoryLimit is the number of recent turns handed to the generator.
	HistoryLimit int `toml:"history_limit"`
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		Index: Index{
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
		},
		Embedding: Embedding{
			Provider:          "ollama",
			Model:             "nomic-embed-text",
			Dimensions:        768,
			TimeoutSecs:       30,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		LLM: LLM{
			Provider:    "ollama",
			Model:       "llama3.2",
			TimeoutSecs: 120,
		},
		Chunking: Chunking{
			Size:    700,
			Overlap: 100,
		},
		Retrieval: Retrieval{
			MatchCount: 5,
			Threshold:  0.5,
			Oversample: 2,
		},
		Chat: Chat{
			HistoryLimit: 6,
		},
	}
}

// DefaultDir returns the default config directory (~/.sercha).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".sercha"), nil
}

// Load reads the config file under configDir, filling in defaults for
// anything missing. A missing file yields the defaults.
func Load(configDir string) (Config, error) {
	cfg := Default()

	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return cfg, err
		}
		configDir = dir
	}

	data, err := os.ReadFile(filepath.Join(configDir, DefaultFileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config file under configDir, creating the directory
// if needed.
func Save(configDir string, cfg Config) error {
	if configDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		configDir = dir
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, DefaultFileName), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
