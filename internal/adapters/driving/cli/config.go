package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-core/internal/config"
)

// configDir is overridable for tests; empty means the default location.
var configDir string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View or initialise the configuration file.`,
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func resolveConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	return config.DefaultDir()
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	dir, err := resolveConfigDir()
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	cmd.Printf("Configuration directory: %s\n\n", dir)

	cmd.Println("[storage]")
	cmd.Printf("  data_dir: %s\n\n", cfg.Storage.DataDir)

	cmd.Println("[index]")
	cmd.Printf("  m: %d\n", cfg.Index.M)
	cmd.Printf("  ef_construction: %d\n", cfg.Index.EfConstruction)
	cmd.Printf("  ef_search: %d\n\n", cfg.Index.EfSearch)

	cmd.Println("[embedding]")
	cmd.Printf("  provider: %s\n", cfg.Embedding.Provider)
	cmd.Printf("  model: %s\n", cfg.Embedding.Model)
	cmd.Printf("  base_url: %s\n", cfg.Embedding.BaseURL)
	cmd.Printf("  dimensions: %d\n", cfg.Embedding.Dimensions)
	printAPIKeyStatus(cmd, cfg.Embedding.APIKeyEnv)
	cmd.Println()

	cmd.Println("[llm]")
	cmd.Printf("  provider: %s\n", cfg.LLM.Provider)
	cmd.Printf("  model: %s\n", cfg.LLM.Model)
	cmd.Printf("  base_url: %s\n", cfg.LLM.BaseURL)
	printAPIKeyStatus(cmd, cfg.LLM.APIKeyEnv)
	cmd.Println()

	cmd.Println("[chunking]")
	cmd.Printf("  size: %d\n", cfg.Chunking.Size)
	cmd.Printf("  overlap: %d\n\n", cfg.Chunking.Overlap)

	cmd.Println("[retrieval]")
	cmd.Printf("  match_count: %d\n", cfg.Retrieval.MatchCount)
	cmd.Printf("  threshold: %.2f\n", cfg.Retrieval.Threshold)
	cmd.Printf("  oversample: %d\n\n", cfg.Retrieval.Oversample)

	cmd.Println("[chat]")
	cmd.Printf("  history_limit: %d\n", cfg.Chat.HistoryLimit)

	return nil
}

func printAPIKeyStatus(cmd *cobra.Command, keyEnv string) {
	if keyEnv == "" {
		return
	}
	status := "not set"
	if os.Getenv(keyEnv) != "" {
		status = "set"
	}
	cmd.Printf("  api_key_env: %s (%s)\n", keyEnv, status)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	dir, err := resolveConfigDir()
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}

	path := filepath.Join(dir, config.DefaultFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.Save(dir, config.Default()); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	cmd.Printf("Wrote default configuration to %s\n", path)
	return nil
}
