package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/loader"
	"github.com/custodia-labs/sercha-core/internal/watcher"
)

var ingestTitle string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest documents into the index",
	Long: `Reads one or more files or directories and ingests their content.

Supported formats: plain text (.txt), Markdown (.md) and PDF (.pdf).
Directories are walked recursively; hidden files are skipped.
Re-ingesting the same path replaces the previous version.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (single file only)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if ingestTitle != "" && len(args) > 1 {
		return errors.New("--title applies to a single file")
	}

	var ingested, skipped int
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			n, s, err := ingestDir(cmd, path)
			if err != nil {
				return err
			}
			ingested += n
			skipped += s
			continue
		}

		if !loader.Supported(path) {
			return fmt.Errorf("unsupported file type: %s", path)
		}
		if err := ingestFile(cmd, path); err != nil {
			return err
		}
		ingested++
	}

	cmd.Printf("Ingested %d documents", ingested)
	if skipped > 0 {
		cmd.Printf(" (%d unsupported files skipped)", skipped)
	}
	cmd.Println()
	return nil
}

func ingestDir(cmd *cobra.Command, root string) (ingested, skipped int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if path != root && len(base) > 1 && base[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if len(base) > 1 && base[0] == '.' {
			return nil
		}
		if !loader.Supported(path) {
			skipped++
			return nil
		}
		if err := ingestFile(cmd, path); err != nil {
			return err
		}
		ingested++
		return nil
	})
	return ingested, skipped, err
}

func ingestFile(cmd *cobra.Command, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	title, content, err := loader.Load(abs)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if ingestTitle != "" {
		title = ingestTitle
	}

	docID := watcher.DocumentID(abs)

	// Stable ids mean re-ingestion replaces the earlier version.
	if err := ingestService.Delete(cmd.Context(), docID); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	id, err := ingestService.Ingest(cmd.Context(), driving.IngestRequest{
		DocumentID: docID,
		Title:      title,
		SourceKind: "file",
		SourceURI:  "file://" + abs,
		Content:    content,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	cmd.Printf("  %s  %s\n", id, path)
	return nil
}
