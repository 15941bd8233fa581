// Package loader reads source files into plain text ready for
// ingestion. Plain text and markdown pass through as-is; PDF text is
// extracted page by page.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// Supported file extensions.
var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".pdf": true,
}

// Supported reports whether the loader can extract text from the file.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load reads a file and returns its text content plus a display title
// derived from the filename.
func Load(path string) (title, content string, err error) {
	title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		content, err = loadText(path)
	case ".pdf":
		content, err = loadPDF(path)
	default:
		return "", "", fmt.Errorf("%w: unsupported file type %q",
			domain.ErrInvalidInput, filepath.Ext(path))
	}
	if err != nil {
		return "", "", err
	}
	return title, content, nil
}

func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

func loadPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	text := buf.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text extracted from pdf", domain.ErrInvalidInput)
	}
	return text, nil
}
