// Package watcher keeps a directory tree mirrored into the document
// store: supported files are ingested on create and write, and removed
// when the file disappears.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/loader"
	"github.com/custodia-labs/sercha-core/internal/logger"
)

// Watcher mirrors one directory tree into the ingest service.
type Watcher struct {
	ingest driving.IngestService
	root   string
	fw     *fsnotify.Watcher
}

// New creates a watcher over the given root directory.
func New(ingest driving.IngestService, root string) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &Watcher{
		ingest: ingest,
		root:   abs,
		fw:     fw,
	}, nil
}

// Run scans the tree once, then processes filesystem events until the
// context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(ctx, w.root); err != nil {
		return err
	}
	logger.Info("Watching %s", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// DocumentID derives the stable document id for a file path, so the
// same file maps to the same document across restarts.
func DocumentID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// addRecursive watches dir and every subdirectory, ingesting the
// supported files found along the way.
func (w *Watcher) addRecursive(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if isHidden(path) {
			if d.IsDir() && path != w.root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.fw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if loader.Supported(path) {
			w.reingest(ctx, path)
		}
		return nil
	})
}

// handleEvent reacts to one filesystem event. Directories and hidden
// paths are skipped; chmod-only events carry no content change.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	if isHidden(path) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addRecursive(ctx, path); err != nil {
				logger.Warn("watching new directory %s: %v", path, err)
			}
			return
		}
		if loader.Supported(path) {
			w.reingest(ctx, path)
		}
	case event.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		if loader.Supported(path) {
			w.reingest(ctx, path)
		}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if !loader.Supported(path) {
			return
		}
		if err := w.ingest.Delete(ctx, DocumentID(path)); err != nil {
			logger.Warn("removing %s: %v", path, err)
		}
	}
}

// reingest replaces the document for a file with freshly loaded
// content. The delete first frees the chunk position slots.
func (w *Watcher) reingest(ctx context.Context, path string) {
	title, content, err := loader.Load(path)
	if err != nil {
		logger.Warn("loading %s: %v", path, err)
		return
	}

	docID := DocumentID(path)
	if err := w.ingest.Delete(ctx, docID); err != nil {
		logger.Warn("replacing %s: %v", path, err)
		return
	}

	_, err = w.ingest.Ingest(ctx, driving.IngestRequest{
		DocumentID: docID,
		Title:      title,
		SourceKind: "file",
		SourceURI:  "file://" + path,
		Content:    content,
	})
	if err != nil {
		logger.Warn("ingesting %s: %v", path, err)
		return
	}
	logger.Debug("ingested %s", path)
}

// isHidden reports whether any path element starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
