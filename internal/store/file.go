package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// load reads and decodes the document. A missing file yields an empty
// document; a corrupt one is logged and treated as empty rather than blocking
// every subsequent operation.
func (s *Store) load() *document {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("store: read document failed", slog.String("file", s.file), slog.String("error", err.Error()))
		}
		return newDocument()
	}

	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		slog.Warn("store: document is corrupt, starting empty", slog.String("file", s.file), slog.String("error", err.Error()))
		return newDocument()
	}
	if doc.Workspaces == nil {
		doc.Workspaces = map[string]*Record{}
	}
	return doc
}

// save atomically persists the document: tmp file → fsync → rename.
func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".draftforge-tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.file); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	success = true
	return nil
}
