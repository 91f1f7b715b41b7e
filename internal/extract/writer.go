package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/openlocale/openlocale/internal/logging"
)

// Writer materializes extracted documents as namespace language files.
// The source language file is always overwritten so it tracks the foreign
// file; other language files are created only when absent, preserving
// human translations.
type Writer struct {
	root           string
	sourceLanguage string
	languages      []string
	logger         *logging.Logger
}

// NewWriter creates a writer over the translations root directory.
func NewWriter(root, sourceLanguage string, languages []string) *Writer {
	return &Writer{
		root:           root,
		sourceLanguage: sourceLanguage,
		languages:      languages,
		logger:         logging.GetLogger("extract"),
	}
}

// WriteNamespace writes doc as <root>/<lang>/<ns>/<filename> for every
// configured language, honoring the overwrite policy. Returns the number
// of files written.
func (w *Writer) WriteNamespace(ns, filename string, doc map[string]any) (int, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal extracted document for %s: %w", ns, err)
	}

	written := 0
	for _, lang := range w.languages {
		path := filepath.Join(w.root, lang, ns, filename)
		if lang != w.sourceLanguage {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written++
	}
	w.logger.Debug("extracted %s/%s to %d language files", ns, filename, written)
	return written, nil
}
