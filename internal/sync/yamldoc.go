package sync

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openlocale/openlocale/internal/loader"
)

// BuildDocument turns flat dotted keys into a nested YAML document.
// Dot-path insertion: "errors.not-found" becomes errors: {not-found: ...}.
// A scalar occupying an intermediate path segment is replaced by a map;
// the remote file mirrors whichever shape was written last.
func BuildDocument(entries map[string]string) map[string]any {
	root := make(map[string]any)
	for key, value := range entries {
		segments := strings.Split(key, ".")
		node := root
		for _, segment := range segments[:len(segments)-1] {
			child, ok := node[segment].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[segment] = child
			}
			node = child
		}
		leaf := segments[len(segments)-1]
		if _, occupied := node[leaf].(map[string]any); !occupied {
			node[leaf] = splitList(value)
		}
	}
	return root
}

// splitList restores multi-line scalars to YAML lists, the inverse of the
// loader's list joining.
func splitList(value string) any {
	if !strings.Contains(value, loader.ListSeparator) {
		return value
	}
	lines := strings.Split(value, loader.ListSeparator)
	out := make([]any, len(lines))
	for i, line := range lines {
		out[i] = line
	}
	return out
}

// MarshalDocument serializes the nested document with stable key order.
func MarshalDocument(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ArchiveEntry is one translated namespace file from a build archive.
type ArchiveEntry struct {
	Language  string
	Namespace string
	Entries   map[string]string
}

// ParseArchive walks a build archive and returns the entries whose locale
// maps to an internal language. Entry paths start with the remote locale
// segment ("pt-BR/lobby-1/app/app.yml"); the namespace is the file's base
// name. Unmapped locales and unparseable files are skipped.
func ParseArchive(data []byte, localeMapping map[string]string) ([]ArchiveEntry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open build archive: %w", err)
	}

	var out []ArchiveEntry
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(file.Name, "/")
		if !strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml") {
			continue
		}
		segments := strings.Split(name, "/")
		if len(segments) < 2 {
			continue
		}
		lang, ok := localeMapping[segments[0]]
		if !ok {
			continue
		}
		base := segments[len(segments)-1]
		ns := strings.TrimSuffix(strings.TrimSuffix(base, ".yml"), ".yaml")

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read archive entry %s: %w", file.Name, err)
		}

		entries, err := loader.Parse(content, file.Name)
		if err != nil {
			continue
		}
		out = append(out, ArchiveEntry{Language: lang, Namespace: ns, Entries: entries})
	}
	return out, nil
}
