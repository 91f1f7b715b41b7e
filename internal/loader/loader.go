// Package loader parses namespace YAML files into flat dotted-key maps.
//
// Nested maps flatten to dotted keys ("menu: {title: X}" becomes
// "menu.title"). Lists of scalars join into a single multiline value;
// callers that need per-line semantics split on '\n'. Non-string scalars
// stringify through the YAML node's literal representation.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openlocale/openlocale/internal/logging"
)

// ListSeparator joins list-of-string values into one scalar.
const ListSeparator = "\n"

// ParseError marks a file that could not be parsed. Namespace loading logs
// it, skips the file and continues with the rest.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadFile parses a single YAML file into a flat dotted-key map.
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse flattens YAML bytes into a dotted-key map. The path parameter is
// only used for error context.
func Parse(data []byte, path string) (map[string]string, error) {
	var root map[string]interface{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	out := make(map[string]string)
	flatten("", root, out)
	return out, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case []interface{}:
			lines := make([]string, 0, len(val))
			for _, item := range val {
				lines = append(lines, scalarString(item))
			}
			out[key] = strings.Join(lines, ListSeparator)
		case nil:
			out[key] = ""
		default:
			out[key] = scalarString(val)
		}
	}
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// LoadNamespace loads every *.yml and *.yaml file in dir and merges the
// results. Files are merged in lexical order so later files win on key
// collisions. Ill-formed files are logged and skipped; the load continues.
// A missing directory yields an empty map.
func LoadNamespace(dir string, logger *logging.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	merged := make(map[string]string)
	for _, name := range files {
		path := filepath.Join(dir, name)
		flat, err := LoadFile(path)
		if err != nil {
			if logger != nil {
				logger.ErrorWithErr("skipping unparseable translation file "+path, err)
			}
			continue
		}
		for k, v := range flat {
			merged[k] = v
		}
	}
	return merged, nil
}
