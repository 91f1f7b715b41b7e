// Package extract pulls translatable strings out of foreign YAML files
// (inventory layouts, message catalogs) and emits source YAML documents
// for the namespace loader.
package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Extractor derives a translatable document from a parsed YAML tree.
type Extractor interface {
	Extract(doc map[string]any) map[string]any
}

// ParseFile reads and parses a YAML file into a generic tree.
func ParseFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// AllExtractor copies the entire tree. Used for message catalogs where
// every value is translatable.
type AllExtractor struct{}

func (AllExtractor) Extract(doc map[string]any) map[string]any {
	return deepCopy(doc)
}

// FieldExtractor copies values whose key matches the whitelist, at their
// full path, recursing into sub-maps regardless of the parent key.
type FieldExtractor struct {
	Whitelist []string
}

func (e FieldExtractor) Extract(doc map[string]any) map[string]any {
	allowed := make(map[string]struct{}, len(e.Whitelist))
	for _, k := range e.Whitelist {
		allowed[k] = struct{}{}
	}
	out := extractFields(doc, allowed)
	if out == nil {
		return map[string]any{}
	}
	return out
}

func extractFields(node map[string]any, allowed map[string]struct{}) map[string]any {
	var out map[string]any
	put := func(key string, value any) {
		if out == nil {
			out = make(map[string]any)
		}
		out[key] = value
	}
	for key, value := range node {
		if child, ok := asMap(value); ok {
			if sub := extractFields(child, allowed); sub != nil {
				put(key, sub)
			}
			continue
		}
		if _, ok := allowed[key]; ok {
			put(key, deepCopyValue(value))
		}
	}
	return out
}

// asMap normalizes the two map shapes yaml.v3 can produce.
func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func deepCopy(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(value any) any {
	if m, ok := asMap(value); ok {
		return deepCopy(m)
	}
	if list, ok := value.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = deepCopyValue(item)
		}
		return out
	}
	return value
}
