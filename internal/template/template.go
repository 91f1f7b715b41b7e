// Package template compiles `{key}` placeholder templates into a split form
// that applies substitutions in a single pass without regular expressions.
//
// Placeholder keys are restricted to [A-Za-z0-9_]. The `{lang:...}` form is
// reserved for pre-processing and kept literal by Compile; `%name%`
// placeholders belong to external expansion and pass through untouched.
package template

import (
	"fmt"
	"strings"
)

// reservedPrefix marks placeholders that must be pre-processed before a
// template reaches the engine.
const reservedPrefix = "lang:"

// Compiled is the precomputed split form of a template.
// Invariant: len(Parts) == len(Keys)+1.
type Compiled struct {
	// Original is the source template string.
	Original string
	// Parts are the static fragments between placeholders.
	Parts []string
	// Keys are the placeholder names, in order of appearance.
	Keys []string
}

// HasPlaceholders reports whether the compiled template contains any
// placeholders.
func (c *Compiled) HasPlaceholders() bool {
	return len(c.Keys) > 0
}

// Apply interleaves the static parts with values. A key absent from values
// is re-emitted verbatim as "{key}" so a later pipeline stage can still
// resolve it.
func (c *Compiled) Apply(values map[string]string) string {
	if len(c.Keys) == 0 {
		return c.Original
	}
	var b strings.Builder
	b.Grow(len(c.Original) + 16*len(c.Keys))
	for i, key := range c.Keys {
		b.WriteString(c.Parts[i])
		if v, ok := values[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteByte('{')
			b.WriteString(key)
			b.WriteByte('}')
		}
	}
	b.WriteString(c.Parts[len(c.Parts)-1])
	return b.String()
}

func isKeyChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' ||
		ch >= 'A' && ch <= 'Z' ||
		ch >= '0' && ch <= '9' ||
		ch == '_'
}

// scan walks the template once and yields the static parts and placeholder
// keys. Brace pairs whose content is not a valid key are kept as literal
// text; strict mode turns them into errors instead.
func scan(s string, strict bool) ([]string, []string, error) {
	var parts, keys []string
	var static strings.Builder
	i := 0
	for i < len(s) {
		ch := s[i]
		if ch != '{' {
			if ch == '}' && strict {
				return nil, nil, fmt.Errorf("unbalanced '}' at offset %d", i)
			}
			static.WriteByte(ch)
			i++
			continue
		}

		end := strings.IndexByte(s[i+1:], '}')
		if end < 0 {
			if strict {
				return nil, nil, fmt.Errorf("unbalanced '{' at offset %d", i)
			}
			static.WriteString(s[i:])
			break
		}
		content := s[i+1 : i+1+end]

		if strings.HasPrefix(content, reservedPrefix) {
			// Reserved form: expanded by the loader before templates reach
			// the engine. Whatever survives stays literal.
			static.WriteString(s[i : i+end+2])
			i += end + 2
			continue
		}

		valid := len(content) > 0
		for j := 0; j < len(content); j++ {
			if !isKeyChar(content[j]) {
				valid = false
				break
			}
		}
		if !valid {
			if strict {
				return nil, nil, fmt.Errorf("invalid placeholder {%s}: keys must match [A-Za-z0-9_]+", content)
			}
			static.WriteString(s[i : i+end+2])
			i += end + 2
			continue
		}

		parts = append(parts, static.String())
		static.Reset()
		keys = append(keys, content)
		i += end + 2
	}
	parts = append(parts, static.String())
	return parts, keys, nil
}

// Compile parses a template into its split form. Compilation never fails:
// malformed brace sequences and reserved {lang:...} placeholders are kept
// as literal text, matching the pass-through behavior of Apply.
func Compile(s string) *Compiled {
	parts, keys, _ := scan(s, false)
	return &Compiled{Original: s, Parts: parts, Keys: keys}
}

// Validate checks template syntax strictly: unbalanced braces and
// placeholder content outside [A-Za-z0-9_] are errors. The reserved
// {lang:...} form is accepted here because it is expanded upstream.
func Validate(s string) error {
	_, _, err := scan(s, true)
	return err
}

// HasPlaceholders reports whether s contains at least one placeholder.
func HasPlaceholders(s string) bool {
	_, keys, err := scan(s, false)
	return err == nil && len(keys) > 0
}

// ExtractKeys returns the placeholder keys of s in order of appearance.
func ExtractKeys(s string) []string {
	_, keys, err := scan(s, false)
	if err != nil {
		return nil
	}
	return keys
}
