package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantParts []string
		wantKeys  []string
	}{
		{
			name:      "no placeholders",
			input:     "Hello world",
			wantParts: []string{"Hello world"},
			wantKeys:  nil,
		},
		{
			name:      "single placeholder",
			input:     "Hello {name}!",
			wantParts: []string{"Hello ", "!"},
			wantKeys:  []string{"name"},
		},
		{
			name:      "multiple placeholders",
			input:     "{greeting}, {name}! You have {count} messages.",
			wantParts: []string{"", ", ", "! You have ", " messages."},
			wantKeys:  []string{"greeting", "name", "count"},
		},
		{
			name:      "adjacent placeholders",
			input:     "{a}{b}",
			wantParts: []string{"", "", ""},
			wantKeys:  []string{"a", "b"},
		},
		{
			name:      "percent placeholders untouched",
			input:     "Hello %player_name%",
			wantParts: []string{"Hello %player_name%"},
			wantKeys:  nil,
		},
		{
			name:      "reserved lang placeholder stays literal",
			input:     "{lang:app.hello} world",
			wantParts: []string{"{lang:app.hello} world"},
			wantKeys:  nil,
		},
		{
			name:      "invalid content stays literal",
			input:     "a {b c} d {e}",
			wantParts: []string{"a {b c} d ", ""},
			wantKeys:  []string{"e"},
		},
		{
			name:      "unclosed brace stays literal",
			input:     "oops {name",
			wantParts: []string{"oops {name"},
			wantKeys:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compile(tt.input)
			assert.Equal(t, tt.input, c.Original)
			assert.Equal(t, tt.wantParts, c.Parts)
			assert.Equal(t, tt.wantKeys, c.Keys)
			// parts/keys interleave invariant
			assert.Equal(t, len(c.Keys)+1, len(c.Parts))
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		values map[string]string
		want   string
	}{
		{
			name:   "basic substitution",
			input:  "Hello {name}!",
			values: map[string]string{"name": "Ana"},
			want:   "Hello Ana!",
		},
		{
			name:   "missing value passes through",
			input:  "Hi {name}",
			values: map[string]string{},
			want:   "Hi {name}",
		},
		{
			name:   "partial substitution",
			input:  "{a} and {b}",
			values: map[string]string{"a": "X"},
			want:   "X and {b}",
		},
		{
			name:   "identity for placeholder-free templates",
			input:  "static text",
			values: map[string]string{"name": "unused"},
			want:   "static text",
		},
		{
			name:   "repeated key",
			input:  "{x}{x}",
			values: map[string]string{"x": "ab"},
			want:   "abab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compile(tt.input).Apply(tt.values))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "Hello {name}", false},
		{"no placeholders", "plain", false},
		{"reserved lang allowed", "see {lang:app.other}", false},
		{"unbalanced open", "Hello {name", true},
		{"unbalanced close", "Hello name}", true},
		{"invalid chars", "Hello {na me}", true},
		{"empty key", "Hello {}", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHasPlaceholders(t *testing.T) {
	assert.True(t, HasPlaceholders("Hi {name}"))
	assert.False(t, HasPlaceholders("Hi there"))
	assert.False(t, HasPlaceholders("Hi %name%"))
	assert.False(t, HasPlaceholders("{lang:app.x}"))
}

func TestExtractKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "a"}, ExtractKeys("{a} {b} {a}"))
	assert.Nil(t, ExtractKeys("no placeholders"))
}
