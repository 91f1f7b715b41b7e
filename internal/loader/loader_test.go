package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openlocale/openlocale/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlattensNestedMaps(t *testing.T) {
	data := []byte(`
menu:
  title: "Main Menu"
  items:
    save: "Save"
    cancel: "Cancel"
hello: "Hi"
`)
	flat, err := Parse(data, "test.yml")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"menu.title":        "Main Menu",
		"menu.items.save":   "Save",
		"menu.items.cancel": "Cancel",
		"hello":             "Hi",
	}, flat)
}

func TestParseListsJoinToMultiline(t *testing.T) {
	data := []byte(`
lore:
  - "First line"
  - "Second line"
  - "Third line"
`)
	flat, err := Parse(data, "test.yml")
	require.NoError(t, err)
	assert.Equal(t, "First line\nSecond line\nThird line", flat["lore"])
}

func TestParseScalarCoercion(t *testing.T) {
	data := []byte(`
count: 42
flag: true
empty:
`)
	flat, err := Parse(data, "test.yml")
	require.NoError(t, err)
	assert.Equal(t, "42", flat["count"])
	assert.Equal(t, "true", flat["flag"])
	assert.Equal(t, "", flat["empty"])
}

func TestParsePluralSuffixKeysStayDistinct(t *testing.T) {
	data := []byte(`
items:
  one: "1 item"
  other: "{count} items"
`)
	flat, err := Parse(data, "test.yml")
	require.NoError(t, err)
	assert.Equal(t, "1 item", flat["items.one"])
	assert.Equal(t, "{count} items", flat["items.other"])
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("a: [unclosed"), "bad.yml")
	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad.yml", perr.Path)
}

func TestLoadNamespaceMergesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("hello: A\nshared: from-a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("bye: B\nshared: from-b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	merged, err := LoadNamespace(dir, logging.GetLogger("test"))
	require.NoError(t, err)

	assert.Equal(t, "A", merged["hello"])
	assert.Equal(t, "B", merged["bye"])
	// lexical order: b.yml wins
	assert.Equal(t, "from-b", merged["shared"])
}

func TestLoadNamespaceSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte(": : :"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yml"), []byte("hello: Hi"), 0o644))

	merged, err := LoadNamespace(dir, logging.GetLogger("test"))
	require.NoError(t, err)
	assert.Equal(t, "Hi", merged["hello"])
}

func TestLoadNamespaceMissingDir(t *testing.T) {
	merged, err := LoadNamespace(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, merged)
}
