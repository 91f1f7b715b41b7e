package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/openlocale/openlocale/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(lang, ns, key, text string) *models.Translation {
	return &models.Translation{Namespace: ns, Key: key, Language: lang, Text: text}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(entry("pt_br", "app", "hello", "Olá")))

	got := r.Get("pt_br", "app", "hello")
	require.NotNil(t, got)
	assert.Equal(t, "Olá", got.Text)

	assert.Nil(t, r.Get("en_us", "app", "hello"))
	assert.Nil(t, r.Get("pt_br", "other", "hello"))
	assert.Equal(t, 1, r.Size())
}

func TestRegisterUpsert(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(entry("pt_br", "app", "hello", "Olá")))
	require.NoError(t, r.Register(entry("pt_br", "app", "hello", "Oi")))

	assert.Equal(t, 1, r.Size())
	assert.Equal(t, "Oi", r.Get("pt_br", "app", "hello").Text)
}

func TestRegisterValidates(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(entry("PT_BR", "app", "hello", "x")))
	assert.Error(t, r.Register(entry("pt_br", "", "hello", "x")))
}

func TestUnregister(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(entry("pt_br", "app", "hello", "Olá")))

	removed := r.Unregister("pt_br", "app", "hello")
	require.NotNil(t, removed)
	assert.Equal(t, "Olá", removed.Text)
	assert.Equal(t, 0, r.Size())
	assert.Empty(t, r.Namespaces())

	assert.Nil(t, r.Unregister("pt_br", "app", "hello"))
}

func TestClearNamespace(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(entry("pt_br", "app", "a", "1")))
	require.NoError(t, r.Register(entry("en_us", "app", "a", "2")))
	require.NoError(t, r.Register(entry("pt_br", "shop", "b", "3")))

	removed := r.ClearNamespace("app")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, r.Size())
	assert.Equal(t, []string{"shop"}, r.Namespaces())
	assert.Equal(t, 0, r.CountFor("app"))
	assert.Equal(t, 1, r.CountFor("shop"))
}

func TestReplaceNamespace(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(entry("pt_br", "app", "welcome", "A")))
	require.NoError(t, r.Register(entry("pt_br", "shop", "x", "keep")))

	r.ReplaceNamespace("app", []*models.Translation{
		entry("pt_br", "app", "welcome", "B"),
		entry("en_us", "app", "welcome", "C"),
		entry("pt_br", "other", "skipped", "not app"), // wrong namespace is ignored
	})

	assert.Equal(t, "B", r.Get("pt_br", "app", "welcome").Text)
	assert.Equal(t, "C", r.Get("en_us", "app", "welcome").Text)
	assert.Equal(t, "keep", r.Get("pt_br", "shop", "x").Text)
	assert.Nil(t, r.Get("pt_br", "other", "skipped"))
	assert.Equal(t, 2, r.CountFor("app"))
}

// Readers racing a ReplaceNamespace must observe either the complete old or
// the complete new view, never a torn mix.
func TestReplaceNamespaceAtomicity(t *testing.T) {
	r := New()
	r.ReplaceNamespace("app", []*models.Translation{
		entry("pt_br", "app", "k1", "old"),
		entry("pt_br", "app", "k2", "old"),
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			gen := fmt.Sprintf("gen%d", i)
			r.ReplaceNamespace("app", []*models.Translation{
				entry("pt_br", "app", "k1", gen),
				entry("pt_br", "app", "k2", gen),
			})
		}
	}()

	for i := 0; i < 2000; i++ {
		a := r.Get("pt_br", "app", "k1")
		b := r.Get("pt_br", "app", "k2")
		require.NotNil(t, a)
		require.NotNil(t, b)
	}
	close(stop)
	wg.Wait()

	// After the writer stops, both keys agree on the generation.
	assert.Equal(t, r.Get("pt_br", "app", "k1").Text, r.Get("pt_br", "app", "k2").Text)
}

func TestSnapshotIsCopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(entry("pt_br", "app", "hello", "Olá")))

	snap := r.Snapshot("pt_br", "app")
	require.Len(t, snap, 1)
	snap["hello"].Text = "mutated"

	assert.Equal(t, "Olá", r.Get("pt_br", "app", "hello").Text)
}

func TestLanguages(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(entry("pt_br", "app", "a", "1")))
	require.NoError(t, r.Register(entry("en_us", "app", "a", "2")))
	assert.Equal(t, []string{"en_us", "pt_br"}, r.Languages())
}
