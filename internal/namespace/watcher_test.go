package namespace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnFileChange(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "pt_br", "app", "messages.yml", "hello: Olá")
	require.NoError(t, f.manager.Register(context.Background(), "app", ""))

	w := NewWatcher(f.manager)
	w.debounce = 50 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	}()

	f.writeFile(t, "pt_br", "app", "messages.yml", "hello: Oi")

	require.Eventually(t, func() bool {
		tr := f.registry.Get("pt_br", "app", "hello")
		return tr != nil && tr.Text == "Oi"
	}, 3*time.Second, 25*time.Millisecond)
}

func TestWatcherIgnoresNonYAML(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "pt_br", "app", "messages.yml", "hello: Olá")
	require.NoError(t, f.manager.Register(context.Background(), "app", ""))

	w := NewWatcher(f.manager)
	ns, ok := w.namespaceOf(f.manager.Dir("pt_br", "app") + "/messages.yml")
	require.True(t, ok)
	assert.Equal(t, "app", ns)

	_, ok = w.namespaceOf(f.root + "/stray.yml")
	assert.False(t, ok)

	_, ok = w.namespaceOf("/outside/path.yml")
	assert.False(t, ok)
}
