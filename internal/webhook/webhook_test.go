package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlocale/openlocale/internal/metrics"
	syncengine "github.com/openlocale/openlocale/internal/sync"
)

type fakeSyncer struct {
	mu        stdsync.Mutex
	err       error
	downloads []string
	fullSyncs int
}

func (f *fakeSyncer) Download(_ context.Context, ns string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, ns)
	return nil, f.err
}

func (f *fakeSyncer) FullSync(_ context.Context) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullSyncs++
	return nil, f.err
}

func (f *fakeSyncer) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.downloads...), f.fullSyncs
}

const testSecret = "hunter2"

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookFixture(t *testing.T) (*Server, *fakeSyncer, *httptest.Server) {
	t.Helper()
	syncer := &fakeSyncer{}
	m := metrics.New(prometheus.NewRegistry())
	s := NewWithSyncer(0, testSecret, syncer, m)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, syncer, ts
}

func post(t *testing.T, ts *httptest.Server, body, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+Path, strings.NewReader(body))
	require.NoError(t, err)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestWebhookFileEventTriggersNamespaceDownload(t *testing.T) {
	s, syncer, ts := newWebhookFixture(t)
	body := `{"event":"file.translated","file":{"name":"app.yml","path":"/app/app.yml"}}`

	resp := post(t, ts, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		downloads, _ := syncer.snapshot()
		return len(downloads) == 1 && downloads[0] == "app"
	}, time.Second, 10*time.Millisecond)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Accepted)
	assert.Equal(t, "file.translated", stats.LastEvent)
}

func TestWebhookProjectEventTriggersFullSync(t *testing.T) {
	_, syncer, ts := newWebhookFixture(t)
	body := `{"event":"project.approved"}`

	resp := post(t, ts, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, full := syncer.snapshot()
		return full == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s, syncer, ts := newWebhookFixture(t)
	body := `{"event":"file.translated","file":{"name":"app.yml"}}`

	// Flip a single bit of the valid signature.
	valid := sign(body)
	flipped := []byte(valid)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	resp := post(t, ts, body, string(flipped))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, ts, body, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	time.Sleep(50 * time.Millisecond)
	downloads, full := syncer.snapshot()
	assert.Empty(t, downloads)
	assert.Zero(t, full)
	assert.Equal(t, uint64(2), s.Stats().Rejected)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	_, _, ts := newWebhookFixture(t)

	body := `{not json`
	resp := post(t, ts, body, sign(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = `{"no_event":true}`
	resp = post(t, ts, body, sign(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookRejectsNonPost(t *testing.T) {
	_, _, ts := newWebhookFixture(t)
	resp, err := http.Get(ts.URL + Path)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebhookBusyEngineCountsDeferred(t *testing.T) {
	s, syncer, ts := newWebhookFixture(t)
	syncer.err = syncengine.ErrSyncInProgress
	body := `{"event":"file.translated","file":{"name":"app.yml","path":"/app/app.yml"}}`

	resp := post(t, ts, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return s.Stats().Deferred == 1
	}, time.Second, 10*time.Millisecond)

	// A deferred trigger is not an error.
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Accepted)
	assert.Zero(t, stats.Errors)
}

func TestWebhookTranslationUpdatedOnlyLogs(t *testing.T) {
	_, syncer, ts := newWebhookFixture(t)
	body := `{"event":"translation.updated","file":{"name":"app.yml"}}`

	resp := post(t, ts, body, sign(body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	time.Sleep(50 * time.Millisecond)
	downloads, full := syncer.snapshot()
	assert.Empty(t, downloads)
	assert.Zero(t, full)
}

func TestHealthzAndMetricsEndpoints(t *testing.T) {
	_, _, ts := newWebhookFixture(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNamespaceFromFile(t *testing.T) {
	assert.Equal(t, "app", namespaceFromFile("app.yml", ""))
	assert.Equal(t, "shop", namespaceFromFile("", "/lobby-1/shop/shop.yml"))
	assert.Equal(t, "", namespaceFromFile("", ""))
}
