// Package webhook receives Crowdin webhook callbacks and turns them into
// sync triggers. Requests are authenticated with an HMAC-SHA256 body
// signature; dispatch runs off the request goroutine so the remote never
// waits on a sync.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/metrics"
	syncengine "github.com/openlocale/openlocale/internal/sync"
)

// Path is the fixed webhook endpoint path.
const Path = "/crowdin-webhook"

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Crowdin-Webhook-Signature"

// maxBodySize bounds webhook payloads.
const maxBodySize = 1 << 20

// Syncer is the slice of the sync engine the receiver drives.
type Syncer interface {
	Download(ctx context.Context, ns string) (result any, err error)
	FullSync(ctx context.Context) (result any, err error)
}

// engineSyncer adapts *sync.Engine to the Syncer interface.
type engineSyncer struct {
	engine *syncengine.Engine
}

func (a engineSyncer) Download(ctx context.Context, ns string) (any, error) {
	return a.engine.Download(ctx, ns)
}

func (a engineSyncer) FullSync(ctx context.Context) (any, error) {
	return a.engine.FullSync(ctx)
}

// Stats are the receiver's request counters.
type Stats struct {
	Requests uint64
	Accepted uint64
	Rejected uint64
	// Deferred counts accepted events whose sync was dropped because a
	// run was already in progress.
	Deferred  uint64
	Errors    uint64
	LastEvent string
}

// Server is the webhook HTTP server component.
type Server struct {
	port    int
	secret  string
	syncer  Syncer
	metrics *metrics.Metrics
	logger  *logging.Logger

	server *http.Server

	requests  atomic.Uint64
	accepted  atomic.Uint64
	rejected  atomic.Uint64
	deferred  atomic.Uint64
	errors    atomic.Uint64
	lastEvent atomic.Value
}

// New creates a webhook server for a sync engine.
func New(port int, secret string, engine *syncengine.Engine, m *metrics.Metrics) *Server {
	return NewWithSyncer(port, secret, engineSyncer{engine: engine}, m)
}

// NewWithSyncer creates a webhook server with a custom sync backend.
func NewWithSyncer(port int, secret string, syncer Syncer, m *metrics.Metrics) *Server {
	return &Server{
		port:    port,
		secret:  secret,
		syncer:  syncer,
		metrics: m,
		logger:  logging.GetLogger("webhook"),
	}
}

// Name implements lifecycle.Component.
func (s *Server) Name() string { return "webhook-server" }

// Handler returns the full mux: webhook endpoint, /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebhook)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		s.logger.Info("webhook server listening on :%d", s.port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorWithErr("webhook server", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Stats returns a snapshot of the request counters.
func (s *Server) Stats() Stats {
	last, _ := s.lastEvent.Load().(string)
	return Stats{
		Requests:  s.requests.Load(),
		Accepted:  s.accepted.Load(),
		Rejected:  s.rejected.Load(),
		Deferred:  s.deferred.Load(),
		Errors:    s.errors.Load(),
		LastEvent: last,
	}
}

// payload is the subset of the Crowdin webhook body the receiver reads.
type payload struct {
	Event string `json:"event"`
	File  struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"file"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	outcome := "error"
	defer func() {
		if s.metrics != nil {
			s.metrics.WebhookRequests.WithLabelValues(outcome).Inc()
		}
	}()

	if r.Method != http.MethodPost {
		outcome = "rejected"
		s.rejected.Add(1)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.errors.Add(1)
		http.Error(w, "read body", http.StatusInternalServerError)
		return
	}

	if !s.validSignature(body, r.Header.Get(SignatureHeader)) {
		outcome = "rejected"
		s.rejected.Add(1)
		s.logger.Warn("webhook signature mismatch from %s", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil || p.Event == "" {
		outcome = "rejected"
		s.rejected.Add(1)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	s.lastEvent.Store(p.Event)
	s.dispatch(p)
	outcome = "accepted"
	s.accepted.Add(1)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// validSignature compares HMAC-SHA256(secret, body) to the header value
// in constant time.
func (s *Server) validSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// dispatch routes the event to the sync engine in the background. A busy
// engine defers the trigger: the drop is counted and logged, and the
// periodic sync reconciles the missed update.
func (s *Server) dispatch(p payload) {
	switch p.Event {
	case "file.approved", "file.translated":
		ns := namespaceFromFile(p.File.Name, p.File.Path)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			var err error
			if ns != "" {
				_, err = s.syncer.Download(ctx, ns)
			} else {
				_, err = s.syncer.FullSync(ctx)
			}
			s.logSyncOutcome(p.Event, ns, err)
		}()
	case "project.approved", "project.translated":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			_, err := s.syncer.FullSync(ctx)
			s.logSyncOutcome(p.Event, "*", err)
		}()
	case "translation.updated":
		// High-volume event; log only, the periodic sync picks it up.
		s.logger.Debug("translation.updated for %s", p.File.Name)
	default:
		s.logger.Debug("ignoring webhook event %s", p.Event)
	}
}

func (s *Server) logSyncOutcome(event, ns string, err error) {
	if errors.Is(err, syncengine.ErrSyncInProgress) {
		s.deferred.Add(1)
		s.logger.Warn("webhook %s for %s deferred, sync already running; next scheduled sync reconciles", event, ns)
		return
	}
	if err != nil {
		s.errors.Add(1)
		s.logger.ErrorWithErr(fmt.Sprintf("webhook %s sync for %s", event, ns), err)
		return
	}
	s.logger.Info("webhook %s triggered sync for %s", event, ns)
}

// namespaceFromFile infers the namespace from the remote file identity.
// Files are named <ns>.yml inside a <ns> directory.
func namespaceFromFile(name, path string) string {
	base := name
	if base == "" && path != "" {
		segments := strings.Split(strings.Trim(path, "/"), "/")
		base = segments[len(segments)-1]
	}
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	return base
}
