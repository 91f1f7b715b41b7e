// Package host abstracts the runtime embedding the engine. A game server
// plugin adapter supplies its own primary-thread scheduler and chat
// transport; the standalone binary uses the goroutine-backed defaults.
package host

import (
	"context"
	"sync"

	"github.com/openlocale/openlocale/internal/logging"
)

// Scheduler separates primary-thread work (message dispatch, cache
// lookups) from worker-pool work (I/O, parsing, HTTP).
type Scheduler interface {
	// RunSync schedules fn on the host's primary thread.
	RunSync(fn func())
	// RunAsync schedules fn on the host's worker pool.
	RunAsync(fn func())
}

// ChatTransport delivers resolved messages to players.
type ChatTransport interface {
	SendMessage(playerID, message string)
}

// PlayerLocaleSource reports the client locale of an online player, used
// for auto-detection on first appearance.
type PlayerLocaleSource interface {
	Locale(playerID string) (string, bool)
}

// AsyncScheduler is the standalone Scheduler: there is no primary thread
// to protect, so both lanes run on goroutines. Wait drains in-flight work
// during shutdown.
type AsyncScheduler struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewAsyncScheduler creates the default scheduler.
func NewAsyncScheduler() *AsyncScheduler {
	return &AsyncScheduler{}
}

func (s *AsyncScheduler) run(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// RunSync implements Scheduler.
func (s *AsyncScheduler) RunSync(fn func()) { s.run(fn) }

// RunAsync implements Scheduler.
func (s *AsyncScheduler) RunAsync(fn func()) { s.run(fn) }

// Shutdown stops accepting work and waits for in-flight tasks, bounded
// by the context.
func (s *AsyncScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogTransport is the standalone ChatTransport: messages are logged
// instead of delivered, which is what the CLI and tests want.
type LogTransport struct {
	logger *logging.Logger
}

// NewLogTransport creates a transport that logs deliveries.
func NewLogTransport() *LogTransport {
	return &LogTransport{logger: logging.GetLogger("chat")}
}

// SendMessage implements ChatTransport.
func (t *LogTransport) SendMessage(playerID, message string) {
	t.logger.Info("[%s] %s", playerID, message)
}
