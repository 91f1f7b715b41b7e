package sync

import (
	"context"
	"errors"
	"time"

	"github.com/openlocale/openlocale/internal/logging"
)

// Scheduler periodically triggers a full sync. The first run happens one
// interval after start, never at startup; runs that find the engine busy
// are skipped.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler with the given interval.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logging.GetLogger("sync.scheduler"),
	}
}

// Name implements lifecycle.Component.
func (s *Scheduler) Name() string { return "sync-scheduler" }

// Start launches the periodic loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("auto-sync disabled (interval %s)", s.interval)
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(runCtx)
	s.logger.Info("auto-sync every %s, first run after one interval", s.interval)
	return nil
}

// Stop terminates the loop.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	result, err := s.engine.FullSync(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		s.logger.Info("scheduled sync skipped, engine busy")
		return
	}
	if err != nil {
		s.logger.ErrorWithErr("scheduled sync", err)
		return
	}
	s.logger.Info("scheduled sync finished: status=%s uploaded=%d downloaded=%d conflicts=%d",
		result.Status, result.Uploaded, result.Downloaded, result.Conflicts)
}
