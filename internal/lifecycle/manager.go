package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openlocale/openlocale/internal/logging"
)

const defaultStopTimeout = 30 * time.Second

// Manager starts components in dependency order and stops them in reverse
// start order. A failed start rolls back everything already started.
type Manager struct {
	mu          sync.Mutex
	components  []Component
	deps        map[string][]string
	byName      map[string]Component
	started     []Component
	stopTimeout time.Duration
	logger      *logging.Logger
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		deps:        make(map[string][]string),
		byName:      make(map[string]Component),
		stopTimeout: defaultStopTimeout,
		logger:      logging.GetLogger("lifecycle"),
	}
}

// Register adds a component. Dependencies must already be registered;
// they start before the component and stop after it.
func (m *Manager) Register(c Component, dependsOn ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c == nil || c.Name() == "" {
		return errors.New("component must be non-nil and named")
	}
	if _, dup := m.byName[c.Name()]; dup {
		return fmt.Errorf("component %s already registered", c.Name())
	}
	var depNames []string
	for _, dep := range dependsOn {
		if _, ok := m.byName[dep.Name()]; !ok {
			return fmt.Errorf("dependency %s of %s is not registered", dep.Name(), c.Name())
		}
		depNames = append(depNames, dep.Name())
	}

	m.components = append(m.components, c)
	m.byName[c.Name()] = c
	m.deps[c.Name()] = depNames
	return nil
}

// Start brings all components up in dependency order. On failure the
// already-started components are stopped in reverse order and the start
// error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = nil
	for _, c := range m.ordered() {
		m.logger.Info("starting %s", c.Name())
		begin := time.Now()
		if err := c.Start(ctx); err != nil {
			m.logger.ErrorWithErr(fmt.Sprintf("start %s", c.Name()), err)
			m.rollbackLocked()
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}
		m.started = append(m.started, c)
		m.logger.Info("%s started in %dms", c.Name(), time.Since(begin).Milliseconds())
	}
	m.logger.Info("all %d components started", len(m.started))
	return nil
}

// Stop shuts down all started components in reverse start order. Each
// component gets its own grace period; errors are logged, never returned,
// so one misbehaving component cannot block the rest of the shutdown.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.started) - 1; i >= 0; i-- {
		c := m.started[i]
		m.logger.Info("stopping %s", c.Name())
		stopCtx, cancel := context.WithTimeout(ctx, m.stopTimeout)
		if err := c.Stop(stopCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				m.logger.Warn("%s did not stop within %s", c.Name(), m.stopTimeout)
			} else {
				m.logger.ErrorWithErr(fmt.Sprintf("stop %s", c.Name()), err)
			}
		}
		cancel()
	}
	m.started = nil
	m.logger.Info("shutdown complete")
	return nil
}

// SetStopTimeout overrides the per-component shutdown grace period.
func (m *Manager) SetStopTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimeout = d
}

func (m *Manager) rollbackLocked() {
	for i := len(m.started) - 1; i >= 0; i-- {
		c := m.started[i]
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Stop(ctx); err != nil {
			m.logger.Warn("rollback stop of %s failed: %v", c.Name(), err)
		}
		cancel()
	}
	m.started = nil
}

// ordered returns components with every dependency ahead of its dependent.
// Registration already rejects unregistered dependencies, so the walk
// cannot cycle.
func (m *Manager) ordered() []Component {
	visited := make(map[string]bool, len(m.components))
	out := make([]Component, 0, len(m.components))

	var visit func(c Component)
	visit = func(c Component) {
		if visited[c.Name()] {
			return
		}
		visited[c.Name()] = true
		for _, depName := range m.deps[c.Name()] {
			visit(m.byName[depName])
		}
		out = append(out, c)
	}
	for _, c := range m.components {
		visit(c)
	}
	return out
}
