package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/openlocale/openlocale/internal/cache"
	"github.com/openlocale/openlocale/internal/events"
	"github.com/openlocale/openlocale/internal/models"
	"github.com/openlocale/openlocale/internal/registry"
)

const defaultSampleInterval = 15 * time.Second

// Observer feeds the registry gauge and the cache counters from their
// sources. The cache tiers count hits internally; the observer converts
// those totals into Prometheus counter increments on each sample.
type Observer struct {
	metrics  *Metrics
	reg      *registry.Registry
	caches   *cache.Tiered
	bus      *events.Bus
	interval time.Duration

	lastL1 cache.Stats
	lastL3 cache.Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewObserver creates the sampling component.
func NewObserver(m *Metrics, reg *registry.Registry, caches *cache.Tiered, bus *events.Bus) *Observer {
	return &Observer{
		metrics:  m,
		reg:      reg,
		caches:   caches,
		bus:      bus,
		interval: defaultSampleInterval,
	}
}

// Name implements lifecycle.Component.
func (o *Observer) Name() string { return "metrics-observer" }

// Start implements lifecycle.Component.
func (o *Observer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	sub := o.bus.Subscribe()
	o.sample()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				sub.Cancel()
				return
			case <-ticker.C:
				o.sample()
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if ev.Type == models.EventNamespaceReloaded {
					o.metrics.ReloadsTotal.Inc()
				}
				o.metrics.RegistrySize.Set(float64(o.reg.Size()))
			}
		}
	}()
	return nil
}

// Stop implements lifecycle.Component.
func (o *Observer) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Observer) sample() {
	o.metrics.RegistrySize.Set(float64(o.reg.Size()))

	l1 := o.caches.L1.Stats()
	o.metrics.CacheHits.WithLabelValues("l1").Add(float64(l1.Hits - o.lastL1.Hits))
	o.metrics.CacheMisses.WithLabelValues("l1").Add(float64(l1.Misses - o.lastL1.Misses))
	o.lastL1 = l1

	l3 := o.caches.L3.Stats()
	o.metrics.CacheHits.WithLabelValues("l3").Add(float64(l3.Hits - o.lastL3.Hits))
	o.metrics.CacheMisses.WithLabelValues("l3").Add(float64(l3.Misses - o.lastL3.Misses))
	o.lastL3 = l3
}
