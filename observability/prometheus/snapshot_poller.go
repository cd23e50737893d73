package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-dispatcher/core"
)

// DispatcherSnapshotProvider provides current dispatcher stats snapshots.
type DispatcherSnapshotProvider interface {
	Stats() core.DispatcherStats
}

// SnapshotPoller periodically exports Dispatcher.Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	mu          sync.RWMutex
	dispatchers map[string]DispatcherSnapshotProvider

	pending  *prom.GaugeVec
	executed *prom.GaugeVec
	panicked *prom.GaugeVec
	rejected *prom.GaugeVec
	delayed  *prom.GaugeVec
	state    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "dispatcher"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	pending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_jobs",
		Help:      "Number of queued jobs per dispatcher and priority.",
	}, []string{"dispatcher", "priority"})
	executed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "executed_jobs",
		Help:      "Executed job count snapshot.",
	}, []string{"dispatcher"})
	panicked := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "panicked_jobs",
		Help:      "Panicked fire-and-forget job count snapshot.",
	}, []string{"dispatcher"})
	rejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "rejected_jobs",
		Help:      "Rejected job count snapshot.",
	}, []string{"dispatcher"})
	delayed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "delayed_jobs",
		Help:      "Jobs waiting in the delay manager.",
	}, []string{"dispatcher"})
	state := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "state",
		Help:      "Dispatcher lifecycle state (0=active, 1=disposing, 2=finally disposed).",
	}, []string{"dispatcher"})

	var err error
	if pending, err = registerCollector(reg, pending); err != nil {
		return nil, err
	}
	if executed, err = registerCollector(reg, executed); err != nil {
		return nil, err
	}
	if panicked, err = registerCollector(reg, panicked); err != nil {
		return nil, err
	}
	if rejected, err = registerCollector(reg, rejected); err != nil {
		return nil, err
	}
	if delayed, err = registerCollector(reg, delayed); err != nil {
		return nil, err
	}
	if state, err = registerCollector(reg, state); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:    interval,
		dispatchers: make(map[string]DispatcherSnapshotProvider),
		pending:     pending,
		executed:    executed,
		panicked:    panicked,
		rejected:    rejected,
		delayed:     delayed,
		state:       state,
	}, nil
}

// AddDispatcher adds or replaces a snapshot provider by name.
func (p *SnapshotPoller) AddDispatcher(name string, provider DispatcherSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "dispatcher")
	p.mu.Lock()
	p.dispatchers[name] = provider
	p.mu.Unlock()
}

// RemoveDispatcher stops exporting name.
func (p *SnapshotPoller) RemoveDispatcher(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.dispatchers, name)
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.dispatchers {
		stats := provider.Stats()
		for _, priority := range core.Priorities() {
			p.pending.WithLabelValues(name, priority.String()).Set(float64(stats.PendingAt[priority]))
		}
		p.executed.WithLabelValues(name).Set(float64(stats.Executed))
		p.panicked.WithLabelValues(name).Set(float64(stats.Panicked))
		p.rejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.delayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.state.WithLabelValues(name).Set(float64(stats.State))
	}
}
