package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dispatcher "github.com/Swind/go-dispatcher"
	"github.com/Swind/go-dispatcher/config"
	"github.com/Swind/go-dispatcher/core"
	"github.com/Swind/go-dispatcher/logging"
	dprom "github.com/Swind/go-dispatcher/observability/prometheus"
	"github.com/Swind/go-dispatcher/timer"
)

// producerPriorities is the rotation used by demo producers.
var producerPriorities = []core.Priority{
	core.PriorityBackground,
	core.PriorityInput,
	core.PriorityLoaded,
	core.PriorityNormal,
	core.PriorityDataBind,
}

// DemoResult summarises a finished demo run.
type DemoResult struct {
	Stats     core.DispatcherStats
	Posted    int64
	TimerRuns int64
	CronRuns  map[string]int
	Invokes   int
	Replies   int
}

type demo struct {
	cfg    *config.Config
	logger *logging.Logger
	reg    *prom.Registry

	mu      sync.Mutex
	posted  int64
	invokes int
	replies int
}

// RunDemo drives a dispatcher on the calling goroutine until ctx is done or the
// configured run duration elapses.
func RunDemo(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*DemoResult, error) {
	dm := &demo{cfg: cfg, logger: logger}

	coreCfg := cfg.CoreConfig()
	coreCfg.Logger = logger
	coreCfg.PanicHandler = &core.LoggingPanicHandler{Logger: logger}
	coreCfg.RejectedJobHandler = &core.LoggingRejectedJobHandler{Logger: logger}

	var poller *dprom.SnapshotPoller
	if cfg.Metrics.Enabled {
		dm.reg = prom.NewRegistry()
		exporter, err := dprom.NewMetricsExporter(cfg.Metrics.Namespace, dm.reg, dprom.ExporterOptions{})
		if err != nil {
			return nil, fmt.Errorf("create metrics exporter: %w", err)
		}
		coreCfg.Metrics = exporter

		poller, err = dprom.NewSnapshotPoller(cfg.Metrics.Namespace, dm.reg, cfg.Metrics.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("create snapshot poller: %w", err)
		}

		srv := dm.serveMetrics()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runCtx := ctx
	if cfg.Demo.RunDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Demo.RunDuration)
		defer cancel()
	}

	var (
		wg       sync.WaitGroup
		tickers  []*timer.Timer
		crons    []*timer.CronTimer
		startErr error
		bound    *core.Dispatcher
	)

	err := dispatcher.Run(runCtx, coreCfg, func(d *core.Dispatcher) {
		bound = d
		if poller != nil {
			poller.AddDispatcher(d.Name(), d)
			poller.Start(runCtx)
		}

		tickers, crons, startErr = dm.startTimers(d)
		if startErr != nil {
			logger.Error("demo timers failed", core.F("error", startErr))
			d.Dispose()
			return
		}

		for i := range cfg.Demo.Producers {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				dm.produce(runCtx, d, id)
			}(i)
		}

		if cfg.Demo.BlockingInvoke {
			_ = d.Post(func(ctx context.Context) { dm.invokeFromJob(d) }, core.PriorityLoaded)
		}
		dm.replyFromBackground(d)
	})

	for _, t := range tickers {
		t.Stop()
	}
	for _, c := range crons {
		c.Stop()
	}
	if poller != nil {
		poller.Stop()
	}
	wg.Wait()

	if startErr != nil {
		return nil, startErr
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	result := &DemoResult{CronRuns: make(map[string]int, len(crons))}
	if bound != nil {
		result.Stats = bound.Stats()
		logger.LogStats(result.Stats)
	}
	dm.mu.Lock()
	result.Posted = dm.posted
	result.Invokes = dm.invokes
	result.Replies = dm.replies
	dm.mu.Unlock()
	if len(tickers) > 0 {
		result.TimerRuns = tickers[0].Ticks()
	}
	for i, c := range crons {
		result.CronRuns[cfg.Cron[i].Name] = c.Runs()
	}
	return result, nil
}

// startTimers starts the interval timer first, then the stats timer and cron jobs.
func (dm *demo) startTimers(d *core.Dispatcher) ([]*timer.Timer, []*timer.CronTimer, error) {
	var tickers []*timer.Timer
	if dm.cfg.Demo.TimerInterval > 0 {
		p, err := core.ParsePriority(dm.cfg.Demo.TimerPriority)
		if err != nil {
			return nil, nil, err
		}
		t, err := timer.New(d, p, dm.cfg.Demo.TimerInterval, func(ctx context.Context) {
			dm.logger.Debug("timer tick", core.F("priority", p.String()))
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start interval timer: %w", err)
		}
		tickers = append(tickers, t)
	}

	if dm.cfg.Demo.StatsInterval > 0 {
		t, err := timer.New(d, core.PriorityBackground, dm.cfg.Demo.StatsInterval, func(ctx context.Context) {
			dm.logger.LogStats(d.Stats())
		})
		if err != nil {
			return tickers, nil, fmt.Errorf("start stats timer: %w", err)
		}
		tickers = append(tickers, t)
	}

	crons := make([]*timer.CronTimer, 0, len(dm.cfg.Cron))
	for _, cc := range dm.cfg.Cron {
		name := cc.Name
		c, err := timer.NewCron(d, cc.Expression, cc.PriorityValue(), func(ctx context.Context) {
			dm.logger.Info("cron fired", core.F("name", name))
		}, timer.CronOptions{Logger: dm.logger})
		if err != nil {
			return tickers, crons, fmt.Errorf("start cron %q: %w", name, err)
		}
		crons = append(crons, c)
	}
	return tickers, crons, nil
}

// produce posts jobs at rotating priorities until ctx is done or d is disposed.
func (dm *demo) produce(ctx context.Context, d *core.Dispatcher, id int) {
	interval := dm.cfg.Demo.PostInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return
		case <-d.Disposed():
			return
		case <-t.C:
		}

		p := producerPriorities[(id+seq)%len(producerPriorities)]
		err := core.PostArg(d, func(ctx context.Context, n int) {
			prio, _ := core.PriorityFromContext(ctx)
			dm.logger.Debug("job ran",
				core.F("producer", id),
				core.F("seq", n),
				core.F("priority", prio.String()),
			)
		}, seq, p)
		if err != nil {
			return
		}
		dm.mu.Lock()
		dm.posted++
		dm.mu.Unlock()
	}
}

// invokeFromJob blocks inside a job on a higher priority invoke; the wait pumps the loop.
func (dm *demo) invokeFromJob(d *core.Dispatcher) {
	n, err := core.InvokeFunc(d, func(ctx context.Context) (int, error) {
		return d.Stats().Pending, nil
	})
	if err != nil {
		dm.logger.Warn("blocking invoke failed", core.F("error", err))
		return
	}
	dm.mu.Lock()
	dm.invokes++
	dm.mu.Unlock()
	dm.logger.Info("blocking invoke returned", core.F("pending_seen", n))
}

func (dm *demo) replyFromBackground(d *core.Dispatcher) {
	err := core.RunAndReply(d, func(ctx context.Context) (int, error) {
		return rand.IntN(100), nil
	}, func(ctx context.Context, n int, err error) {
		if err != nil {
			dm.logger.Warn("background work failed", core.F("error", err))
			return
		}
		dm.mu.Lock()
		dm.replies++
		dm.mu.Unlock()
		dm.logger.Info("background reply", core.F("value", n))
	}, core.PriorityNormal)
	if err != nil {
		dm.logger.Warn("run and reply rejected", core.F("error", err))
	}
}

func (dm *demo) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(dm.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              dm.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			dm.logger.Error("metrics server failed", core.F("error", err))
		}
	}()
	dm.logger.Info("serving metrics", core.F("address", srv.Addr))
	return srv
}
