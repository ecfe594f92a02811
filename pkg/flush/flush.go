// Package flush implements the atomic registry-rotation orchestrator:
// a single process-wide "current" registry accepting samples, swapped
// out for a fresh one on every tick and handed off to a background
// drain that runs each sink in turn. Grounded on
// pkg/metricstore/metricstore.go's Init/Shutdown/Retention lifecycle
// (context.CancelFunc stored under its own mutex, background workers
// tracked by a sync.WaitGroup) and on internal/taskManager/taskManager.go's
// github.com/go-co-op/gocron/v2 scheduler for the periodic tick itself.
package flush

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"

	"github.com/ClusterCockpit/statsited/pkg/metrics"
	"github.com/ClusterCockpit/statsited/pkg/sink"
)

// Orchestrator owns the current registry pointer and drives periodic
// flush ticks across a fixed set of sinks.
type Orchestrator struct {
	cfg   metrics.Config
	sinks []sink.Sink

	intervalSeconds  float64
	extendedCounters bool
	quantiles        []float64
	prefixes         sink.Prefixes

	current atomic.Pointer[metrics.Registry]

	scheduler gocron.Scheduler

	shutdownFuncMu sync.Mutex
	shutdownFunc   context.CancelFunc

	drainWG sync.WaitGroup
}

// Config bundles everything the orchestrator needs beyond the registry
// aggregator config itself: the sinks to drive, the flush cadence, and
// the per-kind formatting knobs every sink call needs in its
// sink.FlushContext.
type Config struct {
	MetricsConfig    metrics.Config
	Sinks            []sink.Sink
	IntervalSeconds  float64
	ExtendedCounters bool
	Quantiles        []float64
	Prefixes         sink.Prefixes
}

// New builds an Orchestrator with a fresh initial registry already
// installed as current.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		cfg:              cfg.MetricsConfig,
		sinks:            cfg.Sinks,
		intervalSeconds:  cfg.IntervalSeconds,
		extendedCounters: cfg.ExtendedCounters,
		quantiles:        cfg.Quantiles,
		prefixes:         cfg.Prefixes,
	}
	o.current.Store(metrics.NewRegistry(cfg.MetricsConfig))
	return o
}

// Current returns the registry presently accepting samples. Passed to
// pkg/ingest.Handler as its RegistrySource.
func (o *Orchestrator) Current() *metrics.Registry {
	return o.current.Load()
}

// Start launches the periodic flush tick via gocron, at the
// orchestrator's configured interval. Start must be called at most
// once; call Shutdown to stop ticking and run a final synchronous
// flush.
func (o *Orchestrator) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	o.shutdownFuncMu.Lock()
	o.shutdownFunc = cancel
	o.shutdownFuncMu.Unlock()

	s, err := gocron.NewScheduler()
	if err != nil {
		cancel()
		return err
	}
	o.scheduler = s

	interval := time.Duration(o.intervalSeconds * float64(time.Second))
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { o.tick(ctx) }),
	)
	if err != nil {
		cancel()
		return err
	}

	s.Start()
	return nil
}

// tick implements spec.md §4.4's flush_tick: allocate a fresh registry,
// atomically swap it in as current, and hand the old one to a
// detached drain goroutine. If the goroutine cannot be spawned (never
// actually observed in Go — goroutine creation does not fail the way
// a forked/masked-signal background task can in the source
// implementation), the swap is rolled back and the fresh registry
// discarded, so spec.md's no-samples-lost invariant holds even under a
// hypothetical spawn failure.
func (o *Orchestrator) tick(ctx context.Context) {
	fresh := metrics.NewRegistry(o.cfg)
	old := o.current.Swap(fresh)

	o.drainWG.Add(1)
	spawned := o.trySpawnDrain(ctx, old)
	if !spawned {
		o.current.Store(old)
		fresh.Destroy()
		o.drainWG.Done()
		cclog.Errorf("flush: failed to spawn drain worker, rolled back registry swap")
	}
}

func (o *Orchestrator) trySpawnDrain(ctx context.Context, old *metrics.Registry) (spawned bool) {
	defer func() {
		if r := recover(); r != nil {
			spawned = false
			cclog.Errorf("flush: drain goroutine panicked on spawn: %v", r)
		}
	}()
	go o.drain(ctx, old)
	return true
}

// drain runs every sink's Command against old in order, logging
// non-zero returns without aborting later sinks, then destroys old.
func (o *Orchestrator) drain(ctx context.Context, old *metrics.Registry) {
	defer o.drainWG.Done()
	defer old.Destroy()

	fc := sink.FlushContext{
		Registry:         old,
		Now:              time.Now(),
		IntervalSeconds:  o.intervalSeconds,
		ExtendedCounters: o.extendedCounters,
		Quantiles:        o.quantiles,
		Prefixes:         o.prefixes,
	}

	for _, s := range o.sinks {
		if err := s.Command(ctx, fc); err != nil {
			cclog.Errorf("flush: sink command failed: %v", err)
		}
	}
}

// Shutdown stops the scheduler, runs one final synchronous flush (so
// samples accumulated since the last tick are not lost), waits for any
// in-flight drain to finish, then closes every sink in turn.
func (o *Orchestrator) Shutdown() {
	o.shutdownFuncMu.Lock()
	cancel := o.shutdownFunc
	o.shutdownFuncMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if o.scheduler != nil {
		_ = o.scheduler.Shutdown()
	}

	final := metrics.NewRegistry(o.cfg)
	old := o.current.Swap(final)
	o.drainSync(old)

	o.drainWG.Wait()

	for _, s := range o.sinks {
		if err := s.Close(); err != nil {
			cclog.Errorf("flush: sink close failed: %v", err)
		}
	}
}

func (o *Orchestrator) drainSync(old *metrics.Registry) {
	defer old.Destroy()
	fc := sink.FlushContext{
		Registry:         old,
		Now:              time.Now(),
		IntervalSeconds:  o.intervalSeconds,
		ExtendedCounters: o.extendedCounters,
		Quantiles:        o.quantiles,
		Prefixes:         o.prefixes,
	}
	for _, s := range o.sinks {
		if err := s.Command(context.Background(), fc); err != nil {
			cclog.Errorf("flush: final sink command failed: %v", err)
		}
	}
}
