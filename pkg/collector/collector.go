package collector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/metrics"
	"github.com/travigo/transit-telemetry/pkg/upstream"
)

var (
	ErrAlreadyRunning  = errors.New("collector already running")
	ErrCycleInProgress = errors.New("collection cycle already in progress")
)

type Fetcher interface {
	FetchVehicles(ctx context.Context, routes []string) ([]*ctdf.VehicleSnapshot, error)
}

type Store interface {
	LoadVehicles(ctx context.Context, vehicleIDs []string) (map[string]*ctdf.Vehicle, error)
	CommitCycle(ctx context.Context, vehicles []*ctdf.Vehicle, events []*ctdf.TelemetryEvent) error
}

// Publisher receives the events of every committed cycle
type Publisher interface {
	PublishEvents(ctx context.Context, events []*ctdf.TelemetryEvent) error
}

type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}

	return "stopped"
}

// Collector polls the upstream on a fixed interval and persists each cycle.
// At most one cycle is in flight; ticks that arrive while a cycle is running
// are dropped.
type Collector struct {
	Fetcher   Fetcher
	Store     Store
	Publisher Publisher
	Metrics   *metrics.Metrics

	Routes   []string
	Interval time.Duration

	Now func() time.Time

	permit chan struct{}
	cycles conc.WaitGroup

	mutex  sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	lastSuccess  atomic.Pointer[time.Time]
	droppedTicks atomic.Int64
}

func New(fetcher Fetcher, store Store, routes []string, interval time.Duration) *Collector {
	return &Collector{
		Fetcher:  fetcher,
		Store:    store,
		Routes:   routes,
		Interval: interval,
		Now:      time.Now,
		permit:   make(chan struct{}, 1),
	}
}

// Start begins ticking on a background goroutine. The first cycle runs immediately.
func (c *Collector) Start(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == StateRunning {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateRunning

	log.Info().
		Strs("routes", c.Routes).
		Str("interval", c.Interval.String()).
		Msg("Starting collector")

	go c.run(runCtx, c.done)

	return nil
}

// Stop halts the ticker and waits for any in-flight cycle to return
func (c *Collector) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != StateRunning {
		return
	}

	c.cancel()
	<-c.done
	c.cycles.Wait()

	c.state = StateStopped

	log.Info().Msg("Collector stopped")
}

func (c *Collector) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.state
}

// LastSuccess is the collection time of the last committed cycle
func (c *Collector) LastSuccess() *time.Time {
	return c.lastSuccess.Load()
}

func (c *Collector) DroppedTicks() int64 {
	return c.droppedTicks.Load()
}

func (c *Collector) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	c.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick starts a cycle on its own goroutine if the permit is free. It never
// blocks and reports whether a cycle was started.
func (c *Collector) Tick(ctx context.Context) bool {
	if !c.tryAcquire() {
		c.droppedTicks.Add(1)
		c.Metrics.DroppedTick()
		log.Debug().Msg("Collection cycle still running, dropping tick")

		return false
	}

	c.cycles.Go(func() {
		defer c.release()
		c.safeCycle(ctx)
	})

	return true
}

// RunOnce runs a single cycle on the calling goroutine
func (c *Collector) RunOnce(ctx context.Context) (*CycleResult, error) {
	if !c.tryAcquire() {
		return nil, ErrCycleInProgress
	}
	defer c.release()

	result := c.safeCycle(ctx)

	return result, result.Err
}

func (c *Collector) tryAcquire() bool {
	select {
	case c.permit <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Collector) release() {
	<-c.permit
}

func (c *Collector) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}

	return c.Now().UTC()
}

// NewFromConfig builds a collector polling the configured upstream
func NewFromConfig(cfg *config.Config, store Store, m *metrics.Metrics) *Collector {
	collector := New(upstream.NewClient(cfg.Upstream, m), store, cfg.Upstream.Routes, cfg.Collector.Interval)
	collector.Metrics = m

	return collector
}
