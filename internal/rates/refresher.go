package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"myfinance/internal/core"
	applog "myfinance/internal/log"
)

const (
	DefaultInterval = 15 * time.Minute
	DefaultFreshFor = 15 * time.Minute
)

// Outcome tells how the current rate table was obtained.
type Outcome string

const (
	// OutcomeNone means no cycle has completed and nothing was cached.
	OutcomeNone Outcome = "none"
	// OutcomeCached means a fresh persisted entry was adopted on start.
	OutcomeCached Outcome = "cached"
	// OutcomeLive means the provider answered and the table was persisted.
	OutcomeLive Outcome = "live"
	// OutcomeFallback means the fetch failed with no prior table, so the static table is used.
	OutcomeFallback Outcome = "fallback"
	// OutcomeRetained means the fetch failed and the previous table was kept.
	OutcomeRetained Outcome = "retained"
	// OutcomeDiscarded means the cycle completed after Stop and was ignored.
	OutcomeDiscarded Outcome = "discarded"
)

var ErrAlreadyStarted = errors.New("rates refresher is already running")

// Snapshot is a consistent copy of the refresher state.
type Snapshot struct {
	Rates       core.RateTable
	LastUpdated time.Time
	Loading     bool
	Outcome     Outcome
	Filled      []core.Currency
	Err         error
}

// Warm reports whether a rate table is available.
func (s Snapshot) Warm() bool {
	return s.Rates != nil
}

type Config struct {
	// Interval between scheduled fetches (default: 15m)
	Interval time.Duration

	// FreshFor is how long a persisted entry may be adopted without a fetch (default: 15m)
	FreshFor time.Duration

	// Now is the clock; defaults to time.Now
	Now func() time.Time

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.FreshFor <= 0 {
		c.FreshFor = DefaultFreshFor
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Refresher owns the in-memory rate table. It fetches on Start and on
// every Interval tick until Stop, and accepts manual refreshes in between.
// Overlapping cycles are not coalesced: the last one to complete wins.
type Refresher struct {
	store   Store
	fetcher Fetcher
	cfg     Config
	logger  *slog.Logger

	mu          sync.Mutex
	rates       core.RateTable
	lastUpdated time.Time
	loading     bool
	outcome     Outcome
	filled      []core.Currency
	lastErr     error
	inflight    int

	// Lifecycle management
	started bool
	stopped bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRefresher(store Store, fetcher Fetcher, cfg Config) *Refresher {
	cfg = cfg.withDefaults()
	return &Refresher{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  cfg.Logger.With(applog.FieldComponent, applog.ComponentRates),
		loading: true,
		outcome: OutcomeNone,
	}
}

// Start adopts a fresh persisted entry if there is one, then fetches
// immediately and on every tick. It returns without waiting for the fetch.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	if r.stopped {
		r.mu.Unlock()
		return fmt.Errorf("rates refresher was stopped")
	}
	r.started = true
	r.baseCtx, r.cancel = context.WithCancel(ctx)
	baseCtx := r.baseCtx
	r.mu.Unlock()

	r.adoptCached(baseCtx)

	r.wg.Add(1)
	go r.runLoop(baseCtx)

	r.logger.InfoContext(ctx, "Rates refresher started",
		"interval", r.cfg.Interval,
		"fresh_for", r.cfg.FreshFor)
	return nil
}

// Refresh runs one cycle on the caller's goroutine without touching the
// schedule. Stop cancels it like any other cycle.
func (r *Refresher) Refresh(ctx context.Context) Outcome {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return OutcomeDiscarded
	}
	base := r.baseCtx
	r.mu.Unlock()

	if base != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(base, cancel)
		defer stop()
	}
	return r.cycle(ctx)
}

// Stop cancels the schedule and any in-flight fetch, then waits for
// scheduled cycles to return. No store write happens after Stop returns.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.InfoContext(ctx, "Rates refresher stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Rates refresher stop timed out")
		return ctx.Err()
	}
}

func (r *Refresher) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Rates:       r.rates.Clone(),
		LastUpdated: r.lastUpdated,
		Loading:     r.loading,
		Outcome:     r.outcome,
		Filled:      append([]core.Currency(nil), r.filled...),
		Err:         r.lastErr,
	}
}

// CurrentRates returns a copy of the active table, or nil while cold.
func (r *Refresher) CurrentRates() core.RateTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rates.Clone()
}

func (r *Refresher) adoptCached(ctx context.Context) {
	entry, ok := r.store.Load(ctx)
	if !ok {
		return
	}
	age := r.cfg.Now().Sub(entry.Timestamp)
	if age >= r.cfg.FreshFor {
		r.logger.DebugContext(ctx, "Cached rates are stale", applog.FieldRatesAge, age)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A manual refresh may already have won the race.
	if r.rates != nil {
		return
	}
	r.rates = entry.Rates.Clone()
	r.lastUpdated = entry.Timestamp
	r.outcome = OutcomeCached
	r.loading = r.inflight > 0
	r.logger.InfoContext(ctx, "Adopted cached rates", applog.FieldRatesAge, age)
}

func (r *Refresher) runLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// Fetch immediately on startup
	r.spawnCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.spawnCycle(ctx)
		}
	}
}

// spawnCycle runs a cycle in its own goroutine so a hung request does not
// hold back the next tick.
func (r *Refresher) spawnCycle(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.cycle(ctx)
	}()
}

func (r *Refresher) cycle(ctx context.Context) Outcome {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return OutcomeDiscarded
	}
	r.inflight++
	r.loading = true
	r.mu.Unlock()

	res := r.fetcher.Fetch(ctx)
	return r.finish(ctx, res)
}

// finish applies a fetch result. The state update and the store write
// happen under one lock so their order matches completion order.
func (r *Refresher) finish(ctx context.Context, res FetchResult) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inflight--
	defer func() { r.loading = r.inflight > 0 }()

	if r.stopped {
		return OutcomeDiscarded
	}

	if res.OK() {
		now := r.cfg.Now()
		r.rates = res.Rates.Clone()
		r.lastUpdated = now
		r.outcome = OutcomeLive
		r.filled = res.Filled
		r.lastErr = nil
		if err := r.store.Save(ctx, CacheEntry{Timestamp: now, Rates: res.Rates.Clone()}); err != nil {
			r.logger.ErrorContext(ctx, "Failed to persist rates", "error", err)
		}
		r.logger.InfoContext(ctx, "Exchange rates refreshed",
			applog.NewFields().WithRefresh(string(OutcomeLive), currencyNames(res.Filled)).ToSlice()...)
		return OutcomeLive
	}

	r.lastErr = res.Err
	r.filled = nil
	if r.rates == nil {
		r.rates = core.FallbackRates()
		r.outcome = OutcomeFallback
	} else {
		r.outcome = OutcomeRetained
	}
	r.logger.WarnContext(ctx, "Exchange rate fetch failed",
		applog.NewFields().WithRefresh(string(r.outcome), nil).WithError(res.Err).ToSlice()...)
	return r.outcome
}

func currencyNames(cs []core.Currency) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
