package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myfinance/internal/core"
)

type fakeStore struct {
	mu    sync.Mutex
	entry *CacheEntry
	saves []CacheEntry
}

func (s *fakeStore) Load(context.Context) (CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return CacheEntry{}, false
	}
	return *s.entry, true
}

func (s *fakeStore) Save(_ context.Context, e CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, e)
	return nil
}

func (s *fakeStore) saved() []CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CacheEntry(nil), s.saves...)
}

type fetchFunc func(ctx context.Context) FetchResult

func (f fetchFunc) Fetch(ctx context.Context) FetchResult { return f(ctx) }

var (
	errOffline = errors.New("offline")
	liveRates  = core.RateTable{core.USD: 1, core.EUR: 0.91, core.UAH: 41.5}
	fixedNow   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func clock() time.Time { return fixedNow }

func failing(context.Context) FetchResult { return FetchResult{Err: errOffline} }

func succeeding(context.Context) FetchResult { return FetchResult{Rates: liveRates.Clone()} }

func TestRefresherColdFailureUsesFallback(t *testing.T) {
	store := &fakeStore{}
	r := NewRefresher(store, fetchFunc(failing), Config{Now: clock})

	snap := r.Snapshot()
	assert.True(t, snap.Loading, "loading starts true")
	assert.Nil(t, snap.Rates)
	assert.Nil(t, r.CurrentRates())

	assert.Equal(t, OutcomeFallback, r.Refresh(context.Background()))

	snap = r.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, core.FallbackRates(), snap.Rates)
	assert.Equal(t, OutcomeFallback, snap.Outcome)
	assert.ErrorIs(t, snap.Err, errOffline)
	assert.Empty(t, store.saved(), "a failed fetch never writes the store")
}

func TestRefresherRetainsPreviousTableOnFailure(t *testing.T) {
	store := &fakeStore{}
	var calls atomic.Int32
	fetcher := fetchFunc(func(ctx context.Context) FetchResult {
		if calls.Add(1) == 1 {
			return succeeding(ctx)
		}
		return failing(ctx)
	})
	r := NewRefresher(store, fetcher, Config{Now: clock})

	require.Equal(t, OutcomeLive, r.Refresh(context.Background()))
	require.Equal(t, OutcomeRetained, r.Refresh(context.Background()))

	snap := r.Snapshot()
	assert.Equal(t, liveRates, snap.Rates)
	assert.Equal(t, fixedNow, snap.LastUpdated)
	assert.Len(t, store.saved(), 1)
}

func TestRefresherPersistsSuccessfulFetch(t *testing.T) {
	store := &fakeStore{}
	r := NewRefresher(store, fetchFunc(succeeding), Config{Now: clock})

	require.Equal(t, OutcomeLive, r.Refresh(context.Background()))

	saves := store.saved()
	require.Len(t, saves, 1)
	assert.Equal(t, fixedNow, saves[0].Timestamp)
	assert.Equal(t, liveRates, saves[0].Rates)
}

func TestRefresherReportsFilledCurrencies(t *testing.T) {
	fetcher := fetchFunc(func(context.Context) FetchResult {
		table, filled := Normalize(map[string]*float64{"USD": rate(1), "UAH": rate(40)})
		return FetchResult{Rates: table, Filled: filled}
	})
	r := NewRefresher(&fakeStore{}, fetcher, Config{Now: clock})
	r.Refresh(context.Background())

	snap := r.Snapshot()
	assert.Equal(t, []core.Currency{core.EUR}, snap.Filled)
	assert.Equal(t, 0.93, snap.Rates[core.EUR])
}

func blockingFetcher(entered chan<- struct{}) fetchFunc {
	return func(ctx context.Context) FetchResult {
		entered <- struct{}{}
		<-ctx.Done()
		// Simulates a response that lands during teardown.
		return FetchResult{Rates: liveRates.Clone()}
	}
}

func TestRefresherAdoptsFreshCacheBeforeNetwork(t *testing.T) {
	cached := core.RateTable{core.USD: 1, core.EUR: 0.95, core.UAH: 39}
	stamp := fixedNow.Add(-5 * time.Minute)
	store := &fakeStore{entry: &CacheEntry{Timestamp: stamp, Rates: cached}}

	entered := make(chan struct{}, 1)
	r := NewRefresher(store, blockingFetcher(entered), Config{Now: clock})
	require.NoError(t, r.Start(context.Background()))

	snap := r.Snapshot()
	assert.Equal(t, cached, snap.Rates)
	assert.Equal(t, stamp, snap.LastUpdated)
	assert.Equal(t, OutcomeCached, snap.Outcome)

	<-entered
	require.NoError(t, r.Stop(context.Background()))
	assert.Empty(t, store.saved())
}

func TestRefresherIgnoresCacheAtFreshnessBoundary(t *testing.T) {
	store := &fakeStore{entry: &CacheEntry{
		Timestamp: fixedNow.Add(-DefaultFreshFor),
		Rates:     core.RateTable{core.USD: 1, core.EUR: 0.5, core.UAH: 10},
	}}
	r := NewRefresher(store, fetchFunc(failing), Config{Now: clock})
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop(context.Background())

	require.Eventually(t, func() bool {
		return r.Snapshot().Outcome != OutcomeNone
	}, time.Second, 5*time.Millisecond)

	snap := r.Snapshot()
	assert.Equal(t, OutcomeFallback, snap.Outcome, "an entry exactly 15 minutes old is stale")
	assert.Equal(t, core.FallbackRates(), snap.Rates)
}

func TestRefresherNoStoreWriteAfterStop(t *testing.T) {
	store := &fakeStore{}
	entered := make(chan struct{}, 4)
	var calls atomic.Int32
	fetcher := fetchFunc(func(ctx context.Context) FetchResult {
		calls.Add(1)
		return blockingFetcher(entered)(ctx)
	})

	r := NewRefresher(store, fetcher, Config{Now: clock})
	require.NoError(t, r.Start(context.Background()))
	<-entered

	manual := make(chan Outcome, 1)
	go func() { manual <- r.Refresh(context.Background()) }()
	<-entered

	require.NoError(t, r.Stop(context.Background()))

	assert.Equal(t, OutcomeDiscarded, <-manual)
	assert.Empty(t, store.saved())
	assert.Nil(t, r.Snapshot().Rates)

	assert.Equal(t, OutcomeDiscarded, r.Refresh(context.Background()))
	assert.Equal(t, int32(2), calls.Load(), "no fetch fires after teardown")
}

func TestRefresherTicksUntilStopped(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetchFunc(func(ctx context.Context) FetchResult {
		calls.Add(1)
		return succeeding(ctx)
	})
	store := &fakeStore{}
	r := NewRefresher(store, fetcher, Config{Interval: 10 * time.Millisecond, Now: clock})
	require.NoError(t, r.Start(context.Background()))

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop(context.Background()))

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
	assert.NotEmpty(t, store.saved())
	assert.LessOrEqual(t, len(store.saved()), int(after))
}

func TestRefresherLastCompletionWins(t *testing.T) {
	first := core.RateTable{core.USD: 1, core.EUR: 0.8, core.UAH: 30}
	second := core.RateTable{core.USD: 1, core.EUR: 0.9, core.UAH: 40}

	releaseFirst := make(chan struct{})
	firstEntered := make(chan struct{})
	var calls atomic.Int32
	fetcher := fetchFunc(func(ctx context.Context) FetchResult {
		if calls.Add(1) == 1 {
			close(firstEntered)
			<-releaseFirst
			return FetchResult{Rates: first.Clone()}
		}
		return FetchResult{Rates: second.Clone()}
	})

	store := &fakeStore{}
	r := NewRefresher(store, fetcher, Config{Now: clock})

	done := make(chan Outcome)
	go func() { done <- r.Refresh(context.Background()) }()
	<-firstEntered

	require.Equal(t, OutcomeLive, r.Refresh(context.Background()))
	assert.Equal(t, second, r.Snapshot().Rates)
	assert.True(t, r.Snapshot().Loading, "first cycle is still in flight")

	close(releaseFirst)
	require.Equal(t, OutcomeLive, <-done)

	assert.Equal(t, first, r.Snapshot().Rates)
	assert.False(t, r.Snapshot().Loading)
	saves := store.saved()
	require.Len(t, saves, 2)
	assert.Equal(t, first, saves[1].Rates, "store write order matches completion order")
}

func TestRefresherStartTwice(t *testing.T) {
	r := NewRefresher(&fakeStore{}, fetchFunc(succeeding), Config{Now: clock})
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop(context.Background())
	assert.ErrorIs(t, r.Start(context.Background()), ErrAlreadyStarted)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRefresher(&fakeStore{}, fetchFunc(succeeding), Config{Now: clock})
	r.Refresh(context.Background())

	snap := r.Snapshot()
	snap.Rates[core.UAH] = 1
	assert.Equal(t, liveRates[core.UAH], r.CurrentRates()[core.UAH])
}
