package collector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/raine/auto-inspect-bot/internal/fetch"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyzer returns a configured error per URL and records call order.
type fakeAnalyzer struct {
	mu     sync.Mutex
	errors map[string]error
	calls  []string
}

func (f *fakeAnalyzer) AnalyzeURL(ctx context.Context, url string) (*listing.AnalysisReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errors[url]; err != nil {
		return nil, err
	}
	return &listing.AnalysisReport{SourceURL: url}, nil
}

func (f *fakeAnalyzer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

var refDate = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func seedStore(t *testing.T, ages map[string]time.Duration) *storage.MemoryStore {
	store := storage.NewMemoryStore()
	for id, age := range ages {
		require.NoError(t, store.Upsert(context.Background(), listing.AdRecord{
			ID:          id,
			URL:         "https://auto.ru/cars/used/sale/" + id + "/",
			Title:       "Volkswagen Golf",
			Year:        2018,
			Price:       450000,
			IsActive:    true,
			ParsedAt:    refDate.Add(-age),
			LastUpdated: refDate.Add(-age),
		}))
	}
	return store
}

func newTestService(analyzer Analyzer, store Store, opts Opts) *Service {
	s := NewService(analyzer, store, opts)
	s.now = func() time.Time { return refDate }
	return s
}

func TestRunOnce_RefreshesOnlyStale(t *testing.T) {
	store := seedStore(t, map[string]time.Duration{
		"fresh": time.Hour,
		"old":   48 * time.Hour,
	})
	analyzer := &fakeAnalyzer{}

	stats := newTestService(analyzer, store, Opts{}).RunOnce(context.Background())

	assert.Equal(t, Stats{Refreshed: 1}, stats)
	assert.Equal(t, []string{"https://auto.ru/cars/used/sale/old/"}, analyzer.Calls())
}

func TestRunOnce_DeactivatesGoneListings(t *testing.T) {
	store := seedStore(t, map[string]time.Duration{
		"gone":  72 * time.Hour,
		"flaky": 72 * time.Hour,
	})
	analyzer := &fakeAnalyzer{errors: map[string]error{
		"https://auto.ru/cars/used/sale/gone/": fmt.Errorf("failed to fetch: %w: %w", listing.ErrInputUnavailable, fetch.ErrGone),
		"https://auto.ru/cars/used/sale/flaky/": fmt.Errorf("failed to fetch: %w: status 503", listing.ErrInputUnavailable),
	}}

	stats := newTestService(analyzer, store, Opts{}).RunOnce(context.Background())

	assert.Equal(t, Stats{Deactivated: 1, Failed: 1}, stats)

	gone, err := store.Get(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, gone.IsActive)

	flaky, err := store.Get(context.Background(), "flaky")
	require.NoError(t, err)
	assert.True(t, flaky.IsActive)
}

func TestRunOnce_AnalyzesSeedsFirst(t *testing.T) {
	store := seedStore(t, map[string]time.Duration{"old": 48 * time.Hour})
	seeds := []string{"https://www.drom.ru/auto/1.html", "https://www.avito.ru/moskva/avtomobili/2"}
	analyzer := &fakeAnalyzer{errors: map[string]error{
		seeds[1]: listing.ErrInputUnavailable,
	}}

	stats := newTestService(analyzer, store, Opts{SeedURLs: seeds}).RunOnce(context.Background())

	assert.Equal(t, Stats{Seeded: 1, Refreshed: 1, Failed: 1}, stats)
	assert.Equal(t, []string{seeds[0], seeds[1], "https://auto.ru/cars/used/sale/old/"}, analyzer.Calls())
}

func TestRunOnce_RespectsBatch(t *testing.T) {
	store := seedStore(t, map[string]time.Duration{
		"a": 30 * time.Hour,
		"b": 40 * time.Hour,
		"c": 50 * time.Hour,
	})
	analyzer := &fakeAnalyzer{}

	stats := newTestService(analyzer, store, Opts{Batch: 2}).RunOnce(context.Background())

	assert.Equal(t, 2, stats.Refreshed)
	assert.Len(t, analyzer.Calls(), 2)
}

func TestRunOnce_FailingRecordsDoNotStarveBatch(t *testing.T) {
	store := seedStore(t, map[string]time.Duration{
		"blocked0": 96 * time.Hour,
		"blocked1": 96 * time.Hour,
		"healthy":  48 * time.Hour,
	})
	analyzer := &fakeAnalyzer{errors: map[string]error{
		"https://auto.ru/cars/used/sale/blocked0/": fmt.Errorf("failed to fetch: %w: status 403", listing.ErrInputUnavailable),
		"https://auto.ru/cars/used/sale/blocked1/": fmt.Errorf("failed to fetch: %w: status 429", listing.ErrInputUnavailable),
	}}
	svc := newTestService(analyzer, store, Opts{Batch: 2})

	first := svc.RunOnce(context.Background())
	assert.Equal(t, Stats{Failed: 2}, first)

	second := svc.RunOnce(context.Background())
	assert.Equal(t, Stats{Refreshed: 1, Failed: 1}, second)

	assert.Equal(t, []string{
		"https://auto.ru/cars/used/sale/blocked0/",
		"https://auto.ru/cars/used/sale/blocked1/",
		"https://auto.ru/cars/used/sale/healthy/",
		"https://auto.ru/cars/used/sale/blocked0/",
	}, analyzer.Calls())

	// Failed records stay active and stale
	rec, err := store.Get(context.Background(), "blocked1")
	require.NoError(t, err)
	assert.True(t, rec.IsActive)
}

func TestRunOnce_StopsOnCancel(t *testing.T) {
	store := seedStore(t, map[string]time.Duration{"a": 30 * time.Hour, "b": 40 * time.Hour})
	analyzer := &fakeAnalyzer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := newTestService(analyzer, store, Opts{Delay: time.Hour}).RunOnce(ctx)

	assert.Equal(t, Stats{}, stats)
	assert.Empty(t, analyzer.Calls())
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	store := seedStore(t, nil)
	analyzer := &fakeAnalyzer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- newTestService(analyzer, store, Opts{Interval: time.Hour}).Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
