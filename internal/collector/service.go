// Package collector keeps the listing store fresh by re-analyzing stale records
// and seed URLs in the background.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/raine/auto-inspect-bot/internal/fetch"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultInterval is the time between refresh cycles.
	DefaultInterval = time.Hour

	// DefaultStaleAfter is the age after which a record is re-analyzed.
	DefaultStaleAfter = 24 * time.Hour

	// DefaultBatch is the maximum number of stale records refreshed per cycle.
	DefaultBatch = 20

	// DefaultStartDelay lets the bot fully start before the first cycle.
	DefaultStartDelay = 5 * time.Second
)

// Analyzer runs the full pipeline for a listing URL.
type Analyzer interface {
	AnalyzeURL(ctx context.Context, url string) (*listing.AnalysisReport, error)
}

// Store is the part of the listing store the collector needs.
type Store interface {
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]listing.AdRecord, error)
	MarkAttempted(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
}

type Opts struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Batch      int
	// Delay is the pause between two analyses within a cycle.
	Delay      time.Duration
	StartDelay time.Duration
	SeedURLs   []string
}

// Stats summarizes one refresh cycle.
type Stats struct {
	Refreshed   int
	Deactivated int
	Failed      int
	Seeded      int
}

// Service is the background job that refreshes stale listings.
type Service struct {
	analyzer Analyzer
	store    Store
	opts     Opts
	now      func() time.Time
}

// NewService creates a new collector service.
func NewService(analyzer Analyzer, store Store, opts Opts) *Service {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Batch <= 0 {
		opts.Batch = DefaultBatch
	}
	return &Service{
		analyzer: analyzer,
		store:    store,
		opts:     opts,
		now:      time.Now,
	}
}

// Run starts the refresh loop. It blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", s.opts.Interval).
		Dur("staleAfter", s.opts.StaleAfter).
		Int("seeds", len(s.opts.SeedURLs)).
		Msg("starting collector service")

	if !sleep(ctx, s.opts.StartDelay) {
		return nil
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("collector service stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes one refresh cycle: seed URLs first, then stale records.
func (s *Service) RunOnce(ctx context.Context) Stats {
	var stats Stats
	log.Debug().Msg("starting refresh cycle")

	processed := 0
	pause := func() bool {
		processed++
		if processed > 1 {
			return sleep(ctx, s.opts.Delay)
		}
		return ctx.Err() == nil
	}

	for _, url := range s.opts.SeedURLs {
		if !pause() {
			return stats
		}
		if _, err := s.analyzer.AnalyzeURL(ctx, url); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("seed analysis failed")
			stats.Failed++
			continue
		}
		stats.Seeded++
	}

	stale, err := s.store.ListStale(ctx, s.now().Add(-s.opts.StaleAfter), s.opts.Batch)
	if err != nil {
		log.Error().Err(err).Msg("failed to list stale listings")
		return stats
	}

	for _, rec := range stale {
		if !pause() {
			return stats
		}
		s.refresh(ctx, rec, &stats)
	}

	log.Info().
		Int("refreshed", stats.Refreshed).
		Int("deactivated", stats.Deactivated).
		Int("failed", stats.Failed).
		Int("seeded", stats.Seeded).
		Msg("refresh cycle complete")
	return stats
}

func (s *Service) refresh(ctx context.Context, rec listing.AdRecord, stats *Stats) {
	_, err := s.analyzer.AnalyzeURL(ctx, rec.URL)
	switch {
	case err == nil:
		stats.Refreshed++
	case errors.Is(err, fetch.ErrGone):
		if err := s.store.Deactivate(ctx, rec.ID); err != nil {
			log.Error().Err(err).Str("id", rec.ID).Msg("failed to deactivate listing")
			stats.Failed++
			return
		}
		log.Info().Str("id", rec.ID).Str("url", rec.URL).Msg("listing removed from site, deactivated")
		stats.Deactivated++
	default:
		// Transient failure; the record stays stale and moves behind the
		// records not yet tried
		log.Warn().Err(err).Str("id", rec.ID).Msg("refresh failed")
		stats.Failed++
		if err := s.store.MarkAttempted(ctx, rec.ID, s.now()); err != nil {
			log.Error().Err(err).Str("id", rec.ID).Msg("failed to record refresh attempt")
		}
	}
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
