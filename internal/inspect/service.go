// Package inspect runs the full analysis of one listing: extraction,
// normalization, photo condition, scoring, persistence and comparable lookup.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raine/auto-inspect-bot/internal/condition"
	"github.com/raine/auto-inspect-bot/internal/extract"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/matcher"
	"github.com/raine/auto-inspect-bot/internal/normalize"
	"github.com/raine/auto-inspect-bot/internal/scoring"
	"github.com/raine/auto-inspect-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// DefaultComparableLimit is how many comparable listings a report carries.
const DefaultComparableLimit = 3

// ErrNotFound is returned when a stored listing is looked up by an unknown ID.
var ErrNotFound = errors.New("listing not found")

// ImageFetcher retrieves the bytes of one photo.
type ImageFetcher func(ctx context.Context, url string) ([]byte, error)

// DocumentFetcher retrieves a listing page.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string) ([]byte, error)
}

type ServiceOpts struct {
	Store    storage.AdStore
	Analyzer *condition.Analyzer
	// Documents and Images back AnalyzeURL. Images is also the default
	// fetcher when Analyze is called without one.
	Documents       DocumentFetcher
	Images          ImageFetcher
	ComparableLimit int
}

// Service is the analysis pipeline shared by the bot, the HTTP API, the
// refresh job and the CLIs.
type Service struct {
	store           storage.AdStore
	analyzer        *condition.Analyzer
	documents       DocumentFetcher
	images          ImageFetcher
	comparableLimit int
	now             func() time.Time
}

func NewService(opts ServiceOpts) *Service {
	if opts.Analyzer == nil {
		opts.Analyzer = condition.NewAnalyzer(condition.PixelExtractor{}, condition.DefaultMaxImages)
	}
	if opts.ComparableLimit <= 0 {
		opts.ComparableLimit = DefaultComparableLimit
	}
	return &Service{
		store:           opts.Store,
		analyzer:        opts.Analyzer,
		documents:       opts.Documents,
		images:          opts.Images,
		comparableLimit: opts.ComparableLimit,
		now:             time.Now,
	}
}

// Analyze produces the report of the listing page raw fetched from sourceURL.
// Only an unusable document fails the analysis; store failures degrade the
// report to StoreUnavailable.
func (s *Service) Analyze(ctx context.Context, sourceURL string, raw []byte, fetch ImageFetcher) (*listing.AnalysisReport, error) {
	doc, err := extract.NewRawDocument(sourceURL, raw)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dialect := listing.DetectDialect(sourceURL)
	facts := normalize.Normalize(extract.Extract(doc, dialect), now)

	if fetch == nil {
		fetch = s.images
	}
	cond := s.analyzer.Assess(ctx, imageSources(facts.ImageURLs, s.analyzer.MaxImages(), fetch))
	scores := scoring.Score(facts, cond)

	overall := scores.Overall
	rec := listing.AdRecord{
		ID:             listing.StableID(sourceURL),
		SourcePlatform: dialect.Platform(),
		URL:            listing.CanonicalURL(sourceURL),
		Title:          facts.Title,
		Price:          facts.Price,
		Year:           facts.Year,
		Mileage:        facts.Mileage,
		Region:         facts.Region,
		ImageURLs:      facts.ImageURLs,
		Condition:      cond,
		OverallScore:   &overall,
		IsActive:       true,
		LastUpdated:    now.UTC(),
	}

	report := &listing.AnalysisReport{
		AdID:         rec.ID,
		SourceURL:    rec.URL,
		Platform:     rec.SourcePlatform,
		Facts:        facts,
		Condition:    cond,
		Scores:       scores,
		OverallScore: overall,
		Price:        scoring.ComparePrice(facts.Price, nil),
		AnalyzedAt:   now.UTC(),
	}

	log.Info().
		Str("id", rec.ID).
		Str("platform", rec.SourcePlatform).
		Str("title", facts.Title).
		Int("price", facts.Price).
		Int("overall", overall).
		Strs("gaps", facts.Gaps).
		Msg("listing analyzed")

	if s.store == nil {
		report.StoreUnavailable = true
		return report, nil
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("failed to store listing")
		report.StoreUnavailable = true
		return report, nil
	}

	set, err := matcher.FindComparable(ctx, rec, s.store, s.comparableLimit)
	if err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("failed to find comparable listings")
		report.StoreUnavailable = true
		return report, nil
	}
	report.Comparable = &set
	report.Price = scoring.ComparePrice(facts.Price, set.Records)

	return report, nil
}

// AnalyzeURL fetches the listing page and its photos and analyzes them.
func (s *Service) AnalyzeURL(ctx context.Context, url string) (*listing.AnalysisReport, error) {
	if s.documents == nil {
		return nil, fmt.Errorf("no document fetcher configured: %w", listing.ErrInputUnavailable)
	}
	raw, err := s.documents.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, url, raw, s.images)
}

// SaveUserAnalysis records that userID requested report. Failures are logged
// only; history is best effort.
func (s *Service) SaveUserAnalysis(ctx context.Context, userID int64, report *listing.AnalysisReport) {
	if s.store == nil || report == nil {
		return
	}
	if _, err := s.store.SaveUserAnalysis(ctx, userID, *report); err != nil {
		log.Warn().Err(err).Int64("userID", userID).Str("id", report.AdID).Msg("failed to save user analysis")
	}
}

// History returns the latest analyses requested by userID.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]storage.UserAnalysis, error) {
	if s.store == nil {
		return nil, listing.ErrStoreUnavailable
	}
	return s.store.RecentUserAnalyses(ctx, userID, limit)
}

// Listing returns a stored listing or ErrNotFound.
func (s *Service) Listing(ctx context.Context, id string) (*listing.AdRecord, error) {
	if s.store == nil {
		return nil, listing.ErrStoreUnavailable
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Similar returns a stored listing with its comparable set. A non-positive
// limit uses the configured comparable limit.
func (s *Service) Similar(ctx context.Context, id string, limit int) (*listing.AdRecord, listing.ComparableSet, error) {
	rec, err := s.Listing(ctx, id)
	if err != nil {
		return nil, listing.ComparableSet{}, err
	}
	if limit <= 0 {
		limit = s.comparableLimit
	}
	set, err := matcher.FindComparable(ctx, *rec, s.store, limit)
	return rec, set, err
}

// PriceDetails judges the price of a stored listing against its comparables.
func (s *Service) PriceDetails(ctx context.Context, id string) (*listing.AdRecord, listing.PriceAnalysis, error) {
	rec, set, err := s.Similar(ctx, id, 0)
	if err != nil {
		return rec, listing.PriceAnalysis{}, err
	}
	return rec, scoring.ComparePrice(rec.Price, set.Records), nil
}

func imageSources(urls []string, limit int, fetch ImageFetcher) []condition.ImageSource {
	if len(urls) > limit {
		urls = urls[:limit]
	}
	sources := make([]condition.ImageSource, len(urls))
	for i, u := range urls {
		if fetch == nil {
			continue
		}
		sources[i] = func(ctx context.Context) ([]byte, error) {
			return fetch(ctx, u)
		}
	}
	return sources
}
