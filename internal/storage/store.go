// Package storage persists analyzed listings, the comparable corpus, per-user
// analysis history and the image feature cache.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/rs/zerolog/log"
)

// UserAnalysis records that a user requested an analysis of a listing.
type UserAnalysis struct {
	ID           string
	UserID       int64
	AdID         string
	URL          string
	OverallScore int
	Report       *listing.AnalysisReport
	CreatedAt    time.Time
}

// AdStore defines the interface for listing persistence.
type AdStore interface {
	// Upsert inserts or replaces a record by ID. The first ParsedAt is kept.
	Upsert(ctx context.Context, rec listing.AdRecord) error
	// QueryWindow returns active records inside w, ranked best first.
	QueryWindow(ctx context.Context, w listing.Window) ([]listing.AdRecord, error)
	// Get returns nil, nil when the record doesn't exist.
	Get(ctx context.Context, id string) (*listing.AdRecord, error)
	// ListStale returns active records last updated before olderThan. Records
	// never attempted come first, then by latest attempt, oldest first.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]listing.AdRecord, error)
	// MarkAttempted records a failed refresh so ListStale rotates the record back.
	MarkAttempted(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string) error

	// User analysis history
	SaveUserAnalysis(ctx context.Context, userID int64, report listing.AnalysisReport) (*UserAnalysis, error)
	RecentUserAnalyses(ctx context.Context, userID int64, limit int) ([]UserAnalysis, error)

	// Image feature cache
	GetFeatureCache(ctx context.Context, hash string) (*listing.ImageFeatureSet, error)
	SetFeatureCache(ctx context.Context, hash string, features listing.ImageFeatureSet) error

	Close() error
}

// Open picks the store implementation: PostgreSQL when databaseURL is set,
// otherwise SQLite at sqlitePath.
func Open(ctx context.Context, databaseURL, sqlitePath string) (AdStore, error) {
	if databaseURL != "" {
		log.Info().Msg("using PostgreSQL store")
		return NewPostgresStore(ctx, databaseURL)
	}
	log.Info().Str("path", sqlitePath).Msg("using SQLite store")
	return NewSQLiteStore(sqlitePath)
}

// unavailable wraps a driver error so callers can detect it with
// errors.Is(err, listing.ErrStoreUnavailable).
func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, listing.ErrStoreUnavailable, err)
}
