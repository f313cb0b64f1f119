package storage

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements AdStore using SQLite.
type SQLiteStore struct {
	*sqlStore
}

var _ AdStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{sqlStore: &sqlStore{db: db, serialize: true}}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to restrict database permissions: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	adsQuery := `
	CREATE TABLE IF NOT EXISTS car_ads (
		id TEXT PRIMARY KEY,
		source_platform TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		title_key TEXT NOT NULL DEFAULT '',
		price INTEGER NOT NULL DEFAULT 0,
		year INTEGER NOT NULL,
		mileage INTEGER NOT NULL DEFAULT 0,
		region TEXT NOT NULL,
		image_urls TEXT NOT NULL DEFAULT '[]',
		analyses TEXT NOT NULL DEFAULT '{}',
		overall_score INTEGER,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		parsed_at DATETIME NOT NULL,
		last_updated DATETIME NOT NULL,
		last_attempt DATETIME
	);
	`
	if _, err := s.db.Exec(adsQuery); err != nil {
		return fmt.Errorf("failed to create car_ads table: %w", err)
	}

	// Migration: columns added after the first release
	for _, q := range []string{
		`ALTER TABLE car_ads ADD COLUMN title_key TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE car_ads ADD COLUMN last_attempt DATETIME`,
	} {
		if _, err := s.db.Exec(q); err != nil {
			// "duplicate column name" error is expected if column already exists
			if !strings.Contains(err.Error(), "duplicate column name") {
				log.Warn().Err(err).Str("query", q).Msg("failed to add car_ads column (migration)")
			}
		}
	}

	userAnalysesQuery := `
	CREATE TABLE IF NOT EXISTS user_analyses (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		ad_id TEXT NOT NULL,
		url TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		report TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(userAnalysesQuery); err != nil {
		return fmt.Errorf("failed to create user_analyses table: %w", err)
	}

	featureCacheQuery := `
	CREATE TABLE IF NOT EXISTS feature_cache (
		image_hash TEXT PRIMARY KEY,
		features TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(featureCacheQuery); err != nil {
		return fmt.Errorf("failed to create feature_cache table: %w", err)
	}

	for _, q := range []string{
		`CREATE INDEX IF NOT EXISTS idx_car_ads_window ON car_ads(is_active, year, price)`,
		`CREATE INDEX IF NOT EXISTS idx_car_ads_last_updated ON car_ads(last_updated)`,
		`CREATE INDEX IF NOT EXISTS idx_user_analyses_user ON user_analyses(user_id, created_at)`,
	} {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
