package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const pingAttempts = 10

// PostgresStore implements AdStore on PostgreSQL, for deployments where the
// local disk is ephemeral.
type PostgresStore struct {
	*sqlStore
}

var _ AdStore = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, waiting for the server to come up, and
// runs the schema migration.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("postgres not ready")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	store := &PostgresStore{sqlStore: &sqlStore{db: db, numbered: true}}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS car_ads (
			id              TEXT        PRIMARY KEY,
			source_platform VARCHAR(50) NOT NULL,
			url             TEXT        NOT NULL,
			title           TEXT        NOT NULL,
			title_key       TEXT        NOT NULL DEFAULT '',
			price           BIGINT      NOT NULL DEFAULT 0,
			year            INTEGER     NOT NULL,
			mileage         BIGINT      NOT NULL DEFAULT 0,
			region          TEXT        NOT NULL,
			image_urls      JSONB       NOT NULL DEFAULT '[]',
			analyses        JSONB       NOT NULL DEFAULT '{}',
			overall_score   INTEGER,
			is_active       BOOLEAN     NOT NULL DEFAULT TRUE,
			parsed_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_attempt    TIMESTAMPTZ
		);

		ALTER TABLE car_ads ADD COLUMN IF NOT EXISTS title_key    TEXT NOT NULL DEFAULT '';
		ALTER TABLE car_ads ADD COLUMN IF NOT EXISTS last_attempt TIMESTAMPTZ;

		CREATE INDEX IF NOT EXISTS idx_car_ads_window       ON car_ads(is_active, year, price);
		CREATE INDEX IF NOT EXISTS idx_car_ads_last_updated ON car_ads(last_updated);

		CREATE TABLE IF NOT EXISTS user_analyses (
			id            TEXT        PRIMARY KEY,
			user_id       BIGINT      NOT NULL,
			ad_id         TEXT        NOT NULL,
			url           TEXT        NOT NULL,
			overall_score INTEGER     NOT NULL,
			report        JSONB       NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_user_analyses_user ON user_analyses(user_id, created_at);

		CREATE TABLE IF NOT EXISTS feature_cache (
			image_hash TEXT        PRIMARY KEY,
			features   JSONB       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}
