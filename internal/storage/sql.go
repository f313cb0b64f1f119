package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raine/auto-inspect-bot/internal/listing"
)

const adColumns = `id, source_platform, url, title, price, year, mileage, region,
	image_urls, analyses, overall_score, is_active, parsed_at, last_updated`

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with ? placeholders and rebound per driver.
type sqlStore struct {
	db *sql.DB

	// numbered switches ? placeholders to $1, $2, ...
	numbered bool

	// serialize guards SQLite, which allows a single writer.
	serialize bool
	mu        sync.RWMutex
}

func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) lock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *sqlStore) rlock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// Upsert stores or updates a listing record.
func (s *sqlStore) Upsert(ctx context.Context, rec listing.AdRecord) error {
	defer s.lock()()

	imageURLs, err := json.Marshal(nonNil(rec.ImageURLs))
	if err != nil {
		return unavailable("marshal image urls", err)
	}
	condition, err := json.Marshal(rec.Condition)
	if err != nil {
		return unavailable("marshal condition", err)
	}

	now := time.Now().UTC()
	if rec.ParsedAt.IsZero() {
		rec.ParsedAt = now
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = now
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO car_ads (`+adColumns+`, title_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_platform = excluded.source_platform,
			url = excluded.url,
			title = excluded.title,
			title_key = excluded.title_key,
			price = excluded.price,
			year = excluded.year,
			mileage = excluded.mileage,
			region = excluded.region,
			image_urls = excluded.image_urls,
			analyses = excluded.analyses,
			overall_score = excluded.overall_score,
			is_active = excluded.is_active,
			last_updated = excluded.last_updated,
			last_attempt = NULL
	`), rec.ID, rec.SourcePlatform, rec.URL, rec.Title, rec.Price, rec.Year, rec.Mileage, rec.Region,
		string(imageURLs), string(condition), nullableInt(rec.OverallScore), rec.IsActive, rec.ParsedAt, rec.LastUpdated,
		strings.ToLower(rec.Title))
	if err != nil {
		return unavailable("upsert ad "+rec.ID, err)
	}

	return nil
}

// QueryWindow returns active records matching w, best score first.
func (s *sqlStore) QueryWindow(ctx context.Context, w listing.Window) ([]listing.AdRecord, error) {
	defer s.rlock()()

	if w.Limit <= 0 {
		return nil, nil
	}

	query := `SELECT ` + adColumns + ` FROM car_ads
		WHERE is_active = ? AND id != ?
			AND year BETWEEN ? AND ?
			AND price BETWEEN ? AND ?`
	args := []any{true, w.ExcludeID, w.YearMin, w.YearMax, w.PriceMin, w.PriceMax}

	if w.ModelKey != "" {
		// title_key is lowered in Go; SQL LOWER only folds ASCII in SQLite.
		query += ` AND title_key LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(w.ModelKey))+"%")
	}

	query += ` ORDER BY overall_score IS NULL, overall_score DESC, ABS(price - ?), id LIMIT ?`
	args = append(args, w.TargetPrice, w.Limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, unavailable("query window", err)
	}
	defer rows.Close()

	return scanAds(rows)
}

// Get retrieves a record by ID. Returns nil, nil if it doesn't exist.
func (s *sqlStore) Get(ctx context.Context, id string) (*listing.AdRecord, error) {
	defer s.rlock()()

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+adColumns+` FROM car_ads WHERE id = ?`), id)
	if err != nil {
		return nil, unavailable("query ad "+id, err)
	}
	defer rows.Close()

	ads, err := scanAds(rows)
	if err != nil {
		return nil, err
	}
	if len(ads) == 0 {
		return nil, nil
	}
	return &ads[0], nil
}

// ListStale returns active records not refreshed since olderThan. Records
// are ordered by their latest refresh or failed attempt, oldest first, so
// failing records fall behind ones not yet tried.
func (s *sqlStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]listing.AdRecord, error) {
	defer s.rlock()()

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+adColumns+` FROM car_ads
		WHERE is_active = ? AND last_updated < ?
		ORDER BY last_attempt IS NOT NULL, COALESCE(last_attempt, last_updated), id
		LIMIT ?
	`), true, olderThan.UTC(), limit)
	if err != nil {
		return nil, unavailable("query stale ads", err)
	}
	defer rows.Close()

	return scanAds(rows)
}

// MarkAttempted records a failed refresh of id at the given time. The record
// stays stale; the next successful upsert clears the attempt.
func (s *sqlStore) MarkAttempted(ctx context.Context, id string, at time.Time) error {
	defer s.lock()()

	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE car_ads SET last_attempt = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return unavailable("mark attempt "+id, err)
	}
	return nil
}

// Deactivate marks a record as no longer listed.
func (s *sqlStore) Deactivate(ctx context.Context, id string) error {
	defer s.lock()()

	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE car_ads SET is_active = ?, last_updated = ? WHERE id = ?`),
		false, time.Now().UTC(), id)
	if err != nil {
		return unavailable("deactivate ad "+id, err)
	}
	return nil
}

// GetFeatureCache retrieves cached image features by content hash.
// Returns nil, nil if not found.
func (s *sqlStore) GetFeatureCache(ctx context.Context, hash string) (*listing.ImageFeatureSet, error) {
	defer s.rlock()()

	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT features FROM feature_cache WHERE image_hash = ?`), hash).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("query feature cache", err)
	}

	var fs listing.ImageFeatureSet
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return nil, unavailable("unmarshal cached features", err)
	}
	return &fs, nil
}

// SetFeatureCache stores image features by content hash.
func (s *sqlStore) SetFeatureCache(ctx context.Context, hash string, features listing.ImageFeatureSet) error {
	defer s.lock()()

	raw, err := json.Marshal(features)
	if err != nil {
		return unavailable("marshal features", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO feature_cache (image_hash, features, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			features = excluded.features,
			created_at = excluded.created_at
	`), hash, string(raw), time.Now().UTC())
	if err != nil {
		return unavailable("set feature cache", err)
	}
	return nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func scanAds(rows *sql.Rows) ([]listing.AdRecord, error) {
	var ads []listing.AdRecord
	for rows.Next() {
		var (
			rec       listing.AdRecord
			imageURLs string
			condition string
			overall   sql.NullInt64
		)
		if err := rows.Scan(
			&rec.ID, &rec.SourcePlatform, &rec.URL, &rec.Title, &rec.Price, &rec.Year, &rec.Mileage, &rec.Region,
			&imageURLs, &condition, &overall, &rec.IsActive, &rec.ParsedAt, &rec.LastUpdated,
		); err != nil {
			return nil, unavailable("scan ad row", err)
		}

		if err := json.Unmarshal([]byte(imageURLs), &rec.ImageURLs); err != nil {
			return nil, unavailable("unmarshal image urls of "+rec.ID, err)
		}
		if err := json.Unmarshal([]byte(condition), &rec.Condition); err != nil {
			return nil, unavailable("unmarshal condition of "+rec.ID, err)
		}
		if overall.Valid {
			v := int(overall.Int64)
			rec.OverallScore = &v
		}

		ads = append(ads, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate ad rows", err)
	}
	return ads, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
