package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/raine/auto-inspect-bot/internal/listing"
)

// SaveUserAnalysis records that userID requested report.
func (s *sqlStore) SaveUserAnalysis(ctx context.Context, userID int64, report listing.AnalysisReport) (*UserAnalysis, error) {
	defer s.lock()()

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, unavailable("marshal report", err)
	}

	ua := &UserAnalysis{
		ID:           uuid.New().String(),
		UserID:       userID,
		AdID:         report.AdID,
		URL:          report.SourceURL,
		OverallScore: report.OverallScore,
		Report:       &report,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO user_analyses (id, user_id, ad_id, url, overall_score, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), ua.ID, ua.UserID, ua.AdID, ua.URL, ua.OverallScore, string(raw), ua.CreatedAt)
	if err != nil {
		return nil, unavailable("save user analysis", err)
	}

	return ua, nil
}

// RecentUserAnalyses returns the latest analyses of a user, newest first.
// Reports are not loaded.
func (s *sqlStore) RecentUserAnalyses(ctx context.Context, userID int64, limit int) ([]UserAnalysis, error) {
	defer s.rlock()()

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, ad_id, url, overall_score, created_at
		FROM user_analyses
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, unavailable("query user analyses", err)
	}
	defer rows.Close()

	var out []UserAnalysis
	for rows.Next() {
		var ua UserAnalysis
		if err := rows.Scan(&ua.ID, &ua.UserID, &ua.AdID, &ua.URL, &ua.OverallScore, &ua.CreatedAt); err != nil {
			return nil, unavailable("scan user analysis", err)
		}
		out = append(out, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate user analyses", err)
	}
	return out, nil
}
