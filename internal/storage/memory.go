package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/matcher"
)

// MemoryStore implements AdStore in process memory. It backs the offline CLI
// and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	ads      map[string]listing.AdRecord
	analyses []UserAnalysis
	features map[string]listing.ImageFeatureSet
	attempts map[string]time.Time
}

var _ AdStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ads:      make(map[string]listing.AdRecord),
		features: make(map[string]listing.ImageFeatureSet),
		attempts: make(map[string]time.Time),
	}
}

func (m *MemoryStore) Upsert(_ context.Context, rec listing.AdRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if prev, ok := m.ads[rec.ID]; ok && !prev.ParsedAt.IsZero() {
		rec.ParsedAt = prev.ParsedAt
	}
	if rec.ParsedAt.IsZero() {
		rec.ParsedAt = now
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = now
	}
	rec.ImageURLs = append([]string(nil), rec.ImageURLs...)
	m.ads[rec.ID] = rec
	delete(m.attempts, rec.ID)
	return nil
}

func (m *MemoryStore) QueryWindow(_ context.Context, w listing.Window) ([]listing.AdRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if w.Limit <= 0 {
		return nil, nil
	}

	var out []listing.AdRecord
	for _, rec := range m.ads {
		if matcher.Matches(w, rec) {
			out = append(out, rec)
		}
	}
	matcher.Rank(out, w.TargetPrice)
	if len(out) > w.Limit {
		out = out[:w.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*listing.AdRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.ads[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) ListStale(_ context.Context, olderThan time.Time, limit int) ([]listing.AdRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []listing.AdRecord
	for _, rec := range m.ads {
		if rec.IsActive && rec.LastUpdated.Before(olderThan) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, triedI := m.attempts[out[i].ID]
		aj, triedJ := m.attempts[out[j].ID]
		if triedI != triedJ {
			return !triedI
		}
		if !triedI {
			ai, aj = out[i].LastUpdated, out[j].LastUpdated
		}
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return out[i].ID < out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkAttempted(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ads[id]; ok {
		m.attempts[id] = at.UTC()
	}
	return nil
}

func (m *MemoryStore) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.ads[id]; ok {
		rec.IsActive = false
		rec.LastUpdated = time.Now().UTC()
		m.ads[id] = rec
	}
	return nil
}

func (m *MemoryStore) SaveUserAnalysis(_ context.Context, userID int64, report listing.AnalysisReport) (*UserAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ua := UserAnalysis{
		ID:           uuid.New().String(),
		UserID:       userID,
		AdID:         report.AdID,
		URL:          report.SourceURL,
		OverallScore: report.OverallScore,
		Report:       &report,
		CreatedAt:    time.Now().UTC(),
	}
	m.analyses = append(m.analyses, ua)
	return &ua, nil
}

func (m *MemoryStore) RecentUserAnalyses(_ context.Context, userID int64, limit int) ([]UserAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []UserAnalysis
	for i := len(m.analyses) - 1; i >= 0 && len(out) < limit; i-- {
		if ua := m.analyses[i]; ua.UserID == userID {
			ua.Report = nil
			out = append(out, ua)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetFeatureCache(_ context.Context, hash string) (*listing.ImageFeatureSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fs, ok := m.features[hash]
	if !ok {
		return nil, nil
	}
	return &fs, nil
}

func (m *MemoryStore) SetFeatureCache(_ context.Context, hash string, features listing.ImageFeatureSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.features[hash] = features
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
