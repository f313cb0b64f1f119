package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// looseStore ignores the window and returns everything it holds.
type looseStore struct {
	records []listing.AdRecord
	err     error
	calls   int
}

func (s *looseStore) QueryWindow(_ context.Context, _ listing.Window) ([]listing.AdRecord, error) {
	s.calls++
	return s.records, s.err
}

func score(v int) *int { return &v }

func golf(id string, year, price int, overall *int) listing.AdRecord {
	return listing.AdRecord{ID: id, Title: "Volkswagen Golf VII", Year: year, Price: price, OverallScore: overall, IsActive: true}
}

func TestModelKey(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Volkswagen Golf 2018", "golf"},
		{"VW GOLF GTI", "golf"},
		{"Volkswagen Tiguan II", "tiguan"},
		{"Skoda Octavia A7", "octavia"},
		{"Lada", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ModelKey(tt.title), tt.title)
	}
}

func TestWindowFor(t *testing.T) {
	w := WindowFor(listing.AdRecord{ID: "t", Title: "Volkswagen Golf", Year: 2018, Price: 450_000}, 3)

	assert.Equal(t, "golf", w.ModelKey)
	assert.Equal(t, 2016, w.YearMin)
	assert.Equal(t, 2020, w.YearMax)
	assert.Equal(t, 315_000, w.PriceMin)
	assert.Equal(t, 585_000, w.PriceMax)
	assert.Equal(t, "t", w.ExcludeID)
	assert.Equal(t, 3, w.Limit)
}

func TestWindowFor_RoundsInward(t *testing.T) {
	w := WindowFor(listing.AdRecord{Price: 101}, 1)

	// 70.7 and 131.3
	assert.Equal(t, 71, w.PriceMin)
	assert.Equal(t, 131, w.PriceMax)
}

func TestFindComparable_GolfCorpus(t *testing.T) {
	store := &looseStore{records: []listing.AdRecord{
		golf("g1", 2016, 300_000, score(90)),
		golf("g2", 2017, 375_000, score(70)),
		golf("g3", 2018, 450_000, nil),
		golf("g4", 2019, 525_000, score(80)),
		golf("g5", 2020, 600_000, score(95)),
	}}
	target := golf("target", 2018, 450_000, nil)

	set, err := FindComparable(context.Background(), target, store, 10)

	require.NoError(t, err)
	var ids []string
	for _, r := range set.Records {
		ids = append(ids, r.ID)
		assert.GreaterOrEqual(t, r.Price, 315_000)
		assert.LessOrEqual(t, r.Price, 585_000)
		assert.GreaterOrEqual(t, r.Year, 2016)
		assert.LessOrEqual(t, r.Year, 2020)
	}
	assert.Equal(t, []string{"g4", "g2", "g3"}, ids)
	assert.Equal(t, "golf", set.ModelKey)
}

func TestFindComparable_Exclusions(t *testing.T) {
	inactive := golf("old", 2018, 450_000, score(99))
	inactive.IsActive = false
	other := golf("passat", 2018, 450_000, score(99))
	other.Title = "Volkswagen Passat B8"

	store := &looseStore{records: []listing.AdRecord{
		golf("target", 2018, 450_000, score(99)),
		inactive,
		other,
		golf("ok", 2018, 460_000, score(50)),
	}}

	set, err := FindComparable(context.Background(), golf("target", 2018, 450_000, nil), store, 5)

	require.NoError(t, err)
	require.Len(t, set.Records, 1)
	assert.Equal(t, "ok", set.Records[0].ID)
}

func TestFindComparable_Limit(t *testing.T) {
	store := &looseStore{records: []listing.AdRecord{
		golf("a", 2018, 450_000, score(60)),
		golf("b", 2018, 450_000, score(61)),
		golf("c", 2018, 450_000, score(62)),
	}}
	target := golf("t", 2018, 450_000, nil)

	set, err := FindComparable(context.Background(), target, store, 2)
	require.NoError(t, err)
	assert.Len(t, set.Records, 2)
	assert.Equal(t, "c", set.Records[0].ID)

	set, err = FindComparable(context.Background(), target, store, 0)
	require.NoError(t, err)
	assert.Empty(t, set.Records)
	assert.Equal(t, 1, store.calls)
}

func TestFindComparable_StoreError(t *testing.T) {
	store := &looseStore{err: errors.New("connection refused")}

	_, err := FindComparable(context.Background(), golf("t", 2018, 450_000, nil), store, 3)

	assert.Error(t, err)
}

func TestFindComparable_UntitledTarget(t *testing.T) {
	untitled := func(id string) listing.AdRecord {
		return listing.AdRecord{ID: id, Title: listing.DefaultTitle, Year: 2015, Price: 500_000, IsActive: true}
	}
	store := &looseStore{records: []listing.AdRecord{untitled("u1"), untitled("u2")}}

	set, err := FindComparable(context.Background(), untitled("t"), store, 3)

	require.NoError(t, err)
	assert.Empty(t, set.Records)
	assert.Equal(t, 0, store.calls)
}

func TestRank_TieBreakers(t *testing.T) {
	records := []listing.AdRecord{
		golf("z", 2018, 460_000, score(70)),
		golf("b", 2018, 440_000, score(70)),
		golf("a", 2018, 460_000, score(70)),
		golf("n", 2018, 450_000, nil),
		golf("m", 2018, 450_000, score(71)),
	}

	Rank(records, 450_000)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"m", "a", "b", "z", "n"}, ids)
}

func TestMatches_EmptyModelKey(t *testing.T) {
	w := listing.Window{YearMin: 2000, YearMax: 2030, PriceMin: 0, PriceMax: 1_000_000}

	assert.True(t, Matches(w, listing.AdRecord{ID: "x", Title: "Anything", Year: 2010, Price: 1, IsActive: true}))
}
