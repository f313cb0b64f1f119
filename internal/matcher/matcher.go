// Package matcher finds previously seen listings of the same model that are
// close in year and price.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/rs/zerolog/log"
)

const (
	yearSpread = 2

	// Price window is [0.7p, 1.3p], kept in integer tenths.
	priceLowTenths  = 7
	priceHighTenths = 13
)

// knownModels are matched anywhere in the title before falling back to the
// second title token.
var knownModels = []string{"golf", "passat", "polo", "jetta", "tiguan", "touran"}

// WindowQuerier is the part of the store the matcher needs.
type WindowQuerier interface {
	QueryWindow(ctx context.Context, w listing.Window) ([]listing.AdRecord, error)
}

// ModelKey derives the model identifier used to group comparable listings.
func ModelKey(title string) string {
	lower := strings.ToLower(title)
	for _, m := range knownModels {
		if strings.Contains(lower, m) {
			return m
		}
	}
	fields := strings.Fields(lower)
	if len(fields) >= 2 {
		return fields[1]
	}
	return ""
}

// WindowFor builds the comparable window around target.
func WindowFor(target listing.AdRecord, limit int) listing.Window {
	return listing.Window{
		ModelKey:    ModelKey(target.Title),
		YearMin:     target.Year - yearSpread,
		YearMax:     target.Year + yearSpread,
		PriceMin:    (target.Price*priceLowTenths + 9) / 10,
		PriceMax:    target.Price * priceHighTenths / 10,
		ExcludeID:   target.ID,
		Limit:       limit,
		TargetPrice: target.Price,
	}
}

// Matches reports whether rec belongs to the window, including the
// case-insensitive model match on the title.
func Matches(w listing.Window, rec listing.AdRecord) bool {
	if !w.Contains(rec) {
		return false
	}
	return w.ModelKey == "" || strings.Contains(strings.ToLower(rec.Title), w.ModelKey)
}

// FindComparable queries store for listings similar to target and returns at
// most limit of them, best first. The window and ranking are re-applied to the
// store's answer. A target without an extracted title has no model to compare
// and gets an empty set.
func FindComparable(ctx context.Context, target listing.AdRecord, store WindowQuerier, limit int) (listing.ComparableSet, error) {
	w := WindowFor(target, limit)
	set := listing.ComparableSet{ModelKey: w.ModelKey, Window: w, Records: []listing.AdRecord{}}
	if limit <= 0 || target.Title == listing.DefaultTitle {
		return set, nil
	}

	candidates, err := store.QueryWindow(ctx, w)
	if err != nil {
		return set, fmt.Errorf("failed to query comparable listings: %w", err)
	}

	var matched []listing.AdRecord
	for _, rec := range candidates {
		if Matches(w, rec) {
			matched = append(matched, rec)
		}
	}

	Rank(matched, target.Price)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	set.Records = append(set.Records, matched...)

	log.Debug().
		Str("model", w.ModelKey).
		Int("candidates", len(candidates)).
		Int("matched", len(set.Records)).
		Msg("comparable listings found")
	return set, nil
}

// Rank orders records by overall score descending (unscored last), then by
// distance from price, then by ID.
func Rank(records []listing.AdRecord, price int) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.OverallScore != nil && b.OverallScore == nil:
			return true
		case a.OverallScore == nil && b.OverallScore != nil:
			return false
		case a.OverallScore != nil && *a.OverallScore != *b.OverallScore:
			return *a.OverallScore > *b.OverallScore
		}
		da, db := abs(a.Price-price), abs(b.Price-price)
		if da != db {
			return da < db
		}
		return a.ID < b.ID
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
