// Package normalize turns extracted strings into typed listing facts. It never
// fails: anything it cannot parse falls back to a default and is recorded as a gap.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const minYear = 1950

var (
	trailingFractionRe = regexp.MustCompile(`[.,]\d{1,2}$`)
	digitRunRe         = regexp.MustCompile(`\d+`)
)

// Normalize converts raw facts into AdFacts using now as the reference date.
func Normalize(raw listing.RawFacts, now time.Time) listing.AdFacts {
	facts := listing.AdFacts{}

	facts.Title = strings.Join(strings.Fields(raw.Title), " ")
	if facts.Title == "" {
		facts.Title = listing.DefaultTitle
		facts.Gaps = append(facts.Gaps, listing.FieldTitle)
	}

	if price, ok := ParseInt(raw.Price); ok {
		facts.Price = price
	} else {
		facts.Gaps = append(facts.Gaps, listing.FieldPrice)
	}

	if year, ok := ParseYear(raw.Year, now); ok {
		facts.Year = year
		facts.YearKnown = true
	} else {
		facts.Year = now.Year()
		facts.Gaps = append(facts.Gaps, listing.FieldYear)
	}

	if mileage, ok := ParseInt(raw.Mileage); ok {
		facts.Mileage = mileage
	} else {
		facts.Gaps = append(facts.Gaps, listing.FieldMileage)
	}

	facts.Region = CanonicalRegion(raw.Region)
	if facts.Region == listing.DefaultRegion {
		facts.Gaps = append(facts.Gaps, listing.FieldRegion)
	}

	facts.ImageURLs = dedupe(raw.ImageURLs, listing.MaxImageCandidates)
	if len(facts.ImageURLs) == 0 {
		facts.Gaps = append(facts.Gaps, listing.FieldImages)
	}

	facts.AgeYears = VehicleAge(facts.Year, now)

	return facts
}

// ParseInt reads a human-formatted integer such as "1 234 567 ₽" or
// "1,234,567.00". A trailing fraction of one or two digits is dropped; every
// other non-digit is treated as a separator.
func ParseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Cut at the first unit after the number so "км" or "руб." don't leave a
	// dot that would read as a decimal separator.
	if start := strings.IndexFunc(s, unicode.IsDigit); start >= 0 {
		if i := strings.IndexFunc(s[start:], isUnit); i >= 0 {
			s = strings.TrimSpace(s[:start+i])
		}
	}
	s = trailingFractionRe.ReplaceAllString(s, "")

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func isUnit(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Sc, r)
}

// ParseYear returns the first four-digit token in s that is a plausible model
// year, i.e. between 1950 and next year.
func ParseYear(s string, now time.Time) (int, bool) {
	maxYear := now.Year() + 1
	for _, token := range digitRunRe.FindAllString(s, -1) {
		if len(token) != 4 {
			continue
		}
		y, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		if y >= minYear && y <= maxYear {
			return y, true
		}
	}
	return 0, false
}

// VehicleAge is the age in whole years, never less than one.
func VehicleAge(year int, now time.Time) int {
	return max(1, now.Year()-year)
}

var titleCaser = cases.Title(language.Russian)

// CanonicalRegion maps a free-form location to a canonical region name.
// Unknown locations are title-cased; empty input yields "unknown".
func CanonicalRegion(s string) string {
	first, _, _ := strings.Cut(s, ",")
	first = strings.Join(strings.Fields(first), " ")
	first = strings.TrimPrefix(first, "г. ")
	first = strings.TrimSpace(first)
	if first == "" {
		return listing.DefaultRegion
	}

	if canonical, ok := regionAliases[strings.ToLower(first)]; ok {
		return canonical
	}
	return titleCaser.String(first)
}

func dedupe(urls []string, limit int) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out
}
