// Package scoring combines listing facts and the condition assessment into a
// single 0..100 quality score and judges the asking price against comparable
// listings.
package scoring

import (
	"math"

	"github.com/raine/auto-inspect-bot/internal/listing"
)

// Sub-score names.
const (
	NamePrice     = "price"
	NamePhotos    = "photos"
	NameAge       = "age"
	NameCondition = "condition"
)

// Score computes the sub-scores of a listing and their truncated mean. The
// condition score only participates when at least one photo was analyzed.
func Score(ad listing.AdFacts, cond listing.ConditionAssessment) listing.ScoreBreakdown {
	b := listing.ScoreBreakdown{
		Price:          PriceScore(ad.Price),
		Photos:         PhotoScore(len(ad.ImageURLs)),
		Age:            AgeScore(ad.AgeYears),
		PriceSpecified: ad.PriceSpecified(),
		Condition: listing.SubScore{
			Name:      NameCondition,
			Band:      cond.Label,
			Score:     cond.Score,
			Available: !cond.InsufficientData,
		},
	}

	sum, n := 0, 0
	for _, s := range []listing.SubScore{b.Price, b.Photos, b.Age, b.Condition} {
		if !s.Available {
			continue
		}
		sum += s.Score
		n++
	}
	b.Overall = sum / n

	return b
}

// PriceScore rates the price bracket. A zero price means unspecified.
func PriceScore(price int) listing.SubScore {
	s := listing.SubScore{Name: NamePrice, Available: true}
	switch {
	case price <= 0:
		s.Band, s.Score = "unspecified", 30
	case price < 500_000:
		s.Band, s.Score = "budget", 70
	case price < 1_000_000:
		s.Band, s.Score = "economy", 80
	case price < 2_000_000:
		s.Band, s.Score = "mid", 85
	case price < 4_000_000:
		s.Band, s.Score = "upper", 75
	default:
		s.Band, s.Score = "premium", 65
	}
	return s
}

// PhotoScore rates how well a listing is illustrated.
func PhotoScore(count int) listing.SubScore {
	s := listing.SubScore{Name: NamePhotos, Available: true}
	switch {
	case count <= 0:
		s.Band, s.Score = "none", 20
	case count <= 2:
		s.Band, s.Score = "few", 50
	case count <= 5:
		s.Band, s.Score = "good", 80
	default:
		s.Band, s.Score = "plenty", 100
	}
	return s
}

// AgeScore rates the vehicle age in years.
func AgeScore(years int) listing.SubScore {
	s := listing.SubScore{Name: NameAge, Available: true}
	switch {
	case years <= 3:
		s.Band, s.Score = "new", 100
	case years <= 7:
		s.Band, s.Score = "recent", 80
	case years <= 12:
		s.Band, s.Score = "mature", 60
	default:
		s.Band, s.Score = "old", 40
	}
	return s
}

// ComparePrice judges price against the average of the priced comparables.
func ComparePrice(price int, comparable []listing.AdRecord) listing.PriceAnalysis {
	sum, n := 0, 0
	for _, rec := range comparable {
		if rec.Price > 0 {
			sum += rec.Price
			n++
		}
	}

	pa := listing.PriceAnalysis{Recommendation: listing.PriceUnknown, ComparableCount: n}
	if price <= 0 || n == 0 {
		return pa
	}

	avg := float64(sum) / float64(n)
	ratio := float64(price) / avg
	pa.MarketAverage = int(math.Round(avg))
	pa.DiffPercent = math.Round((ratio-1)*1000) / 10

	switch {
	case ratio < 0.85:
		pa.Recommendation = listing.PriceExcellent
	case ratio < 0.95:
		pa.Recommendation = listing.PriceGood
	case ratio <= 1.05:
		pa.Recommendation = listing.PriceFair
	case ratio <= 1.20:
		pa.Recommendation = listing.PriceHigh
	default:
		pa.Recommendation = listing.PriceOverpriced
	}
	return pa
}
