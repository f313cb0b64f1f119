package scoring

import (
	"testing"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/stretchr/testify/assert"
)

func imageURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = "https://img.example.com/" + string(rune('a'+i)) + ".jpg"
	}
	return urls
}

func TestPriceScore(t *testing.T) {
	tests := []struct {
		price int
		band  string
		score int
	}{
		{0, "unspecified", 30},
		{499_999, "budget", 70},
		{500_000, "economy", 80},
		{1_999_999, "mid", 85},
		{2_000_000, "upper", 75},
		{4_000_000, "premium", 65},
	}

	for _, tt := range tests {
		s := PriceScore(tt.price)
		assert.Equal(t, tt.band, s.Band, tt.price)
		assert.Equal(t, tt.score, s.Score, tt.price)
	}
}

func TestPhotoScore(t *testing.T) {
	assert.Equal(t, 20, PhotoScore(0).Score)
	assert.Equal(t, 50, PhotoScore(2).Score)
	assert.Equal(t, "good", PhotoScore(3).Band)
	assert.Equal(t, 80, PhotoScore(5).Score)
	assert.Equal(t, 100, PhotoScore(6).Score)
}

func TestAgeScore(t *testing.T) {
	assert.Equal(t, 100, AgeScore(1).Score)
	assert.Equal(t, 100, AgeScore(3).Score)
	assert.Equal(t, 80, AgeScore(7).Score)
	assert.Equal(t, 60, AgeScore(12).Score)
	assert.Equal(t, 40, AgeScore(13).Score)
}

func TestScore_WithCondition(t *testing.T) {
	ad := listing.AdFacts{Price: 450_000, ImageURLs: imageURLs(4), AgeYears: 6}
	cond := listing.ConditionAssessment{Score: 69, Label: listing.LabelGood, ImagesAnalyzed: 4}

	b := Score(ad, cond)

	// (70 + 80 + 80 + 69) / 4
	assert.Equal(t, 74, b.Overall)
	assert.True(t, b.Condition.Available)
	assert.True(t, b.PriceSpecified)
	assert.Equal(t, "good", b.Photos.Band)
}

func TestScore_UnspecifiedPrice(t *testing.T) {
	ad := listing.AdFacts{Price: 0, ImageURLs: imageURLs(3), AgeYears: 2}
	cond := listing.ConditionAssessment{Score: 70, Label: listing.LabelGood, ImagesAnalyzed: 3}

	b := Score(ad, cond)

	assert.False(t, b.PriceSpecified)
	assert.Equal(t, 30, b.Price.Score)
	assert.True(t, b.Price.Available)
	// (30 + 80 + 100 + 70) / 4
	assert.Equal(t, 70, b.Overall)
}

func TestScore_InsufficientConditionExcluded(t *testing.T) {
	ad := listing.AdFacts{Price: 1_500_000, AgeYears: 10}

	b := Score(ad, listing.InsufficientCondition(0))

	assert.False(t, b.Condition.Available)
	// (85 + 20 + 60) / 3
	assert.Equal(t, 55, b.Overall)
}

func TestComparePrice(t *testing.T) {
	comparable := []listing.AdRecord{{Price: 400_000}, {Price: 500_000}, {Price: 0}}

	tests := []struct {
		price int
		want  string
	}{
		{380_000, listing.PriceExcellent},
		{420_000, listing.PriceGood},
		{450_000, listing.PriceFair},
		{470_000, listing.PriceFair},
		{540_000, listing.PriceHigh},
		{541_000, listing.PriceOverpriced},
	}

	for _, tt := range tests {
		pa := ComparePrice(tt.price, comparable)
		assert.Equal(t, tt.want, pa.Recommendation, tt.price)
		assert.Equal(t, 450_000, pa.MarketAverage)
		assert.Equal(t, 2, pa.ComparableCount)
	}
}

func TestComparePrice_Unknown(t *testing.T) {
	assert.Equal(t, listing.PriceUnknown, ComparePrice(0, []listing.AdRecord{{Price: 1}}).Recommendation)
	assert.Equal(t, listing.PriceUnknown, ComparePrice(500_000, nil).Recommendation)
	assert.Equal(t, listing.PriceUnknown, ComparePrice(500_000, []listing.AdRecord{{Price: 0}}).Recommendation)
}

func TestComparePrice_DiffPercent(t *testing.T) {
	pa := ComparePrice(495_000, []listing.AdRecord{{Price: 450_000}})

	assert.InDelta(t, 10.0, pa.DiffPercent, 0.001)
	assert.Equal(t, listing.PriceHigh, pa.Recommendation)
}
