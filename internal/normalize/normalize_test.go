package normalize

import (
	"strconv"
	"testing"
	"time"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/stretchr/testify/assert"
)

var refDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1 234 567", 1234567, true},
		{"1,234,567", 1234567, true},
		{"1234567", 1234567, true},
		{"1\u00a0234\u00a0567 ₽", 1234567, true},
		{"1\u202f234\u202f567", 1234567, true},
		{"450000.00", 450000, true},
		{"450 000,5", 450000, true},
		{"120 000 км", 120000, true},
		{"от 890 000 руб.", 890000, true},
		{"$1,200", 1200, true},
		{"", 0, false},
		{"цена договорная", 0, false},
		{"99999999999999999999", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseInt(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseInt_Idempotent(t *testing.T) {
	for _, in := range []string{"1 234 567", "1,234,567", "1234567"} {
		first, ok := ParseInt(in)
		assert.True(t, ok)
		again, ok := ParseInt(strconv.Itoa(first))
		assert.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Volkswagen Golf 2018", 2018, true},
		{"2018 г.", 2018, true},
		{"Golf VII, 2015 год", 2015, true},
		{"Model 1234 from 2019", 2019, true},
		{"2025", 2025, true},
		{"2026", 0, false},
		{"1949", 0, false},
		{"20180", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseYear(tt.in, refDate)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestVehicleAge(t *testing.T) {
	assert.Equal(t, 6, VehicleAge(2018, refDate))
	assert.Equal(t, 1, VehicleAge(2024, refDate))
	assert.Equal(t, 1, VehicleAge(2025, refDate))
}

func TestCanonicalRegion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Москва", "Москва"},
		{"мск", "Москва"},
		{"г. Москва, м. Сокол", "Москва"},
		{"СПб", "Санкт-Петербург"},
		{"Питер", "Санкт-Петербург"},
		{"казани", "Казань"},
		{"тверь", "Тверь"},
		{"  великий   новгород ", "Великий Новгород"},
		{"", listing.DefaultRegion},
		{" , ", listing.DefaultRegion},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalRegion(tt.in), tt.in)
	}
}

func TestNormalize_AllDefaults(t *testing.T) {
	facts := Normalize(listing.RawFacts{}, refDate)

	assert.Equal(t, listing.DefaultTitle, facts.Title)
	assert.Equal(t, 0, facts.Price)
	assert.False(t, facts.PriceSpecified())
	assert.Equal(t, 2024, facts.Year)
	assert.False(t, facts.YearKnown)
	assert.Equal(t, 0, facts.Mileage)
	assert.Equal(t, listing.DefaultRegion, facts.Region)
	assert.Empty(t, facts.ImageURLs)
	assert.Equal(t, 1, facts.AgeYears)
	assert.ElementsMatch(t, []string{
		listing.FieldTitle, listing.FieldPrice, listing.FieldYear,
		listing.FieldMileage, listing.FieldRegion, listing.FieldImages,
	}, facts.Gaps)
}

func TestNormalize_FullListing(t *testing.T) {
	raw := listing.RawFacts{
		Title:   "  Volkswagen   Golf 2018 ",
		Price:   "450 000 ₽",
		Year:    "Volkswagen Golf 2018",
		Mileage: "85 000 км",
		Region:  "Санкт-Петербург, Приморский район",
		ImageURLs: []string{
			"https://img.example.com/1.jpg",
			"https://img.example.com/1.jpg",
			"https://img.example.com/2.jpg",
		},
	}

	facts := Normalize(raw, refDate)

	assert.Equal(t, "Volkswagen Golf 2018", facts.Title)
	assert.Equal(t, 450000, facts.Price)
	assert.Equal(t, 2018, facts.Year)
	assert.True(t, facts.YearKnown)
	assert.Equal(t, 85000, facts.Mileage)
	assert.Equal(t, "Санкт-Петербург", facts.Region)
	assert.Len(t, facts.ImageURLs, 2)
	assert.Equal(t, 6, facts.AgeYears)
	assert.Empty(t, facts.Gaps)
}

func TestNormalize_CapsImages(t *testing.T) {
	var urls []string
	for i := 0; i < 15; i++ {
		urls = append(urls, "https://img.example.com/"+string(rune('a'+i))+".jpg")
	}

	facts := Normalize(listing.RawFacts{ImageURLs: urls}, refDate)

	assert.Len(t, facts.ImageURLs, listing.MaxImageCandidates)
}
