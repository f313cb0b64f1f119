package listing

import (
	"errors"
	"time"
)

var (
	// ErrInputUnavailable means the listing document itself is empty or unreadable.
	// It is the only error that aborts an analysis.
	ErrInputUnavailable = errors.New("listing document unavailable")

	// ErrDecodeFailure means an image byte stream is not a usable photo.
	ErrDecodeFailure = errors.New("image decode failure")

	// ErrStoreUnavailable wraps failures of the storage collaborator.
	ErrStoreUnavailable = errors.New("store unavailable")
)

const (
	DefaultTitle  = "unknown model"
	DefaultRegion = "unknown"

	// MaxImageCandidates is how many image URLs are collected per listing.
	MaxImageCandidates = 10
)

// Field names used in RawFacts.Sources and AdFacts.Gaps.
const (
	FieldTitle   = "title"
	FieldPrice   = "price"
	FieldYear    = "year"
	FieldMileage = "mileage"
	FieldRegion  = "region"
	FieldImages  = "images"
)

// RawFacts holds the untyped strings found by the extractor.
type RawFacts struct {
	Title     string
	Price     string
	Year      string
	Mileage   string
	Region    string
	ImageURLs []string

	// Sources maps a field name to the strategy that produced it.
	Sources map[string]string
}

// AdFacts is the normalized, typed view of a listing.
type AdFacts struct {
	Title     string   `json:"title"`
	Price     int      `json:"price"` // 0 means unspecified
	Year      int      `json:"year"`
	YearKnown bool     `json:"year_known"`
	Mileage   int      `json:"mileage"`
	Region    string   `json:"region"`
	ImageURLs []string `json:"image_urls"`
	AgeYears  int      `json:"age_years"`

	// Gaps lists the fields that fell back to their defaults.
	Gaps []string `json:"gaps,omitempty"`
}

// PriceSpecified reports whether the listing carried a price at all.
func (f AdFacts) PriceSpecified() bool {
	return f.Price > 0
}

// HasGap reports whether field was resolved by its default.
func (f AdFacts) HasGap(field string) bool {
	for _, g := range f.Gaps {
		if g == field {
			return true
		}
	}
	return false
}

// ImageFeatureSet holds the visual-quality signals of a single photo.
type ImageFeatureSet struct {
	Index             int     `json:"index"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	ColorUniformity   float64 `json:"color_uniformity"`
	EdgeQuality       float64 `json:"edge_quality"`
	TextureSmoothness float64 `json:"texture_smoothness"`
	Brightness        float64 `json:"brightness"`
	MeanLuminance     float64 `json:"mean_luminance"`
	Composite         int     `json:"composite"`
}

// Condition labels.
const (
	LabelExcellent        = "excellent"
	LabelGood             = "good"
	LabelFair             = "fair"
	LabelNeedsAttention   = "needs attention"
	LabelInsufficientData = "insufficient data"
)

// ConditionAssessment aggregates the feature sets of all analyzable photos.
type ConditionAssessment struct {
	Score            int               `json:"score"`
	Label            string            `json:"label"`
	ImagesAnalyzed   int               `json:"images_analyzed"`
	ImagesRejected   int               `json:"images_rejected"`
	InsufficientData bool              `json:"insufficient_data"`
	Images           []ImageFeatureSet `json:"images,omitempty"`
}

// InsufficientCondition is the terminal state used when no photo could be analyzed.
func InsufficientCondition(rejected int) ConditionAssessment {
	return ConditionAssessment{
		Score:            0,
		Label:            LabelInsufficientData,
		ImagesRejected:   rejected,
		InsufficientData: true,
	}
}

// AdRecord is the unit handed to the store and to the matcher.
type AdRecord struct {
	ID             string              `json:"id"`
	SourcePlatform string              `json:"source_platform"`
	URL            string              `json:"url"`
	Title          string              `json:"title"`
	Price          int                 `json:"price"`
	Year           int                 `json:"year"`
	Mileage        int                 `json:"mileage"`
	Region         string              `json:"region"`
	ImageURLs      []string            `json:"image_urls"`
	Condition      ConditionAssessment `json:"condition"`
	OverallScore   *int                `json:"overall_score"`
	IsActive       bool                `json:"is_active"`
	ParsedAt       time.Time           `json:"parsed_at"`
	LastUpdated    time.Time           `json:"last_updated"`
}

// Window is the comparable-listing query passed to the store.
type Window struct {
	ModelKey  string `json:"model_key"`
	YearMin   int    `json:"year_min"`
	YearMax   int    `json:"year_max"`
	PriceMin  int    `json:"price_min"`
	PriceMax  int    `json:"price_max"`
	ExcludeID string `json:"exclude_id"`
	Limit     int    `json:"limit"`

	// TargetPrice is the price distances are ranked against.
	TargetPrice int `json:"target_price"`
}

// Contains reports whether rec falls inside the window. Title matching is left
// to the caller since it depends on case folding.
func (w Window) Contains(rec AdRecord) bool {
	return rec.ID != w.ExcludeID &&
		rec.IsActive &&
		rec.Year >= w.YearMin && rec.Year <= w.YearMax &&
		rec.Price >= w.PriceMin && rec.Price <= w.PriceMax
}

// ComparableSet is a ranked, bounded list of similar listings.
type ComparableSet struct {
	ModelKey string     `json:"model_key"`
	Window   Window     `json:"window"`
	Records  []AdRecord `json:"records"`
}

// SubScore is one component of the overall score.
type SubScore struct {
	Name      string `json:"name"`
	Band      string `json:"band"`
	Score     int    `json:"score"`
	Available bool   `json:"available"`
}

// ScoreBreakdown explains how the overall score was computed.
type ScoreBreakdown struct {
	Price          SubScore `json:"price"`
	Photos         SubScore `json:"photos"`
	Age            SubScore `json:"age"`
	Condition      SubScore `json:"condition"`
	PriceSpecified bool     `json:"price_specified"`
	Overall        int      `json:"overall"`
}

// Price recommendations.
const (
	PriceExcellent  = "excellent"
	PriceGood       = "good"
	PriceFair       = "fair"
	PriceHigh       = "high"
	PriceOverpriced = "overpriced"
	PriceUnknown    = "unknown"
)

// PriceAnalysis compares the listing price with its comparable set.
type PriceAnalysis struct {
	Recommendation  string  `json:"recommendation"`
	MarketAverage   int     `json:"market_average"`
	ComparableCount int     `json:"comparable_count"`
	DiffPercent     float64 `json:"diff_percent"`
}

// AnalysisReport is the result returned to callers of the pipeline.
type AnalysisReport struct {
	AdID             string              `json:"ad_id"`
	SourceURL        string              `json:"source_url"`
	Platform         string              `json:"platform"`
	Facts            AdFacts             `json:"facts"`
	Condition        ConditionAssessment `json:"condition"`
	Scores           ScoreBreakdown      `json:"scores"`
	OverallScore     int                 `json:"overall_score"`
	Comparable       *ComparableSet      `json:"comparable,omitempty"`
	Price            PriceAnalysis       `json:"price"`
	StoreUnavailable bool                `json:"store_unavailable"`
	AnalyzedAt       time.Time           `json:"analyzed_at"`
}
