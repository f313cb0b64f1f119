package condition

import (
	"context"
	"fmt"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxImages is how many photos of a listing are analyzed.
const DefaultMaxImages = 5

// ImageSource lazily produces the encoded bytes of one photo.
type ImageSource func(ctx context.Context) ([]byte, error)

// FeatureExtractor computes the feature set of one encoded photo.
type FeatureExtractor interface {
	Features(ctx context.Context, data []byte) (listing.ImageFeatureSet, error)
}

// PixelExtractor decodes a photo and runs the pixel pipeline on it.
type PixelExtractor struct {
	MinDimension int
}

// Features implements FeatureExtractor.
func (p PixelExtractor) Features(ctx context.Context, data []byte) (listing.ImageFeatureSet, error) {
	minDim := p.MinDimension
	if minDim <= 0 {
		minDim = MinDimension
	}
	img, err := Decode(data, minDim)
	if err != nil {
		return listing.ImageFeatureSet{}, err
	}
	if err := ctx.Err(); err != nil {
		return listing.ImageFeatureSet{}, err
	}
	return FeaturesOf(img), nil
}

// Analyzer assesses the photos of a listing concurrently.
type Analyzer struct {
	extractor FeatureExtractor
	maxImages int
}

// NewAnalyzer creates an analyzer. A nil extractor uses PixelExtractor and a
// non-positive maxImages uses DefaultMaxImages.
func NewAnalyzer(extractor FeatureExtractor, maxImages int) *Analyzer {
	if extractor == nil {
		extractor = PixelExtractor{MinDimension: MinDimension}
	}
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}
	return &Analyzer{extractor: extractor, maxImages: maxImages}
}

// MaxImages returns the per-listing image cap.
func (a *Analyzer) MaxImages() int {
	return a.maxImages
}

// Assess analyzes up to MaxImages photos in order. Photos that cannot be
// fetched or decoded are counted as rejected; they never fail the assessment.
func (a *Analyzer) Assess(ctx context.Context, images []ImageSource) listing.ConditionAssessment {
	if len(images) > a.maxImages {
		images = images[:a.maxImages]
	}
	if len(images) == 0 {
		return listing.InsufficientCondition(0)
	}

	results := make([]*listing.ImageFeatureSet, len(images))

	// Plain group: one failing photo must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(a.maxImages)

	for i, src := range images {
		g.Go(func() error {
			fs, err := a.analyzeOne(ctx, src)
			if err != nil {
				log.Debug().Err(err).Int("image", i).Msg("image excluded from condition assessment")
				return nil
			}
			fs.Index = i
			results[i] = &fs
			return nil
		})
	}
	_ = g.Wait()

	var analyzed []listing.ImageFeatureSet
	for _, fs := range results {
		if fs != nil {
			analyzed = append(analyzed, *fs)
		}
	}

	assessment := Aggregate(analyzed, len(images)-len(analyzed))
	log.Debug().
		Int("analyzed", assessment.ImagesAnalyzed).
		Int("rejected", assessment.ImagesRejected).
		Int("score", assessment.Score).
		Msg("condition assessed")
	return assessment
}

func (a *Analyzer) analyzeOne(ctx context.Context, src ImageSource) (listing.ImageFeatureSet, error) {
	if err := ctx.Err(); err != nil {
		return listing.ImageFeatureSet{}, err
	}
	if src == nil {
		return listing.ImageFeatureSet{}, fmt.Errorf("nil image source: %w", listing.ErrDecodeFailure)
	}
	data, err := src(ctx)
	if err != nil {
		return listing.ImageFeatureSet{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	return a.extractor.Features(ctx, data)
}

// AssessBytes is Assess for photos already in memory.
func (a *Analyzer) AssessBytes(ctx context.Context, images [][]byte) listing.ConditionAssessment {
	sources := make([]ImageSource, len(images))
	for i, data := range images {
		sources[i] = func(context.Context) ([]byte, error) { return data, nil }
	}
	return a.Assess(ctx, sources)
}

// Aggregate combines per-photo feature sets into an assessment. The score is
// the integer mean of the composites.
func Aggregate(features []listing.ImageFeatureSet, rejected int) listing.ConditionAssessment {
	if len(features) == 0 {
		return listing.InsufficientCondition(rejected)
	}

	sum := 0
	for _, fs := range features {
		sum += fs.Composite
	}
	score := sum / len(features)

	return listing.ConditionAssessment{
		Score:          score,
		Label:          Label(score),
		ImagesAnalyzed: len(features),
		ImagesRejected: rejected,
		Images:         features,
	}
}

// Label maps a condition score to its descriptive label.
func Label(score int) string {
	switch {
	case score >= 80:
		return listing.LabelExcellent
	case score >= 60:
		return listing.LabelGood
	case score >= 40:
		return listing.LabelFair
	default:
		return listing.LabelNeedsAttention
	}
}
