package condition

import (
	"context"
	"encoding/hex"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

// pipelineVersion is part of every cache key; bump it when feature math changes.
const pipelineVersion = "v1"

// FeatureCache persists feature sets by content hash.
type FeatureCache interface {
	GetFeatureCache(ctx context.Context, hash string) (*listing.ImageFeatureSet, error)
	SetFeatureCache(ctx context.Context, hash string, features listing.ImageFeatureSet) error
}

// CachedAnalyzer wraps a FeatureExtractor with a content-addressed cache, so a
// photo shared by several listings or re-fetched by the refresh job is only
// analyzed once.
type CachedAnalyzer struct {
	inner FeatureExtractor
	store FeatureCache
}

// NewCachedAnalyzer creates a cached extractor.
func NewCachedAnalyzer(inner FeatureExtractor, store FeatureCache) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store}
}

// hashImage keys a photo by the BLAKE2b-256 digest of its bytes.
func hashImage(data []byte) string {
	sum := blake2b.Sum256(data)
	return pipelineVersion + ":" + hex.EncodeToString(sum[:])
}

// Features implements FeatureExtractor with caching. Cache failures are logged
// and otherwise ignored.
func (c *CachedAnalyzer) Features(ctx context.Context, data []byte) (listing.ImageFeatureSet, error) {
	hash := hashImage(data)

	if c.store != nil {
		cached, err := c.store.GetFeatureCache(ctx, hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check feature cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:19]).Msg("feature cache hit")
			return *cached, nil
		}
	}

	fs, err := c.inner.Features(ctx, data)
	if err != nil {
		return listing.ImageFeatureSet{}, err
	}

	if c.store != nil {
		if err := c.store.SetFeatureCache(ctx, hash, fs); err != nil {
			log.Warn().Err(err).Msg("failed to cache image features")
		} else {
			log.Debug().Str("hash", hash[:19]).Msg("cached image features")
		}
	}

	return fs, nil
}
