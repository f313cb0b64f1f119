package main

import (
	"testing"

	"github.com/raine/auto-inspect-bot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalyzer_UsesConfiguredImageCap(t *testing.T) {
	assert.Equal(t, 8, newAnalyzer(config.Config{MaxImagesToAnalyze: 8}).MaxImages())
	assert.Equal(t, 2, newAnalyzer(config.Config{MaxImagesToAnalyze: 2}).MaxImages())
}

func TestLocalPhotos_PairsByPosition(t *testing.T) {
	page := []byte(`<html><body>
		<h1>Volkswagen Golf 2018</h1>
		<div class="gallery">
			<img src="https://img.example.com/1.jpg">
			<img src="https://img.example.com/2.jpg">
		</div>
	</body></html>`)

	photos, err := localPhotos("https://example.com/cars/1", page, []string{"front.jpg", "side.jpg", "extra.jpg"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"https://img.example.com/1.jpg": "front.jpg",
		"https://img.example.com/2.jpg": "side.jpg",
	}, photos)
}

func TestLocalPhotos_NoFiles(t *testing.T) {
	photos, err := localPhotos("https://example.com/cars/1", []byte("<html></html>"), nil)
	require.NoError(t, err)
	assert.Empty(t, photos)
}
