// Package condition estimates the visual condition of a vehicle from its
// listing photos using pixel statistics: color uniformity, edge structure,
// surface texture and exposure.
package condition

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MinDimension is the smallest accepted width or height in pixels.
	MinDimension = 64

	// maxAnalysisSide bounds the longer side of the working copy of a photo.
	maxAnalysisSide = 1024

	// maxPixels rejects images whose header claims an absurd size.
	maxPixels = 80_000_000
)

// Decode parses an encoded photo (JPEG, PNG, GIF or WebP) and returns an RGBA
// working copy scaled down to at most maxAnalysisSide on the longer side.
// Single-channel images, undersized images and unreadable data are rejected
// with listing.ErrDecodeFailure.
func Decode(data []byte, minDimension int) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data: %w", listing.ErrDecodeFailure)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %v: %w", err, listing.ErrDecodeFailure)
	}
	if cfg.Width < minDimension || cfg.Height < minDimension {
		return nil, fmt.Errorf("image %dx%d is below %d px: %w", cfg.Width, cfg.Height, minDimension, listing.ErrDecodeFailure)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("image %dx%d is too large: %w", cfg.Width, cfg.Height, listing.ErrDecodeFailure)
	}
	if singleChannel(cfg.ColorModel) {
		return nil, fmt.Errorf("%s image has no color channels: %w", format, listing.ErrDecodeFailure)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %v: %w", format, err, listing.ErrDecodeFailure)
	}

	return workingCopy(img), nil
}

func singleChannel(m color.Model) bool {
	switch m {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	return false
}

func workingCopy(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if longest := max(w, h); longest > maxAnalysisSide {
		w = max(1, w*maxAnalysisSide/longest)
		h = max(1, h*maxAnalysisSide/longest)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		return dst
	}

	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
