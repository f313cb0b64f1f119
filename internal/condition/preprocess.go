package condition

import (
	"image"
	"math"
)

const (
	claheGrid      = 8
	claheClipLimit = 2.0
	histBins       = 256
)

// planes is a float copy of an RGB image, channel values in 0..255.
type planes struct {
	w, h    int
	r, g, b []float64
}

func newPlanes(w, h int) *planes {
	n := w * h
	return &planes{w: w, h: h, r: make([]float64, n), g: make([]float64, n), b: make([]float64, n)}
}

func planesFrom(img *image.RGBA) *planes {
	b := img.Bounds()
	p := newPlanes(b.Dx(), b.Dy())
	for y := 0; y < p.h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < p.w; x++ {
			i := y*p.w + x
			p.r[i] = float64(row[x*4])
			p.g[i] = float64(row[x*4+1])
			p.b[i] = float64(row[x*4+2])
		}
	}
	return p
}

// luminance returns the BT.601 gray plane.
func (p *planes) luminance() []float64 {
	out := make([]float64, len(p.r))
	for i := range out {
		out[i] = 0.299*p.r[i] + 0.587*p.g[i] + 0.114*p.b[i]
	}
	return out
}

// preprocess sharpens every channel, then equalizes the luma channel with
// CLAHE while leaving chroma untouched. Output values are rounded to whole
// levels like an 8-bit image.
func preprocess(src *planes) *planes {
	r := sharpen(src.r, src.w, src.h)
	g := sharpen(src.g, src.w, src.h)
	b := sharpen(src.b, src.w, src.h)

	n := src.w * src.h
	luma := make([]uint8, n)
	cb := make([]float64, n)
	cr := make([]float64, n)
	for i := 0; i < n; i++ {
		y := 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
		luma[i] = uint8(clamp(math.Round(y), 0, 255))
		cb[i] = 128 - 0.168736*r[i] - 0.331264*g[i] + 0.5*b[i]
		cr[i] = 128 + 0.5*r[i] - 0.418688*g[i] - 0.081312*b[i]
	}

	eq := clahe(luma, src.w, src.h, claheGrid, claheClipLimit)

	out := newPlanes(src.w, src.h)
	for i := 0; i < n; i++ {
		y := eq[i]
		out.r[i] = math.Round(clamp(y+1.402*(cr[i]-128), 0, 255))
		out.g[i] = math.Round(clamp(y-0.344136*(cb[i]-128)-0.714136*(cr[i]-128), 0, 255))
		out.b[i] = math.Round(clamp(y+1.772*(cb[i]-128), 0, 255))
	}
	return out
}

// sharpen applies the 3x3 kernel [0,-1,0; -1,5,-1; 0,-1,0] with replicated
// borders.
func sharpen(src []float64, w, h int) []float64 {
	out := make([]float64, len(src))
	for y := 0; y < h; y++ {
		up, down := max(y-1, 0), min(y+1, h-1)
		for x := 0; x < w; x++ {
			left, right := max(x-1, 0), min(x+1, w-1)
			v := 5*src[y*w+x] - src[y*w+left] - src[y*w+right] - src[up*w+x] - src[down*w+x]
			out[y*w+x] = clamp(v, 0, 255)
		}
	}
	return out
}

// clahe performs contrast limited adaptive histogram equalization over a
// grid x grid tiling, bilinearly blending the four nearest tile mappings.
func clahe(src []uint8, w, h, grid int, clipLimit float64) []float64 {
	tilesX, tilesY := min(grid, w), min(grid, h)
	xEdge := func(i int) int { return i * w / tilesX }
	yEdge := func(i int) int { return i * h / tilesY }

	luts := make([][histBins]float64, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, x1 := xEdge(tx), xEdge(tx+1)
			y0, y1 := yEdge(ty), yEdge(ty+1)
			area := (x1 - x0) * (y1 - y0)

			var hist [histBins]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[src[y*w+x]]++
				}
			}

			clipHistogram(&hist, max(1, int(clipLimit*float64(area)/histBins)))

			lut := &luts[ty*tilesX+tx]
			scale := 255.0 / float64(area)
			sum := 0
			for i := range hist {
				sum += hist[i]
				lut[i] = clamp(math.Round(float64(sum)*scale), 0, 255)
			}
		}
	}

	tileW := float64(w) / float64(tilesX)
	tileH := float64(h) / float64(tilesY)
	out := make([]float64, len(src))

	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/tileH - 0.5
		ty1 := int(math.Floor(fy))
		wy := fy - float64(ty1)
		ty2 := min(ty1+1, tilesY-1)
		ty1 = max(ty1, 0)

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/tileW - 0.5
			tx1 := int(math.Floor(fx))
			wx := fx - float64(tx1)
			tx2 := min(tx1+1, tilesX-1)
			tx1 = max(tx1, 0)

			v := src[y*w+x]
			top := (1-wx)*luts[ty1*tilesX+tx1][v] + wx*luts[ty1*tilesX+tx2][v]
			bottom := (1-wx)*luts[ty2*tilesX+tx1][v] + wx*luts[ty2*tilesX+tx2][v]
			out[y*w+x] = math.Round((1-wy)*top + wy*bottom)
		}
	}
	return out
}

// clipHistogram caps every bin at limit and spreads the excess evenly.
func clipHistogram(hist *[histBins]int, limit int) {
	clipped := 0
	for i := range hist {
		if hist[i] > limit {
			clipped += hist[i] - limit
			hist[i] = limit
		}
	}

	batch := clipped / histBins
	residual := clipped - batch*histBins
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(histBins/residual, 1)
		for i := 0; i < histBins && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
