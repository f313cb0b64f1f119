package condition

import (
	"image"
	"math"

	"github.com/raine/auto-inspect-bot/internal/listing"
)

const (
	cannyLow  = 50.0
	cannyHigh = 150.0

	weightColor      = 0.4
	weightEdge       = 0.3
	weightTexture    = 0.2
	weightBrightness = 0.1
)

// FeaturesOf runs the full pixel pipeline over a decoded photo.
func FeaturesOf(img *image.RGBA) listing.ImageFeatureSet {
	p := preprocess(planesFrom(img))
	gray := p.luminance()

	fs := listing.ImageFeatureSet{
		Width:             p.w,
		Height:            p.h,
		ColorUniformity:   colorUniformity(p),
		EdgeQuality:       math.Min(100, edgeDensity(gray, p.w, p.h)*1000),
		TextureSmoothness: clamp(100-0.1*laplacianVariance(gray, p.w, p.h), 0, 100),
	}
	fs.MeanLuminance = mean(gray) / 255 * 100
	fs.Brightness = brightnessScore(fs.MeanLuminance)
	fs.Composite = composite(fs)
	return fs
}

func composite(fs listing.ImageFeatureSet) int {
	v := weightColor*fs.ColorUniformity +
		weightEdge*fs.EdgeQuality +
		weightTexture*fs.TextureSmoothness +
		weightBrightness*fs.Brightness
	return int(clamp(math.Trunc(v), 0, 100))
}

// brightnessScore rates exposure from the mean luminance percentage.
func brightnessScore(percent float64) float64 {
	switch {
	case percent >= 50 && percent <= 80:
		return 90
	case percent >= 30 && percent < 50, percent > 80 && percent <= 90:
		return 70
	default:
		return 40
	}
}

// colorUniformity penalizes spread in hue and saturation, measured on the
// 8-bit HSV scale (hue 0..180, saturation 0..255).
func colorUniformity(p *planes) float64 {
	n := len(p.r)
	hues := make([]float64, n)
	sats := make([]float64, n)

	for i := 0; i < n; i++ {
		r, g, b := p.r[i], p.g[i], p.b[i]
		v := math.Max(r, math.Max(g, b))
		diff := v - math.Min(r, math.Min(g, b))

		if v > 0 {
			sats[i] = diff / v * 255
		}

		if diff > 0 {
			var h float64
			switch v {
			case r:
				h = 60 * (g - b) / diff
			case g:
				h = 120 + 60*(b-r)/diff
			default:
				h = 240 + 60*(r-g)/diff
			}
			if h < 0 {
				h += 360
			}
			hues[i] = h / 2
		}
	}

	return clamp(100-0.5*stddev(hues)-0.2*stddev(sats), 0, 100)
}

// edgeDensity returns the fraction of pixels marked as edges by a Canny
// detector: Sobel gradients with L1 magnitude, non-maximum suppression and
// hysteresis between cannyLow and cannyHigh.
func edgeDensity(gray []float64, w, h int) float64 {
	n := w * h
	if n == 0 {
		return 0
	}

	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return gray[y*w+x]
	}

	mag := make([]float64, n)
	sector := make([]uint8, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			i := y*w + x
			mag[i] = math.Abs(gx) + math.Abs(gy)

			angle := math.Atan2(gy, gx) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			switch {
			case angle < 22.5 || angle >= 157.5:
				sector[i] = 0
			case angle < 67.5:
				sector[i] = 1
			case angle < 112.5:
				sector[i] = 2
			default:
				sector[i] = 3
			}
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	thin := make([]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= cannyLow {
				continue
			}
			var a, b float64
			switch sector[i] {
			case 0:
				a, b = magAt(x-1, y), magAt(x+1, y)
			case 1:
				a, b = magAt(x-1, y-1), magAt(x+1, y+1)
			case 2:
				a, b = magAt(x, y-1), magAt(x, y+1)
			default:
				a, b = magAt(x+1, y-1), magAt(x-1, y+1)
			}
			if m > a && m >= b {
				thin[i] = m
			}
		}
	}

	edge := make([]bool, n)
	var stack []int
	for i, m := range thin {
		if m > cannyHigh {
			edge[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if !edge[j] && thin[j] > cannyLow {
					edge[j] = true
					stack = append(stack, j)
				}
			}
		}
	}

	count := 0
	for _, e := range edge {
		if e {
			count++
		}
	}
	return float64(count) / float64(n)
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response.
func laplacianVariance(gray []float64, w, h int) float64 {
	if w*h == 0 {
		return 0
	}
	resp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		up, down := max(y-1, 0), min(y+1, h-1)
		for x := 0; x < w; x++ {
			left, right := max(x-1, 0), min(x+1, w-1)
			resp[y*w+x] = gray[y*w+left] + gray[y*w+right] + gray[up*w+x] + gray[down*w+x] - 4*gray[y*w+x]
		}
	}
	sd := stddev(resp)
	return sd * sd
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	acc := 0.0
	for _, v := range values {
		d := v - m
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(values)))
}
