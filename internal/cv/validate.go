package cv

import (
	"image"
	"math"
)

// Frame validation predicates. Capture paths run these before accepting
// a raster: windows occluded by exclusive-fullscreen surfaces or mid
// scene-transition render as flat near-black frames that would poison a
// baseline.

const (
	// validationSampleTarget bounds the sampling grid so validation
	// cost stays flat regardless of capture size.
	validationSampleTarget = 2500

	solidBlackIntensity = 2
	solidBlackRatio     = 0.995
	solidBlackRange     = 4

	lowContrastMean  = 40
	lowContrastRange = 18
)

type gridStats struct {
	samples int
	dark    int
	minV    int
	maxV    int
	sum     uint64
}

// sampleGrayGrid walks a bounded grid over the image and accumulates
// grayscale statistics.
func sampleGrayGrid(img *image.RGBA) gridStats {
	stats := gridStats{minV: 255, maxV: 0}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return stats
	}

	step := int(math.Sqrt(float64(w*h) / validationSampleTarget))
	if step < 1 {
		step = 1
	}

	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			idx := y*img.Stride + x*4
			r := img.Pix[idx]
			g := img.Pix[idx+1]
			b := img.Pix[idx+2]

			// Luminance formula
			v := (int(r)*299 + int(g)*587 + int(b)*114) / 1000

			stats.samples++
			stats.sum += uint64(v)
			if v <= solidBlackIntensity {
				stats.dark++
			}
			if v < stats.minV {
				stats.minV = v
			}
			if v > stats.maxV {
				stats.maxV = v
			}
		}
	}
	return stats
}

// NearSolidBlack reports whether the image is effectively a black
// frame: almost every sample at the noise floor and essentially no
// dynamic range. A nil or empty image counts as black.
func NearSolidBlack(img *image.RGBA) bool {
	if img == nil {
		return true
	}
	stats := sampleGrayGrid(img)
	if stats.samples == 0 {
		return true
	}
	darkRatio := float64(stats.dark) / float64(stats.samples)
	return darkRatio >= solidBlackRatio && stats.maxV-stats.minV <= solidBlackRange
}

// LowContrastDark reports whether the image is a near-uniform dark
// frame (loading screens, scene fades). Stricter content than
// NearSolidBlack catches; only applied when the capture policy asks
// for it. A nil or empty image counts as low contrast.
func LowContrastDark(img *image.RGBA) bool {
	if img == nil {
		return true
	}
	stats := sampleGrayGrid(img)
	if stats.samples == 0 {
		return true
	}
	mean := int(stats.sum / uint64(stats.samples))
	return mean <= lowContrastMean && stats.maxV-stats.minV <= lowContrastRange
}
