package cv

import (
	"image"

	"golang.org/x/image/draw"
)

// PreprocessSize is the square edge length every frame is resampled to
// before diffing. Small enough to bound comparison cost, large enough
// that a region change of a few percent still moves the score.
const PreprocessSize = 96

// Frame is an owned grayscale raster in row-major order. Frames are
// immutable once produced by Preprocess; two frames must have equal
// dimensions to be diffed.
type Frame struct {
	W, H int
	Pix  []uint8
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(w, h int) *Frame {
	if w <= 0 || h <= 0 {
		return &Frame{}
	}
	return &Frame{W: w, H: h, Pix: make([]uint8, w*h)}
}

// Empty reports whether the frame holds no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.W <= 0 || f.H <= 0 || len(f.Pix) == 0
}

// At returns the intensity at (x, y). Out-of-range coordinates return 0.
func (f *Frame) At(x, y int) uint8 {
	if f.Empty() || x < 0 || y < 0 || x >= f.W || y >= f.H {
		return 0
	}
	return f.Pix[y*f.W+x]
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() *Frame {
	if f.Empty() {
		return &Frame{}
	}
	out := &Frame{W: f.W, H: f.H, Pix: make([]uint8, len(f.Pix))}
	copy(out.Pix, f.Pix)
	return out
}

// Preprocess converts a raw capture to the canonical comparison form:
// grayscale, resampled (ignoring aspect ratio) to PreprocessSize square
// with nearest-neighbor so that capture jitter does not smear edges into
// phantom diffs. A nil or empty input yields an empty frame.
func Preprocess(img *image.RGBA) *Frame {
	if img == nil {
		return &Frame{}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return &Frame{}
	}

	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			idx := (y-bounds.Min.Y)*img.Stride + (x-bounds.Min.X)*4
			r := img.Pix[idx]
			g := img.Pix[idx+1]
			b := img.Pix[idx+2]

			// Luminance formula
			gray.Pix[(y-bounds.Min.Y)*gray.Stride+(x-bounds.Min.X)] =
				uint8((int(r)*299 + int(g)*587 + int(b)*114) / 1000)
		}
	}

	scaled := image.NewGray(image.Rect(0, 0, PreprocessSize, PreprocessSize))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), gray, bounds, draw.Src, nil)

	out := NewFrame(PreprocessSize, PreprocessSize)
	for y := 0; y < PreprocessSize; y++ {
		copy(out.Pix[y*PreprocessSize:(y+1)*PreprocessSize],
			scaled.Pix[y*scaled.Stride:y*scaled.Stride+PreprocessSize])
	}
	return out
}
