package cv

import (
	"image"
	"math"
)

// degenerateExtent is the normalized width/height below which a crop is
// considered collapsed and replaced by the full frame.
const degenerateExtent = 1e-6

// NormalizedRegion is a rectangle with every edge expressed as a
// fraction of some reference surface, left/top/right/bottom in [0,1].
// Regions read from configuration are not guaranteed to be ordered or
// clamped; call Canonical before using one.
type NormalizedRegion struct {
	Left, Top, Right, Bottom float64
}

// FullRegion returns the region covering an entire surface.
func FullRegion() NormalizedRegion {
	return NormalizedRegion{Left: 0, Top: 0, Right: 1, Bottom: 1}
}

// Canonical swaps inverted edges and clamps all four into [0,1].
func (r NormalizedRegion) Canonical() NormalizedRegion {
	if r.Left > r.Right {
		r.Left, r.Right = r.Right, r.Left
	}
	if r.Top > r.Bottom {
		r.Top, r.Bottom = r.Bottom, r.Top
	}
	return NormalizedRegion{
		Left:   clamp01(r.Left),
		Top:    clamp01(r.Top),
		Right:  clamp01(r.Right),
		Bottom: clamp01(r.Bottom),
	}
}

// Width returns the horizontal extent. Negative for inverted regions.
func (r NormalizedRegion) Width() float64 {
	return r.Right - r.Left
}

// Height returns the vertical extent. Negative for inverted regions.
func (r NormalizedRegion) Height() float64 {
	return r.Bottom - r.Top
}

// RegionToPixels scales a normalized region onto a reference surface.
// The result always spans at least one pixel per axis and never exceeds
// the reference bounds; a non-positive reference size yields the empty
// rectangle.
func RegionToPixels(r NormalizedRegion, ref image.Point) image.Rectangle {
	if ref.X <= 0 || ref.Y <= 0 {
		return image.Rectangle{}
	}
	c := r.Canonical()

	left := int(math.Floor(c.Left * float64(ref.X)))
	top := int(math.Floor(c.Top * float64(ref.Y)))
	right := int(math.Ceil(c.Right * float64(ref.X)))
	bottom := int(math.Ceil(c.Bottom * float64(ref.Y)))

	left = clampInt(left, 0, ref.X-1)
	top = clampInt(top, 0, ref.Y-1)
	right = clampInt(right, left+1, ref.X)
	bottom = clampInt(bottom, top+1, ref.Y)

	return image.Rect(left, top, right, bottom)
}

// MapRegionAcrossCrop re-expresses a region defined against an uncropped
// source surface in the coordinate space of a secondary surface that
// shows only a crop of the source, aspect-fitted to its own shape. The
// crop is first trimmed symmetrically along its wider axis until its
// pixel aspect matches the destination surface, mirroring what the
// letterboxing capture actually displayed. The boolean is false when
// the source region has no overlap with the trimmed crop; callers must
// not diff against an invalid mapping. A collapsed crop falls back to
// the full frame.
func MapRegionAcrossCrop(src, crop NormalizedRegion, srcRef, dst image.Point) (NormalizedRegion, bool) {
	s := src.Canonical()
	c := crop.Canonical()

	if c.Width() < degenerateExtent || c.Height() < degenerateExtent {
		return FullRegion(), true
	}

	// Trim the crop to the destination aspect in source pixel space.
	if srcRef.X > 0 && srcRef.Y > 0 && dst.X > 0 && dst.Y > 0 {
		cropW := c.Width() * float64(srcRef.X)
		cropH := c.Height() * float64(srcRef.Y)
		if cropW > 0 && cropH > 0 {
			cropAspect := cropW / cropH
			dstAspect := float64(dst.X) / float64(dst.Y)
			if cropAspect > dstAspect {
				shownW := cropH * dstAspect
				trim := (cropW - shownW) / 2 / float64(srcRef.X)
				c.Left += trim
				c.Right -= trim
			} else if cropAspect < dstAspect {
				shownH := cropW / dstAspect
				trim := (cropH - shownH) / 2 / float64(srcRef.Y)
				c.Top += trim
				c.Bottom -= trim
			}
		}
	}

	if c.Width() < degenerateExtent || c.Height() < degenerateExtent {
		return FullRegion(), true
	}

	// No overlap at all: the mapped region would be a fabrication.
	if s.Right <= c.Left || s.Left >= c.Right || s.Bottom <= c.Top || s.Top >= c.Bottom {
		return NormalizedRegion{}, false
	}

	mapped := NormalizedRegion{
		Left:   clamp01((s.Left - c.Left) / c.Width()),
		Top:    clamp01((s.Top - c.Top) / c.Height()),
		Right:  clamp01((s.Right - c.Left) / c.Width()),
		Bottom: clamp01((s.Bottom - c.Top) / c.Height()),
	}
	return mapped.Canonical(), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
