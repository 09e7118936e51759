package capture

import (
	"image"

	"github.com/lookout-bot/lookout/internal/cv"
)

// WindowHandle identifies a native window surface (HWND on Windows).
type WindowHandle uintptr

// MinRegionPixels is the smallest usable mapped region edge. Anything
// narrower carries too little signal to diff.
const MinRegionPixels = 8

const (
	mirrorLongestEdge  = 192
	mirrorMinShortEdge = 48
)

// Options selects which grab sub-methods a capture may use and which
// validations apply to the result.
type Options struct {
	AllowScreenGrab   bool
	AllowPrintWindow  bool
	AllowClientDC     bool
	AllowSolidBlack   bool
	RejectLowContrast bool
}

// Provider is the platform boundary for pixel access. Capture returns
// the raster plus the name of the sub-method that produced it; rejected
// grabs report the method with a rejection suffix in the error path.
type Provider interface {
	// Usable reports whether the handle refers to a live, restored
	// window that can be captured.
	Usable(h WindowHandle) bool
	// ClientSize returns the window's client area size in pixels.
	ClientSize(h WindowHandle) (image.Point, error)
	// Capture grabs the window's client area with the permitted
	// sub-methods, validating per the options.
	Capture(h WindowHandle, opts Options) (*image.RGBA, string, error)
}

// Mirror is one registered thumbnail-style mirror of a source window
// composited onto a hidden capturable surface.
type Mirror interface {
	// Update points the mirror at a source sub-rectangle and resizes
	// the destination surface.
	Update(src image.Rectangle, dstSize image.Point) error
	// SurfaceHandle returns the capturable host surface.
	SurfaceHandle() WindowHandle
	// Release unregisters the mirror and destroys its host surface.
	Release()
}

// MirrorProvider registers mirrors of source windows.
type MirrorProvider interface {
	RegisterMirror(source WindowHandle) (Mirror, error)
}

// PreviewSurface describes an externally supplied, directly visible
// widget that already shows a cropped view of a source window.
type PreviewSurface struct {
	Handle WindowHandle
	// Crop is the normalized portion of the source the preview shows.
	Crop cv.NormalizedRegion
}

// MirrorCaptureSize returns the aspect-fit destination size for
// mirroring a source region: longest edge pinned to 192 so the mirror
// stays cheap to composite and grab, short edge floored at 48 so
// narrow strips keep enough rows/columns to diff.
func MirrorCaptureSize(region image.Rectangle) image.Point {
	w, h := region.Dx(), region.Dy()
	if w <= 0 || h <= 0 {
		return image.Point{X: mirrorLongestEdge, Y: mirrorLongestEdge}
	}

	if w >= h {
		scaled := mirrorLongestEdge * h / w
		if scaled < mirrorMinShortEdge {
			scaled = mirrorMinShortEdge
		}
		return image.Point{X: mirrorLongestEdge, Y: scaled}
	}

	scaled := mirrorLongestEdge * w / h
	if scaled < mirrorMinShortEdge {
		scaled = mirrorMinShortEdge
	}
	return image.Point{X: scaled, Y: mirrorLongestEdge}
}
