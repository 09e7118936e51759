package capture

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/cv"
)

// Request asks the chain for one validated frame of a rule's region.
type Request struct {
	Character string
	Handle    WindowHandle
	Region    cv.NormalizedRegion
	// Preview is the character's visible secondary surface, when the
	// target map supplied one. Nil disables the preview strategy.
	Preview *PreviewSurface
}

// Result is a successful capture: the raster cropped to the rule's
// region view, plus the pipeline key naming the strategy and sub-method
// that produced it. Baselines captured under different keys are not
// pixel-comparable.
type Result struct {
	Image       *image.RGBA
	PipelineKey string
}

// Chain tries capture strategies in a fixed order, cheapest and most
// isolated first, validating each candidate before accepting it:
// a per-character mirror surface cropped to the region, then the
// character's visible preview surface, then the source window's own
// client area.
type Chain struct {
	provider          Provider
	mirrors           *MirrorPool
	rejectLowContrast bool
	log               zerolog.Logger
}

// NewChain builds a chain over the platform provider. The mirror pool
// may be nil, which disables the mirror strategy.
func NewChain(provider Provider, mirrors *MirrorPool, rejectLowContrast bool, log zerolog.Logger) *Chain {
	return &Chain{
		provider:          provider,
		mirrors:           mirrors,
		rejectLowContrast: rejectLowContrast,
		log:               log,
	}
}

// Acquire produces a validated region frame for the request, or a typed
// failure once every strategy is exhausted.
func (c *Chain) Acquire(req Request) (*Result, error) {
	if c.provider == nil || !c.provider.Usable(req.Handle) {
		return nil, ErrTargetUnavailable
	}

	clientSize, err := c.provider.ClientSize(req.Handle)
	if err != nil || clientSize.X <= 0 || clientSize.Y <= 0 {
		return nil, ErrTargetUnavailable
	}

	sourcePx := cv.RegionToPixels(req.Region, clientSize)
	if sourcePx.Dx() < MinRegionPixels || sourcePx.Dy() < MinRegionPixels {
		// No strategy can stretch a region this small into signal.
		return nil, ErrRegionTooSmall
	}

	if res := c.tryMirror(req, sourcePx); res != nil {
		return res, nil
	}
	if res := c.tryPreview(req, clientSize); res != nil {
		return res, nil
	}
	return c.tryDirect(req)
}

// tryMirror captures through the character's off-screen mirror surface,
// already cropped to the source region by the compositor.
func (c *Chain) tryMirror(req Request, sourcePx image.Rectangle) *Result {
	if c.mirrors == nil {
		return nil
	}

	mirror, err := c.mirrors.Acquire(req.Character, req.Handle)
	if err != nil {
		c.log.Debug().Err(err).Str("character", req.Character).Msg("mirror acquire failed")
		return nil
	}

	dstSize := MirrorCaptureSize(sourcePx)
	if err := mirror.Update(sourcePx, dstSize); err != nil {
		c.log.Debug().Err(err).Str("character", req.Character).Msg("mirror update failed")
		return nil
	}

	img, method, err := c.provider.Capture(mirror.SurfaceHandle(), Options{
		AllowClientDC: true,
	})
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Msg("mirror grab failed")
		return nil
	}
	if img.Bounds().Dx() < MinRegionPixels || img.Bounds().Dy() < MinRegionPixels {
		c.log.Debug().Str("method", method).Msg("mirror frame too small")
		return nil
	}

	return &Result{
		Image:       img,
		PipelineKey: fmt.Sprintf("mirror_crop:%s:%dx%d", method, img.Bounds().Dx(), img.Bounds().Dy()),
	}
}

// tryPreview captures the character's visible preview surface and crops
// out the rule's region mapped across the preview's letterboxed view.
func (c *Chain) tryPreview(req Request, clientSize image.Point) *Result {
	if req.Preview == nil || !c.provider.Usable(req.Preview.Handle) {
		return nil
	}

	img, method, err := c.provider.Capture(req.Preview.Handle, Options{
		AllowScreenGrab: true,
	})
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Msg("preview grab failed")
		return nil
	}

	previewSize := image.Point{X: img.Bounds().Dx(), Y: img.Bounds().Dy()}
	mapped, ok := cv.MapRegionAcrossCrop(req.Region, req.Preview.Crop, clientSize, previewSize)
	if !ok {
		c.log.Debug().Str("character", req.Character).Msg("region has no overlap with preview crop")
		return nil
	}

	mappedPx := cv.RegionToPixels(mapped, previewSize)
	if mappedPx.Dx() < MinRegionPixels || mappedPx.Dy() < MinRegionPixels {
		c.log.Debug().Str("character", req.Character).Msg("mapped preview region too small")
		return nil
	}

	return &Result{
		Image:       cropRGBA(img, mappedPx),
		PipelineKey: fmt.Sprintf("preview_crop:0x%x", uintptr(req.Preview.Handle)),
	}
}

// tryDirect captures the source window's own client area and crops the
// region out of the full frame.
func (c *Chain) tryDirect(req Request) (*Result, error) {
	img, method, err := c.provider.Capture(req.Handle, Options{
		AllowScreenGrab:   true,
		AllowPrintWindow:  true,
		AllowClientDC:     true,
		RejectLowContrast: c.rejectLowContrast,
	})
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("character", req.Character).Msg("direct grab failed")
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	capturedSize := image.Point{X: img.Bounds().Dx(), Y: img.Bounds().Dy()}
	regionPx := cv.RegionToPixels(req.Region, capturedSize)
	if regionPx.Dx() < MinRegionPixels || regionPx.Dy() < MinRegionPixels {
		return nil, ErrRegionTooSmall
	}

	return &Result{
		Image:       cropRGBA(img, regionPx),
		PipelineKey: "direct:" + method,
	}, nil
}

// cropRGBA copies a sub-rectangle into a fresh zero-origin image.
func cropRGBA(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	if rect.Empty() {
		return out
	}

	rowBytes := rect.Dx() * 4
	for y := 0; y < rect.Dy(); y++ {
		srcOff := (rect.Min.Y+y-img.Rect.Min.Y)*img.Stride + (rect.Min.X-img.Rect.Min.X)*4
		copy(out.Pix[y*out.Stride:y*out.Stride+rowBytes], img.Pix[srcOff:srcOff+rowBytes])
	}
	return out
}
