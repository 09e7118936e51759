//go:build !windows
// +build !windows

package capture

import (
	"image"

	"github.com/rs/zerolog"
)

// StubProvider is the non-Windows placeholder. Window-handle capture
// has no portable equivalent, so every call reports the target as
// unavailable; the engine and its tests run against fakes instead.
type StubProvider struct{}

// NewPlatformProvider returns the stub provider. No mirror support.
func NewPlatformProvider(log zerolog.Logger) (Provider, MirrorProvider) {
	log.Warn().Msg("window capture is only implemented on windows; running with a stub provider")
	return &StubProvider{}, nil
}

func (p *StubProvider) Usable(h WindowHandle) bool {
	return false
}

func (p *StubProvider) ClientSize(h WindowHandle) (image.Point, error) {
	return image.Point{}, ErrTargetUnavailable
}

func (p *StubProvider) Capture(h WindowHandle, opts Options) (*image.RGBA, string, error) {
	return nil, "stub", ErrTargetUnavailable
}
