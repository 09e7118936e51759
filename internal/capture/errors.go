package capture

import "fmt"

// Error types
var (
	// ErrTargetUnavailable - the window handle is missing, destroyed,
	// or minimized.
	ErrTargetUnavailable = fmt.Errorf("target window unavailable")
	// ErrCaptureFailed - every strategy in the chain was exhausted.
	ErrCaptureFailed = fmt.Errorf("all capture strategies failed")
	// ErrRegionTooSmall - the mapped region is below the minimum
	// usable pixel size.
	ErrRegionTooSmall = fmt.Errorf("mapped region below minimum size")
	// ErrFrameIncompatible - frame dimensions changed between ticks,
	// forcing a baseline re-init rather than a comparison.
	ErrFrameIncompatible = fmt.Errorf("frame dimensions incompatible")
)
