package cv

// pixelDeltaThreshold is the minimum per-pixel grayscale delta that
// counts as "changed". 20 of 255 ignores compression shimmer and
// anti-aliasing noise while still catching real content swaps.
const pixelDeltaThreshold = 20

// ChangedPercent returns the percentage of pixels whose intensity moved
// by at least pixelDeltaThreshold between two frames. Frames of unequal
// dimensions (or missing frames) score 100: maximally changed, which
// pushes the caller down the baseline-reinit path instead of silently
// comparing incompatible rasters.
func ChangedPercent(prev, cur *Frame) float64 {
	if prev.Empty() || cur.Empty() {
		return 100
	}
	if prev.W != cur.W || prev.H != cur.H {
		return 100
	}

	total := len(prev.Pix)
	if total == 0 {
		return 100
	}

	changed := 0
	for i := 0; i < total; i++ {
		d := int(cur.Pix[i]) - int(prev.Pix[i])
		if d < 0 {
			d = -d
		}
		if d >= pixelDeltaThreshold {
			changed++
		}
	}

	return 100 * float64(changed) / float64(total)
}
