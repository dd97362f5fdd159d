package control

import "math"

// MapTarget maps a loudness score to a target volume in [0, maxSystem].
//
// Below LowThreshold the target is MinVolume, above HighThreshold it is
// MaxVolume, and in between it is linearly interpolated and floored. The result
// is always clamped to maxSystem. Params must be valid; a zero-width threshold
// band is rejected by Validate before a Loop can be built.
func MapTarget(score float64, p Params, maxSystem int) int {
	maxSystem = max(maxSystem, 0)
	if math.IsNaN(score) {
		score = 0
	}

	var target int
	switch {
	case score < p.LowThreshold:
		target = p.MinVolume
	case score > p.HighThreshold:
		target = p.MaxVolume
	default:
		ratio := (score - p.LowThreshold) / (p.HighThreshold - p.LowThreshold)
		target = int(math.Floor(float64(p.MinVolume) + float64(p.MaxVolume-p.MinVolume)*ratio))
	}

	return min(max(target, 0), maxSystem)
}
