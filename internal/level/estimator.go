package level

import "math"

// Estimate returns the loudness score for a block of samples.
//
// The score is 20*log10 of the mean absolute sample value. It is an
// approximation useful for comparing noise levels on the same device; it is not
// an SPL measurement and is not comparable across microphones.
// The score is never negative: an empty block, or one whose mean absolute
// value is below one unit, scores 0.
func Estimate(samples []int16) float64 {
	mean := MeanAbs(samples)
	if mean <= 1 {
		return 0
	}
	return 20 * math.Log10(mean)
}

// MeanAbs returns the mean absolute amplitude of the block, or 0 if it is empty.
func MeanAbs(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	// Accumulate in float64: abs(-32768) overflows int16
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}
