package control

// Step moves current one unit toward target.
// It returns current unchanged when they are equal, in which case the caller
// should not touch the sink.
func Step(current, target int) int {
	switch {
	case current < target:
		return current + 1
	case current > target:
		return current - 1
	default:
		return current
	}
}
