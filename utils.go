package chipseq

import (
	"math"
)

type numeric interface {
	uint8 | int | int64 | float64
}

func clampMin[T numeric](v, min T) T {
	if v < min {
		return min
	}
	return v
}

func clampMax[T numeric](v, max T) T {
	if v > max {
		return max
	}
	return v
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// hzToRat converts a tick rate into a reduced rational with 1/1000 Hz resolution.
func hzToRat(hz float64) (num, den int64) {
	num = int64(math.Round(hz * 1000))
	den = 1000
	if num < 1 {
		num = 1
	}
	g := gcd(num, den)
	return num / g, den / g
}
