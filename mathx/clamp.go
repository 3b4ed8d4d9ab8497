package mathx

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Clamp returns x bounded to [low, high]. low wins when the bounds cross,
// so an empty range clamps everything to its start.
func Clamp[N Number](x, low, high N) N {
	if x < low {
		return low
	}
	if x > high {
		if high < low {
			return low
		}
		return high
	}
	return x
}
