package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b) for positive integers; b == 0 yields 0.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// RoundDiv returns floor((a + b/2)/b).
func RoundDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

// MulDiv returns a*b/c in 64-bit arithmetic, truncating. c == 0 yields 0.
func MulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	return a * b / c
}

// EvenUp returns v rounded up to the next even value.
func EvenUp[T constraints.Integer](v T) T {
	if v%2 != 0 {
		return v + 1
	}
	return v
}

// OddDown returns v when odd, else v-1.
func OddDown[T constraints.Integer](v T) T {
	if v%2 == 0 {
		return v - 1
	}
	return v
}
