// Package util contains small generic helpers shared across go-slmp packages.
package util

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// DivCeil returns a divided by b rounded up. b must be positive.
func DivCeil[T int | uint16 | uint32](a, b T) T {
	return (a + b - 1) / b
}

// SumBy sums the values returned by fn over items.
func SumBy[T any](items []T, fn func(T) int) int {
	total := 0
	for _, item := range items {
		total += fn(item)
	}

	return total
}
