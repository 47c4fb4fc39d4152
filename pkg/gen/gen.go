package gen

// Tiny generic helpers

func Clamp[T int | int64 | float32 | float64](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Delete the element at index i, without preserving the order of the slice
func DeleteFromSliceUnordered[T any](slice []T, i int) []T {
	slice[i] = slice[len(slice)-1]
	return slice[:len(slice)-1]
}

// Delete the element at index i, preserving the order of the slice
func DeleteFromSliceOrdered[T any](slice []T, i int) []T {
	return append(slice[:i], slice[i+1:]...)
}
