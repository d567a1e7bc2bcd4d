package domain

import "fmt"

// TotalQuantity returns the stock of size summed over all locations.
//
// The record may be in any stored shape, only the queried entry is read.
// A missing size holds nothing.
func TotalQuantity(raw RawSizes, size string) int {
	v, ok := raw[size]
	if !ok {
		return 0
	}
	return normalizeEntry(v).Total()
}

// LocationQuantity returns the stock of size at l.
func LocationQuantity(raw RawSizes, size string, l Location) (int, error) {
	if !l.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLocation, l)
	}
	v, ok := raw[size]
	if !ok {
		return 0, nil
	}
	return normalizeEntry(v).At(l), nil
}
