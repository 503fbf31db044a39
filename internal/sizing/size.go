// Package sizing provides overflow-safe size arithmetic and the narrowing
// conversions needed to fit sizes into 16- and 32-bit ZIP fields.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// ToUint32 narrows a uint64 to a 32-bit ZIP field.
// Values of math.MaxUint32 are rejected as well because they are the ZIP64
// sentinel.
func ToUint32(v uint64, overflowErr error) (uint32, error) {
	if v >= math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(v), nil
}

// ToUint16 narrows an int to a 16-bit ZIP field, rejecting the ZIP64 sentinel.
func ToUint16(v int, overflowErr error) (uint16, error) {
	if v < 0 || v >= math.MaxUint16 {
		return 0, overflowErr
	}
	return uint16(v), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
