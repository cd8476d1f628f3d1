// Package conv provides safe integer narrowing for the on-disk certificate
// and seed-database formats.
//
// Every multi-byte field in a dvf/umf stream or a seed-database record has a
// fixed width (spec.md §6); these helpers bounds-check before narrowing so a
// runaway tape offset or step count fails loudly instead of silently
// truncating into a corrupt certificate.
package conv

import "math"

// IntToUint32 safely converts an int to uint32.
// Panics if n < 0 or n > math.MaxUint32.
func IntToUint32(n int) uint32 {
	// Use uint for comparison to avoid overflow on 32-bit platforms
	// where int cannot represent math.MaxUint32.
	if n < 0 || uint(n) > math.MaxUint32 {
		panic("integer overflow: int value out of uint32 range")
	}
	return uint32(n)
}

// IntToUint16 safely converts an int to uint16.
// Panics if n < 0 or n > math.MaxUint16.
func IntToUint16(n int) uint16 {
	if n < 0 || n > math.MaxUint16 {
		panic("integer overflow: int value out of uint16 range")
	}
	return uint16(n)
}

// IntToUint8 safely converts an int to uint8.
// Panics if n < 0 or n > math.MaxUint8.
func IntToUint8(n int) uint8 {
	if n < 0 || n > math.MaxUint8 {
		panic("integer overflow: int value out of uint8 range")
	}
	return uint8(n)
}

// IntToInt16 safely converts an int to int16.
// Used for signed tape-head offsets (TapeDescriptor.TapeHeadOffset,
// Segment.Head in the Bouncer certificate).
// Panics if n is outside the int16 range.
func IntToInt16(n int) int16 {
	if n < math.MinInt16 || n > math.MaxInt16 {
		panic("integer overflow: int value out of int16 range")
	}
	return int16(n)
}

// IntToInt32 safely converts an int to int32.
// Used for signed Leftmost/Rightmost tape bounds.
// Panics if n is outside the int32 range.
func IntToInt32(n int) int32 {
	if n < math.MinInt32 || n > math.MaxInt32 {
		panic("integer overflow: int value out of int32 range")
	}
	return int32(n)
}

// Uint64ToUint32 safely converts a uint64 to uint32.
// Panics if n > math.MaxUint32.
func Uint64ToUint32(n uint64) uint32 {
	if n > math.MaxUint32 {
		panic("integer overflow: uint64 value out of uint32 range")
	}
	return uint32(n)
}

// Uint64ToUint16 safely converts a uint64 to uint16.
// Panics if n > math.MaxUint16.
func Uint64ToUint16(n uint64) uint16 {
	if n > math.MaxUint16 {
		panic("integer overflow: uint64 value out of uint16 range")
	}
	return uint16(n)
}
