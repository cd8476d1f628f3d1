// Package tapescan compares certified tape windows byte-for-byte and
// reports exactly where two windows first diverge, instead of a bare
// match/no-match boolean.
//
// The technique is the teacher's SWAR (SIMD Within A Register) dispatch
// pattern from simd/memchr_generic_impl.go, retargeted from "find a needle
// byte in one buffer" to "find the first differing byte between two
// buffers": read both buffers 8 bytes at a time as uint64, XOR them, and
// only fall back to a byte-by-byte scan inside the rare 8-byte chunk that
// doesn't compare equal as a whole. golang.org/x/sys/cpu is consulted the
// same way simd/memchr_amd64.go consults it, to widen the fast-path chunk
// on CPUs with wider vector registers; no assembly is ported (see
// DESIGN.md), only the feature-gated-dispatch idea.
package tapescan

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// wideChunk is the fast-path stride in bytes: two machine words on CPUs
// whose AVX2 support implies reasonably wide load/compare throughput, one
// word otherwise.
var wideChunk = func() int {
	if cpu.X86.HasAVX2 {
		return 16
	}
	return 8
}()

// FirstMismatch compares a and b and returns the offset of the first byte
// at which they differ. found is false if a and b are byte-identical over
// their common length; if their lengths differ, the offset of the shorter
// length is reported as a mismatch (a length difference is itself a
// mismatch, the way a tape-window comparison must treat it).
func FirstMismatch(a, b []byte) (offset int, found bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	i := 0
	for i+wideChunk <= n {
		if off, ok := scanWord(a[i:i+wideChunk], b[i:i+wideChunk]); ok {
			return i + off, true
		}
		i += wideChunk
	}
	for i+8 <= n {
		if off, ok := scanWord(a[i:i+8], b[i:i+8]); ok {
			return i + off, true
		}
		i += 8
	}
	for ; i < n; i++ {
		if a[i] != b[i] {
			return i, true
		}
	}
	if len(a) != len(b) {
		return n, true
	}
	return 0, false
}

// scanWord compares chunk-by-chunk in 8-byte words within a window already
// known to be a multiple of 8 bytes, returning the offset of the first
// differing byte.
func scanWord(a, b []byte) (offset int, found bool) {
	for i := 0; i+8 <= len(a); i += 8 {
		va := binary.LittleEndian.Uint64(a[i:])
		vb := binary.LittleEndian.Uint64(b[i:])
		diff := va ^ vb
		if diff == 0 {
			continue
		}
		for j := 0; j < 8; j++ {
			if byte(diff) != 0 {
				return i + j, true
			}
			diff >>= 8
		}
	}
	return 0, false
}

// Equal reports whether a and b are byte-identical.
func Equal(a, b []byte) bool {
	_, mismatch := FirstMismatch(a, b)
	return !mismatch
}
