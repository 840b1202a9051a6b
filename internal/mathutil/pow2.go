// Package mathutil provides small integer helpers shared by the transform
// pipeline.
package mathutil

import "math/bits"

// IsPow2 reports whether v is a power of two. Zero is not a power of two.
func IsPow2(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// NextPow2 returns the smallest power of two >= v. NextPow2(0) is 1.
func NextPow2(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len32(v-1)
}
