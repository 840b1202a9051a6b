package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPow2(t *testing.T) {
	for _, v := range []uint32{1, 2, 4, 8, 64, 1 << 20, 1 << 31} {
		assert.True(t, IsPow2(v), "IsPow2(%d)", v)
	}
	for _, v := range []uint32{0, 3, 5, 6, 7, 9, 100, 1<<20 + 1} {
		assert.False(t, IsPow2(v), "IsPow2(%d)", v)
	}
}

func TestNextPow2(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{5, 8},
		{8, 8},
		{9, 16},
		{100, 128},
		{1<<20 + 1, 1 << 21},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPow2(tt.in), "NextPow2(%d)", tt.in)
	}
}
