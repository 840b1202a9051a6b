package transform

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/volume"
)

func TestSwapBytes16(t *testing.T) {
	data := []byte{0x12, 0x34, 0xAB, 0xCD}
	SwapBytes16(data)
	assert.Equal(t, []byte{0x34, 0x12, 0xCD, 0xAB}, data)

	// Trailing odd byte stays put.
	odd := []byte{0x01, 0x02, 0x03}
	SwapBytes16(odd)
	assert.Equal(t, []byte{0x02, 0x01, 0x03}, odd)
}

func TestDownsample8(t *testing.T) {
	t.Run("16-bit range endpoints", func(t *testing.T) {
		vals := []uint16{0, 4095, 2048}
		data := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.NativeEndian.PutUint16(data[2*i:], v)
		}

		out, err := Downsample8(data, len(vals), 16, 0, 4095)
		require.NoError(t, err)
		require.Len(t, out, len(vals))
		assert.Equal(t, byte(0), out[0])
		assert.Equal(t, byte(255), out[1])
		assert.Equal(t, byte(128), out[2]) // round(255*2048/4095)
	})

	t.Run("values outside range clamp", func(t *testing.T) {
		data := make([]byte, 4)
		binary.NativeEndian.PutUint16(data[0:], 10)
		binary.NativeEndian.PutUint16(data[2:], 5000)

		out, err := Downsample8(data, 2, 16, 100, 4000)
		require.NoError(t, err)
		assert.Equal(t, byte(0), out[0])
		assert.Equal(t, byte(255), out[1])
	})

	t.Run("degenerate range maps to zero", func(t *testing.T) {
		data := make([]byte, 2)
		binary.NativeEndian.PutUint16(data, 1234)

		out, err := Downsample8(data, 1, 16, 7, 7)
		require.NoError(t, err)
		assert.Equal(t, byte(0), out[0])
	})

	t.Run("8-bit passthrough", func(t *testing.T) {
		data := []byte{1, 2, 3}
		out, err := Downsample8(data, 3, 8, 0, 255)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})

	t.Run("unsupported width", func(t *testing.T) {
		_, err := Downsample8(make([]byte, 8), 2, 32, 0, 1)
		var uw *ErrUnsupportedBitWidth
		require.ErrorAs(t, err, &uw)
		assert.Equal(t, uint32(32), uw.Width)
	})
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		name       string
		comps      uint32
		width      uint32
		wantFormat gpu.Format
		wantType   gpu.SampleType
		wantErr    bool
	}{
		{"r8", 1, 8, gpu.FormatR, gpu.SampleUint8, false},
		{"rgb8", 3, 8, gpu.FormatRGB, gpu.SampleUint8, false},
		{"rgba16", 4, 16, gpu.FormatRGBA, gpu.SampleUint16, false},
		{"r32f", 1, 32, gpu.FormatR, gpu.SampleFloat32, false},
		{"two components", 2, 8, 0, 0, true},
		{"rgb32f unsupported", 3, 32, 0, 0, true},
		{"width 12", 1, 12, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, typ, err := SelectFormat(tt.comps, tt.width)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, tt.wantType, typ)
		})
	}
}

// brickFill produces a brick where every voxel value encodes its coordinate.
func brickFill(dims volume.Dims) []byte {
	data := make([]byte, dims.VoxelCount())
	i := 0
	for z := uint32(0); z < dims.Z; z++ {
		for y := uint32(0); y < dims.Y; y++ {
			for x := uint32(0); x < dims.X; x++ {
				data[i] = byte(1 + x + 10*y + 100*z)
				i++
			}
		}
	}
	return data
}

func TestPadPow2(t *testing.T) {
	dims := volume.Dims{X: 5, Y: 5, Z: 5}
	src := brickFill(dims)

	at := func(out []byte, padded volume.Dims, x, y, z uint32) byte {
		return out[(uint64(z)*uint64(padded.Y)+uint64(y))*uint64(padded.X)+uint64(x)]
	}

	t.Run("borders replicated", func(t *testing.T) {
		out, padded := PadPow2(append([]byte(nil), src...), dims, 1, true)
		require.Equal(t, volume.Dims{X: 8, Y: 8, Z: 8}, padded)
		require.Len(t, out, 8*8*8)

		// Source sub-region is preserved exactly.
		i := 0
		for z := uint32(0); z < 5; z++ {
			for y := uint32(0); y < 5; y++ {
				for x := uint32(0); x < 5; x++ {
					require.Equal(t, src[i], at(out, padded, x, y, z),
						"voxel (%d,%d,%d)", x, y, z)
					i++
				}
			}
		}

		// Padding replicates the edge along each axis.
		for _, p := range []uint32{5, 6, 7} {
			assert.Equal(t, at(out, padded, 4, 2, 3), at(out, padded, p, 2, 3), "x padding")
			assert.Equal(t, at(out, padded, 2, 4, 3), at(out, padded, 2, p, 3), "y padding")
			assert.Equal(t, at(out, padded, 2, 3, 4), at(out, padded, 2, 3, p), "z padding")
		}

		// Corner region replicates the corner voxel.
		assert.Equal(t, at(out, padded, 4, 4, 4), at(out, padded, 7, 7, 7))
	})

	t.Run("borders disabled leaves zeros", func(t *testing.T) {
		out, padded := PadPow2(append([]byte(nil), src...), dims, 1, false)
		require.Equal(t, volume.Dims{X: 8, Y: 8, Z: 8}, padded)

		for _, p := range []uint32{5, 6, 7} {
			assert.Equal(t, byte(0), at(out, padded, p, 0, 0))
			assert.Equal(t, byte(0), at(out, padded, 0, p, 0))
			assert.Equal(t, byte(0), at(out, padded, 0, 0, p))
		}
		// Source still intact.
		assert.Equal(t, src[0], at(out, padded, 0, 0, 0))
		assert.Equal(t, src[len(src)-1], at(out, padded, 4, 4, 4))
	})

	t.Run("already pow2 is a no-op", func(t *testing.T) {
		d := volume.Dims{X: 4, Y: 4, Z: 4}
		data := brickFill(d)
		out, padded := PadPow2(data, d, 1, true)
		assert.Equal(t, d, padded)
		// Same backing slice, not a copy.
		assert.Equal(t, &data[0], &out[0])
	})

	t.Run("multi-byte elements", func(t *testing.T) {
		d := volume.Dims{X: 3, Y: 2, Z: 1}
		elem := 2
		data := []byte{
			1, 1, 2, 2, 3, 3,
			4, 4, 5, 5, 6, 6,
		}
		out, padded := PadPow2(data, d, elem, true)
		require.Equal(t, volume.Dims{X: 4, Y: 2, Z: 1}, padded)
		assert.Equal(t, []byte{
			1, 1, 2, 2, 3, 3, 3, 3,
			4, 4, 5, 5, 6, 6, 6, 6,
		}, out)
	})
}
