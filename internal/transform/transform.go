// Package transform implements the host-side data transforms applied to raw
// brick bytes before texture upload: endianness conversion, bit-depth
// downsampling via range quantization, texture format selection, and
// power-of-two padding with edge replication.
//
// All transforms operate on byte slices in place where possible; padding is
// the only transform that allocates.
package transform

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/internal/mathutil"
	"github.com/hupe1980/voxcache/volume"
)

// ErrUnsupportedBitWidth indicates a sample bit width outside the supported
// set for the attempted operation.
type ErrUnsupportedBitWidth struct {
	Width uint32
}

func (e *ErrUnsupportedBitWidth) Error() string {
	return fmt.Sprintf("unsupported bit width: %d", e.Width)
}

// ErrUnsupportedComponentCount indicates a per-voxel component count with no
// matching texture format.
type ErrUnsupportedComponentCount struct {
	Count uint32
}

func (e *ErrUnsupportedComponentCount) Error() string {
	return fmt.Sprintf("unsupported component count: %d", e.Count)
}

// SwapBytes16 byte-swaps every 16-bit sample in data in place. A trailing odd
// byte, if any, is left untouched.
func SwapBytes16(data []byte) {
	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		data[i], data[i+1] = data[i+1], data[i]
	}
}

// Downsample8 quantizes 16-bit samples to 8 bits using the dataset's global
// value range: byte = round(255 * (v - min) / (max - min)), clamped to
// [0, 255]. The result is written over the front of data and the shortened
// slice returned. 8-bit input is returned unchanged; any other width fails.
//
// 16-bit samples are read in native byte order; callers must have applied
// SwapBytes16 first for foreign-endian sources.
func Downsample8(data []byte, samples int, bitWidth uint32, min, max float64) ([]byte, error) {
	switch bitWidth {
	case 8:
		return data[:samples], nil
	case 16:
		scale := 0.0
		if max > min {
			scale = 255.0 / (max - min)
		}
		for i := 0; i < samples; i++ {
			v := float64(binary.NativeEndian.Uint16(data[2*i:]))
			q := math.Round((v - min) * scale)
			if q < 0 {
				q = 0
			} else if q > 255 {
				q = 255
			}
			data[i] = byte(q)
		}
		return data[:samples], nil
	default:
		return nil, &ErrUnsupportedBitWidth{Width: bitWidth}
	}
}

// SelectFormat maps a component count and bit width onto a texture format
// and sample type. Component counts 1/3/4 select single/triple/quad channel
// formats; widths 8/16/32 select uint8/uint16/float32 storage. 32-bit float
// storage is only supported single-channel.
func SelectFormat(components, bitWidth uint32) (gpu.Format, gpu.SampleType, error) {
	var format gpu.Format
	switch components {
	case 1:
		format = gpu.FormatR
	case 3:
		format = gpu.FormatRGB
	case 4:
		format = gpu.FormatRGBA
	default:
		return 0, 0, &ErrUnsupportedComponentCount{Count: components}
	}

	var typ gpu.SampleType
	switch bitWidth {
	case 8:
		typ = gpu.SampleUint8
	case 16:
		typ = gpu.SampleUint16
	case 32:
		if components != 1 {
			return 0, 0, &ErrUnsupportedComponentCount{Count: components}
		}
		typ = gpu.SampleFloat32
	default:
		return 0, 0, &ErrUnsupportedBitWidth{Width: bitWidth}
	}

	return format, typ, nil
}

// NeedsPadding reports whether any dimension is not a power of two.
func NeedsPadding(dims volume.Dims) bool {
	return !mathutil.IsPow2(dims.X) || !mathutil.IsPow2(dims.Y) || !mathutil.IsPow2(dims.Z)
}

// PadPow2 pads data to the next power of two in each dimension. elemSize is
// the byte size of one voxel (components times sample width). When
// replicateBorder is set, the last valid element, row, and slice are
// replicated into the padded region along X, Y, and Z respectively,
// emulating clamp-to-edge sampling through data duplication; otherwise the
// padding is left zeroed.
//
// If all dimensions are already powers of two, data is returned unchanged.
func PadPow2(data []byte, dims volume.Dims, elemSize int, replicateBorder bool) ([]byte, volume.Dims) {
	padded := volume.Dims{
		X: mathutil.NextPow2(dims.X),
		Y: mathutil.NextPow2(dims.Y),
		Z: mathutil.NextPow2(dims.Z),
	}
	if padded == dims {
		return data, dims
	}

	srcRow := int(dims.X) * elemSize
	dstRow := int(padded.X) * elemSize
	dstSlice := dstRow * int(padded.Y)

	out := make([]byte, dstSlice*int(padded.Z))

	for z := 0; z < int(dims.Z); z++ {
		for y := 0; y < int(dims.Y); y++ {
			src := data[(z*int(dims.Y)+y)*srcRow:]
			dst := out[z*dstSlice+y*dstRow:]
			copy(dst[:srcRow], src[:srcRow])

			// Replicate the last element across the X padding.
			if replicateBorder && dstRow > srcRow {
				last := dst[srcRow-elemSize : srcRow]
				for x := srcRow; x < dstRow; x += elemSize {
					copy(dst[x:x+elemSize], last)
				}
			}
		}

		// Replicate the last row across the Y padding.
		if replicateBorder && padded.Y > dims.Y {
			last := out[z*dstSlice+(int(dims.Y)-1)*dstRow : z*dstSlice+int(dims.Y)*dstRow]
			for y := int(dims.Y); y < int(padded.Y); y++ {
				copy(out[z*dstSlice+y*dstRow:z*dstSlice+(y+1)*dstRow], last)
			}
		}
	}

	// Replicate the last slice across the Z padding.
	if replicateBorder && padded.Z > dims.Z {
		last := out[(int(dims.Z)-1)*dstSlice : int(dims.Z)*dstSlice]
		for z := int(dims.Z); z < int(padded.Z); z++ {
			copy(out[z*dstSlice:(z+1)*dstSlice], last)
		}
	}

	return out, padded
}
