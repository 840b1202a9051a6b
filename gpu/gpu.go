package gpu

import "fmt"

// Format is the channel layout of a texture.
type Format uint8

const (
	FormatR    Format = iota + 1 // single channel
	FormatRGB                    // three channels
	FormatRGBA                   // four channels
)

// Channels returns the number of components per texel.
func (f Format) Channels() int {
	switch f {
	case FormatR:
		return 1
	case FormatRGB:
		return 3
	case FormatRGBA:
		return 4
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatRGB:
		return "RGB"
	case FormatRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// SampleType is the storage type of a texture channel.
type SampleType uint8

const (
	SampleUint8 SampleType = iota + 1
	SampleUint16
	SampleFloat32
)

// Size returns the storage size of one sample in bytes.
func (t SampleType) Size() int {
	switch t {
	case SampleUint8:
		return 1
	case SampleUint16:
		return 2
	case SampleFloat32:
		return 4
	default:
		return 0
	}
}

func (t SampleType) String() string {
	switch t {
	case SampleUint8:
		return "uint8"
	case SampleUint16:
		return "uint16"
	case SampleFloat32:
		return "float32"
	default:
		return fmt.Sprintf("SampleType(%d)", uint8(t))
	}
}

// VolumeDesc describes a volume texture to be created by a Driver.
type VolumeDesc struct {
	Width, Height, Depth uint32
	Format               Format
	Type                 SampleType

	// Stack2D requests emulation of the 3D texture as a stack of 2D
	// slices, for hardware without 3D texture support.
	Stack2D bool

	// ClampToEdge selects edge clamping as the sampling mode at the
	// texture border. When false, the border is expected to have been
	// emulated in the data itself (see the padding transform).
	ClampToEdge bool
}

// BytesPerVoxel returns the storage size of one voxel.
func (d VolumeDesc) BytesPerVoxel() int {
	return d.Format.Channels() * d.Type.Size()
}

// ByteSize returns the total storage size of the described texture.
func (d VolumeDesc) ByteSize() int64 {
	return int64(d.Width) * int64(d.Height) * int64(d.Depth) *
		int64(d.BytesPerVoxel())
}

// Texture is an opaque handle to a GPU texture object. Handles are owned by
// the cache; renderers borrow them and must not free them.
type Texture interface {
	// SizeBytes returns the GPU-side storage size of the texture.
	SizeBytes() int64
}

// Driver creates and destroys texture objects on the GPU.
type Driver interface {
	// CreateVolume allocates a volume texture and uploads data into it.
	// len(data) must equal desc.ByteSize().
	CreateVolume(desc VolumeDesc, data []byte) (Texture, error)

	// UploadVolume replaces the contents of an existing volume texture
	// previously returned by CreateVolume. The data must match the
	// texture's original descriptor size exactly; no reallocation occurs.
	UploadVolume(tex Texture, data []byte) error

	// CreateTexture2D allocates a 2D texture and uploads data into it.
	CreateTexture2D(width, height uint32, format Format, typ SampleType, data []byte) (Texture, error)

	// CreateTexture1D allocates a 1D texture and uploads data into it.
	CreateTexture1D(length uint32, format Format, typ SampleType, data []byte) (Texture, error)

	// Free releases a texture object. Freeing a nil texture is a no-op.
	Free(tex Texture)
}
