package volume

import (
	"github.com/rs/xid"
)

// BrickKey identifies a brick within a dataset: a level-of-detail index plus
// a spatial index within that level. Keys are constructed by callers (the
// dataset's brick-addressing scheme); the cache only compares them.
type BrickKey struct {
	LOD   int
	Index uint64
}

// Dims holds the voxel counts of a brick along each axis.
type Dims struct {
	X, Y, Z uint32
}

// VoxelCount returns the total number of voxels.
func (d Dims) VoxelCount() uint64 {
	return uint64(d.X) * uint64(d.Y) * uint64(d.Z)
}

// Dataset is the backing-storage collaborator. Implementations supply brick
// geometry, sample metadata, and raw brick bytes. ReadBrick is synchronous;
// the cache treats it as an opaque, possibly slow call.
type Dataset interface {
	// Path returns the source path the dataset was opened from. The cache
	// keys dataset identity on this string.
	Path() string

	// BrickVoxelCounts returns the voxel dimensions of the given brick.
	BrickVoxelCounts(key BrickKey) Dims

	// BitWidth returns the per-sample bit width (8, 16, or 32).
	BitWidth() uint32

	// ComponentCount returns the number of components per voxel.
	ComponentCount() uint32

	// Range returns the global value range of the dataset, used for
	// bit-depth downsampling.
	Range() (min, max float64)

	// SameEndianness reports whether the dataset's native byte order
	// matches the runtime's.
	SameEndianness() bool

	// ReadBrick fills dst with the raw bytes of the given brick and
	// returns the number of bytes written. dst must be at least
	// BrickByteSize(d, key) long.
	ReadBrick(key BrickKey, dst []byte) (int, error)

	// Close releases the dataset's backing resources.
	Close() error
}

// BrickByteSize returns the size in bytes of the raw data of a brick.
func BrickByteSize(d Dataset, key BrickKey) uint64 {
	return d.BrickVoxelCounts(key).VoxelCount() *
		uint64(d.BitWidth()/8) * uint64(d.ComponentCount())
}

// RendererID identifies a requester (a renderer) holding borrowed references
// to cached resources. IDs are opaque and comparable.
type RendererID xid.ID

// NewRendererID returns a fresh, globally unique requester identity.
func NewRendererID() RendererID {
	return RendererID(xid.New())
}

func (r RendererID) String() string {
	return xid.ID(r).String()
}
