package testutil

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/volume"
)

// Dataset is an in-memory volume.Dataset for tests. Bricks are stored as raw
// byte slices keyed by BrickKey.
type Dataset struct {
	Name       string
	Dims       volume.Dims
	Width      uint32
	Components uint32
	Min, Max   float64
	BigEndian  bool // reported via SameEndianness
	Bricks     map[volume.BrickKey][]byte

	// FailReads makes every ReadBrick fail, simulating a broken backing
	// store.
	FailReads bool

	// PerBrickDims overrides Dims for individual bricks.
	PerBrickDims map[volume.BrickKey]volume.Dims

	Closed bool
}

// NewDataset creates an 8-bit single-component dataset with the given
// uniform brick dimensions.
func NewDataset(name string, dims volume.Dims) *Dataset {
	return &Dataset{
		Name:       name,
		Dims:       dims,
		Width:      8,
		Components: 1,
		Min:        0,
		Max:        255,
		Bricks:     make(map[volume.BrickKey][]byte),
	}
}

// AddBrick stores brick data under the given key and returns the dataset for
// chaining.
func (d *Dataset) AddBrick(key volume.BrickKey, data []byte) *Dataset {
	d.Bricks[key] = data
	return d
}

func (d *Dataset) Path() string { return d.Name }

func (d *Dataset) BrickVoxelCounts(key volume.BrickKey) volume.Dims {
	if dims, ok := d.PerBrickDims[key]; ok {
		return dims
	}
	return d.Dims
}

func (d *Dataset) BitWidth() uint32 { return d.Width }

func (d *Dataset) ComponentCount() uint32 { return d.Components }

func (d *Dataset) Range() (float64, float64) { return d.Min, d.Max }

func (d *Dataset) SameEndianness() bool { return !d.BigEndian }

func (d *Dataset) ReadBrick(key volume.BrickKey, dst []byte) (int, error) {
	if d.FailReads {
		return 0, errors.New("simulated read failure")
	}
	data, ok := d.Bricks[key]
	if !ok {
		return 0, fmt.Errorf("no such brick: lod %d index %d", key.LOD, key.Index)
	}
	if len(dst) < len(data) {
		return 0, fmt.Errorf("buffer too small: %d < %d", len(dst), len(data))
	}
	return copy(dst, data), nil
}

func (d *Dataset) Close() error {
	d.Closed = true
	return nil
}

// Texture is the handle type produced by Driver.
type Texture struct {
	ID      int64
	Desc    gpu.VolumeDesc
	Data    []byte // copy of the most recent upload
	Uploads int    // number of UploadVolume calls after creation
	Freed   bool

	size int64
}

func (t *Texture) SizeBytes() int64 { return t.size }

// Driver is a fake gpu.Driver recording every allocation, upload, and free.
type Driver struct {
	nextID atomic.Int64

	Created []*Texture
	Freed   []*Texture

	// FailCreate and FailUpload make the corresponding calls fail.
	FailCreate bool
	FailUpload bool
}

// NewDriver creates a fake driver.
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) CreateVolume(desc gpu.VolumeDesc, data []byte) (gpu.Texture, error) {
	if d.FailCreate {
		return nil, errors.New("simulated create failure")
	}
	if int64(len(data)) != desc.ByteSize() {
		return nil, fmt.Errorf("data size %d does not match descriptor size %d", len(data), desc.ByteSize())
	}

	t := &Texture{
		ID:   d.nextID.Add(1),
		Desc: desc,
		Data: append([]byte(nil), data...),
		size: desc.ByteSize(),
	}
	d.Created = append(d.Created, t)

	return t, nil
}

func (d *Driver) UploadVolume(tex gpu.Texture, data []byte) error {
	if d.FailUpload {
		return errors.New("simulated upload failure")
	}

	t := tex.(*Texture)
	if t.Freed {
		return errors.New("upload into freed texture")
	}
	if int64(len(data)) != t.Desc.ByteSize() {
		return fmt.Errorf("data size %d does not match texture size %d", len(data), t.Desc.ByteSize())
	}

	t.Data = append(t.Data[:0], data...)
	t.Uploads++

	return nil
}

func (d *Driver) CreateTexture2D(width, height uint32, format gpu.Format, typ gpu.SampleType, data []byte) (gpu.Texture, error) {
	if d.FailCreate {
		return nil, errors.New("simulated create failure")
	}

	t := &Texture{
		ID:   d.nextID.Add(1),
		Data: append([]byte(nil), data...),
		size: int64(width) * int64(height) * int64(format.Channels()) * int64(typ.Size()),
	}
	d.Created = append(d.Created, t)

	return t, nil
}

func (d *Driver) CreateTexture1D(length uint32, format gpu.Format, typ gpu.SampleType, data []byte) (gpu.Texture, error) {
	if d.FailCreate {
		return nil, errors.New("simulated create failure")
	}

	t := &Texture{
		ID:   d.nextID.Add(1),
		Data: append([]byte(nil), data...),
		size: int64(length) * int64(format.Channels()) * int64(typ.Size()),
	}
	d.Created = append(d.Created, t)

	return t, nil
}

func (d *Driver) Free(tex gpu.Texture) {
	if tex == nil {
		return
	}
	t := tex.(*Texture)
	t.Freed = true
	d.Freed = append(d.Freed, t)
}

// Live returns the number of created textures not yet freed.
func (d *Driver) Live() int {
	return len(d.Created) - len(d.Freed)
}

// RNG is a deterministic random source for brick data.
type RNG struct {
	rand *rand.Rand
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed))}
}

// FillBytes fills buf with pseudo-random bytes.
func (r *RNG) FillBytes(buf []byte) {
	r.rand.Read(buf)
}

// Brick returns a pseudo-random brick payload of the given byte size.
func (r *RNG) Brick(size int) []byte {
	buf := make([]byte, size)
	r.FillBytes(buf)
	return buf
}
