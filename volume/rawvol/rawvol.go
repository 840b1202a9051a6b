// Package rawvol implements a file-backed volume.Dataset over a single-LOD
// raw brick container: a fixed header, a brick index, and per-brick data
// blocks, optionally compressed (gzip, lz4, or zstd).
//
// Uncompressed containers are memory-mapped; brick reads are plain copies
// out of the mapping. Compressed containers are read block-wise through the
// codec.
//
// The format exists to give the cache a real, testable backing store; it is
// not a general interchange format.
package rawvol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sys/unix"

	"github.com/hupe1980/voxcache/volume"
)

// Codec selects the per-brick block compression.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecGzip
	CodecLZ4
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

var (
	magic = [4]byte{'V', 'O', 'X', 'R'}

	// ErrBadMagic indicates the file is not a rawvol container.
	ErrBadMagic = errors.New("rawvol: bad magic")

	// ErrBadKey indicates a brick key outside the container's grid.
	ErrBadKey = errors.New("rawvol: brick key out of range")
)

const (
	version    = 1
	headerSize = 4 + 2 + 1 + 1 + 2 + 2 + 12 + 12 + 16

	flagBigEndian = 1 << 0
)

// Options describes a container to be created.
type Options struct {
	Codec      Codec
	BitWidth   uint32 // 8, 16, or 32
	Components uint32
	BrickDims  volume.Dims // voxels per brick, uniform across the grid
	Grid       volume.Dims // bricks per axis
	Min, Max   float64
	BigEndian  bool // sample byte order as stored
}

// BrickCount returns the number of bricks in the grid.
func (o Options) BrickCount() uint64 {
	return o.Grid.VoxelCount()
}

// BrickByteSize returns the raw byte size of one brick.
func (o Options) BrickByteSize() uint64 {
	return o.BrickDims.VoxelCount() * uint64(o.BitWidth/8) * uint64(o.Components)
}

// Create writes a container with the given bricks, ordered by linear brick
// index. Every brick must be exactly Options.BrickByteSize() long.
func Create(path string, opts Options, bricks [][]byte) error {
	if uint64(len(bricks)) != opts.BrickCount() {
		return fmt.Errorf("rawvol: got %d bricks, grid needs %d", len(bricks), opts.BrickCount())
	}
	want := opts.BrickByteSize()
	for i, b := range bricks {
		if uint64(len(b)) != want {
			return fmt.Errorf("rawvol: brick %d is %d bytes, want %d", i, len(b), want)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var hdr bytes.Buffer
	hdr.Write(magic[:])
	binary.Write(&hdr, binary.LittleEndian, uint16(version))
	hdr.WriteByte(byte(opts.Codec))
	var flags byte
	if opts.BigEndian {
		flags |= flagBigEndian
	}
	hdr.WriteByte(flags)
	binary.Write(&hdr, binary.LittleEndian, uint16(opts.BitWidth))
	binary.Write(&hdr, binary.LittleEndian, uint16(opts.Components))
	for _, v := range []uint32{
		opts.BrickDims.X, opts.BrickDims.Y, opts.BrickDims.Z,
		opts.Grid.X, opts.Grid.Y, opts.Grid.Z,
	} {
		binary.Write(&hdr, binary.LittleEndian, v)
	}
	binary.Write(&hdr, binary.LittleEndian, math.Float64bits(opts.Min))
	binary.Write(&hdr, binary.LittleEndian, math.Float64bits(opts.Max))

	if _, err := f.Write(hdr.Bytes()); err != nil {
		return err
	}

	// Compress blocks first so the index can be written in one pass.
	blocks := make([][]byte, len(bricks))
	for i, b := range bricks {
		blk, err := compress(opts.Codec, b)
		if err != nil {
			return err
		}
		blocks[i] = blk
	}

	index := make([]byte, 16*len(blocks))
	offset := uint64(headerSize + len(index))
	for i, blk := range blocks {
		binary.LittleEndian.PutUint64(index[16*i:], offset)
		binary.LittleEndian.PutUint64(index[16*i+8:], uint64(len(blk)))
		offset += uint64(len(blk))
	}
	if _, err := f.Write(index); err != nil {
		return err
	}
	for _, blk := range blocks {
		if _, err := f.Write(blk); err != nil {
			return err
		}
	}

	return f.Sync()
}

func compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CodecZstd:
		w, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer w.Close()
		return w.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("rawvol: unknown codec %d", codec)
	}
}

type indexEntry struct {
	offset, length uint64
}

// Dataset is an open rawvol container.
type Dataset struct {
	path string
	opts Options

	f     *os.File
	mmap  []byte // non-nil for CodecNone
	index []indexEntry

	zdec *zstd.Decoder // lazily created, CodecZstd only
}

var _ volume.Dataset = (*Dataset)(nil)

// Open maps or opens the container at path.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d := &Dataset{path: path, f: f}
	if err := d.readHeader(); err != nil {
		f.Close()
		return nil, err
	}

	if d.opts.Codec == CodecNone {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		m, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("rawvol: mmap %s: %w", path, err)
		}
		d.mmap = m
	}

	return d, nil
}

func (d *Dataset) readHeader() error {
	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(d.f, hdr); err != nil {
		return fmt.Errorf("rawvol: read header: %w", err)
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		return ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(hdr[4:]); v != version {
		return fmt.Errorf("rawvol: unsupported version %d", v)
	}

	d.opts.Codec = Codec(hdr[6])
	d.opts.BigEndian = hdr[7]&flagBigEndian != 0
	d.opts.BitWidth = uint32(binary.LittleEndian.Uint16(hdr[8:]))
	d.opts.Components = uint32(binary.LittleEndian.Uint16(hdr[10:]))
	d.opts.BrickDims = volume.Dims{
		X: binary.LittleEndian.Uint32(hdr[12:]),
		Y: binary.LittleEndian.Uint32(hdr[16:]),
		Z: binary.LittleEndian.Uint32(hdr[20:]),
	}
	d.opts.Grid = volume.Dims{
		X: binary.LittleEndian.Uint32(hdr[24:]),
		Y: binary.LittleEndian.Uint32(hdr[28:]),
		Z: binary.LittleEndian.Uint32(hdr[32:]),
	}
	d.opts.Min = math.Float64frombits(binary.LittleEndian.Uint64(hdr[36:]))
	d.opts.Max = math.Float64frombits(binary.LittleEndian.Uint64(hdr[44:]))

	n := d.opts.BrickCount()
	raw := make([]byte, 16*n)
	if _, err := io.ReadFull(d.f, raw); err != nil {
		return fmt.Errorf("rawvol: read index: %w", err)
	}
	d.index = make([]indexEntry, n)
	for i := range d.index {
		d.index[i] = indexEntry{
			offset: binary.LittleEndian.Uint64(raw[16*i:]),
			length: binary.LittleEndian.Uint64(raw[16*i+8:]),
		}
	}

	return nil
}

func (d *Dataset) Path() string { return d.path }

// BrickVoxelCounts returns the uniform brick dimensions. Keys are validated
// in ReadBrick, not here.
func (d *Dataset) BrickVoxelCounts(volume.BrickKey) volume.Dims {
	return d.opts.BrickDims
}

func (d *Dataset) BitWidth() uint32 { return d.opts.BitWidth }

func (d *Dataset) ComponentCount() uint32 { return d.opts.Components }

func (d *Dataset) Range() (float64, float64) { return d.opts.Min, d.opts.Max }

// SameEndianness compares the container's sample byte order to the host's.
func (d *Dataset) SameEndianness() bool {
	return d.opts.BigEndian == hostIsBigEndian()
}

func hostIsBigEndian() bool {
	return binary.NativeEndian.Uint16([]byte{0x00, 0x01}) == 1
}

func (d *Dataset) ReadBrick(key volume.BrickKey, dst []byte) (int, error) {
	if key.LOD != 0 || key.Index >= d.opts.BrickCount() {
		return 0, ErrBadKey
	}

	rawSize := d.opts.BrickByteSize()
	if uint64(len(dst)) < rawSize {
		return 0, fmt.Errorf("rawvol: buffer too small: %d < %d", len(dst), rawSize)
	}

	e := d.index[key.Index]

	if d.mmap != nil {
		return copy(dst[:rawSize], d.mmap[e.offset:e.offset+e.length]), nil
	}

	block := make([]byte, e.length)
	if _, err := d.f.ReadAt(block, int64(e.offset)); err != nil {
		return 0, fmt.Errorf("rawvol: read block %d: %w", key.Index, err)
	}

	return d.decompress(block, dst[:rawSize])
}

func (d *Dataset) decompress(block, dst []byte) (int, error) {
	switch d.opts.Codec {
	case CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(block))
		if err != nil {
			return 0, err
		}
		defer r.Close()
		return io.ReadFull(r, dst)
	case CodecLZ4:
		return io.ReadFull(lz4.NewReader(bytes.NewReader(block)), dst)
	case CodecZstd:
		if d.zdec == nil {
			dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return 0, err
			}
			d.zdec = dec
		}
		out, err := d.zdec.DecodeAll(block, nil)
		if err != nil {
			return 0, err
		}
		if len(out) != len(dst) {
			return 0, fmt.Errorf("rawvol: block decodes to %d bytes, want %d", len(out), len(dst))
		}
		return copy(dst, out), nil
	default:
		return 0, fmt.Errorf("rawvol: unknown codec %d", d.opts.Codec)
	}
}

// Close unmaps and closes the container.
func (d *Dataset) Close() error {
	if d.zdec != nil {
		d.zdec.Close()
		d.zdec = nil
	}
	if d.mmap != nil {
		if err := unix.Munmap(d.mmap); err != nil {
			return err
		}
		d.mmap = nil
	}
	return d.f.Close()
}
