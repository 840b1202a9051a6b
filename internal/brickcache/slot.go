package brickcache

import (
	"fmt"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/internal/transform"
	"github.com/hupe1980/voxcache/volume"
)

// Slot owns at most one GPU texture bound to one brick's data. The dataset
// reference is non-owning; the slot does not keep the dataset alive.
//
// Lifecycle: a slot is populated on construction and stays populated until
// it is either repurposed for another brick of identical dimensions or
// destroyed. A populated slot always holds a valid texture handle; a failed
// construction or repurpose leaves no handle behind and the slot must be
// discarded by the cache.
type Slot struct {
	ds    volume.Dataset
	key   volume.BrickKey
	flags Flags
	rec   Recency

	// users counts grants outstanding this frame. Every Access (and every
	// fresh populate) adds one; the caller must release each grant at
	// frame end. A slot with users > 0 is never an eviction candidate.
	users int

	tex  gpu.Texture
	data []byte // transient private buffer, only set during the load window
}

// NewSlot constructs a slot and populates it immediately. The returned slot
// starts with one outstanding user grant. On failure no texture is retained
// and the slot must not be inserted into the cache.
func NewSlot(env *Env, ds volume.Dataset, key volume.BrickKey, flags Flags, rec Recency) (*Slot, error) {
	s := &Slot{
		ds:    ds,
		key:   key,
		flags: flags,
		rec:   rec,
		users: 1,
	}

	if err := s.populate(env, true); err != nil {
		return nil, err
	}

	return s, nil
}

// Matches reports an exact cache hit: same dataset identity, same brick key,
// and all four compatibility flags equal.
func (s *Slot) Matches(ds volume.Dataset, key volume.BrickKey, flags Flags) bool {
	return s.ds == ds && s.key == key && s.flags == flags
}

// EvictionCandidate reports whether the slot's texture could be reused in
// place for a brick with the given voxel dimensions and flags, and if so
// returns the slot's recency so the caller can fold the minimum across the
// collection. Slots in use this frame are never candidates.
func (s *Slot) EvictionCandidate(target volume.Dims, flags Flags) (Recency, bool) {
	if s.tex == nil || s.users > 0 || s.flags != flags {
		return Recency{}, false
	}
	if s.ds.BrickVoxelCounts(s.key) != target {
		return Recency{}, false
	}

	return s.rec, true
}

// Repurpose rebinds the slot to another brick, reloading and re-uploading
// into the existing texture object. The new brick must have the same voxel
// dimensions and flags as the current one so no reallocation is needed. On
// failure the texture handle is released and the slot is unusable; the
// caller must drop it and fall back to fresh allocation.
//
// A successful repurpose leaves one outstanding user grant, as construction
// does.
func (s *Slot) Repurpose(env *Env, ds volume.Dataset, key volume.BrickKey, flags Flags, rec Recency) error {
	if s.tex == nil {
		return fmt.Errorf("repurpose of unpopulated slot")
	}

	s.ds = ds
	s.key = key
	s.flags = flags
	s.rec = rec

	if err := s.populate(env, false); err != nil {
		s.Destroy(env)
		return err
	}

	s.users = 1

	return nil
}

// Access bumps the slot's recency to now, adds a user grant, and returns the
// texture handle. The caller must release the grant once this frame.
func (s *Slot) Access(rec Recency) gpu.Texture {
	s.rec = rec
	s.users++

	return s.tex
}

// Release returns one user grant. It reports false if no grant was
// outstanding (an unbalanced release by the caller).
func (s *Slot) Release() bool {
	if s.users == 0 {
		return false
	}
	s.users--

	return true
}

// Destroy frees the slot's texture and returns its bytes to the resource
// controller. Safe to call on an already-destroyed slot.
func (s *Slot) Destroy(env *Env) {
	if s.tex != nil {
		env.Res.ReleaseMemory(s.tex.SizeBytes())
		env.Driver.Free(s.tex)
		s.tex = nil
	}
	s.data = nil
}

// Texture returns the slot's texture handle, nil if unpopulated.
func (s *Slot) Texture() gpu.Texture { return s.tex }

// Dataset returns the slot's owning dataset reference.
func (s *Slot) Dataset() volume.Dataset { return s.ds }

// Key returns the brick the slot currently holds.
func (s *Slot) Key() volume.BrickKey { return s.key }

// Users returns the number of outstanding user grants.
func (s *Slot) Users() int { return s.users }

// LastTouched returns the slot's recency pair.
func (s *Slot) LastTouched() Recency { return s.rec }

// GPUSize returns the texture's GPU-side byte size, 0 if unpopulated.
func (s *Slot) GPUSize() int64 {
	if s.tex == nil {
		return 0
	}
	return s.tex.SizeBytes()
}

// populate runs the transform pipeline: acquire raw bytes (upload hub or
// private buffer), byte-swap foreign-endian 16-bit samples, optionally
// quantize to 8 bits, select the texture format, optionally pad to powers of
// two, then create the texture (create=true) or re-upload into the existing
// one. The host-side buffer is dropped as soon as the upload completes.
func (s *Slot) populate(env *Env, create bool) error {
	dims := s.ds.BrickVoxelCounts(s.key)
	width := s.ds.BitWidth()
	comps := s.ds.ComponentCount()
	rawSize := dims.VoxelCount() * uint64(width/8) * uint64(comps)

	buf, fromHub := env.Hub.Acquire(rawSize)
	if !fromHub {
		buf = make([]byte, rawSize)
		s.data = buf
	}

	env.Res.ThrottleRead(int(rawSize))

	n, err := s.ds.ReadBrick(s.key, buf)
	if err != nil {
		s.data = nil
		return &BrickReadError{Key: s.key, cause: err}
	}
	if uint64(n) < rawSize {
		s.data = nil
		return &BrickReadError{Key: s.key, cause: fmt.Errorf("short read: %d of %d bytes", n, rawSize)}
	}

	if width == 16 && !s.ds.SameEndianness() {
		transform.SwapBytes16(buf)
	}

	if s.flags.Downsample8 && width != 8 {
		samples := dims.VoxelCount() * uint64(comps)
		min, max := s.ds.Range()
		buf, err = transform.Downsample8(buf, int(samples), width, min, max)
		if err != nil {
			s.data = nil
			return err
		}
		width = 8
	}

	format, typ, err := transform.SelectFormat(comps, width)
	if err != nil {
		s.data = nil
		return err
	}

	if s.flags.PadPow2 && transform.NeedsPadding(dims) {
		elemSize := int(comps) * int(width/8)
		buf, dims = transform.PadPow2(buf, dims, elemSize, !s.flags.DisableBorder)
	}

	desc := gpu.VolumeDesc{
		Width:       dims.X,
		Height:      dims.Y,
		Depth:       dims.Z,
		Format:      format,
		Type:        typ,
		Stack2D:     s.flags.Stack2D,
		ClampToEdge: s.flags.DisableBorder,
	}

	if create {
		size := desc.ByteSize()
		if err := env.Res.AcquireMemory(size); err != nil {
			s.data = nil
			return &AllocationError{Bytes: size, cause: err}
		}

		tex, err := env.Driver.CreateVolume(desc, buf)
		if err != nil {
			env.Res.ReleaseMemory(size)
			s.data = nil
			return &AllocationError{Bytes: size, cause: err}
		}
		s.tex = tex
	} else {
		if err := env.Driver.UploadVolume(s.tex, buf); err != nil {
			// No partially-uploaded handles: the caller destroys
			// the slot on error return.
			s.data = nil
			return &AllocationError{Bytes: desc.ByteSize(), cause: err}
		}
	}

	s.data = nil

	return nil
}
