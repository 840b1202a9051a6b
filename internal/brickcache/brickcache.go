// Package brickcache implements the brick texture cache: a collection of
// slots, each owning one GPU texture bound to one brick's data.
//
// A request is served by an exact match when one exists, otherwise by
// repurposing the least-recently-touched slot whose texture can be reused in
// place (same voxel dimensions, same compatibility flags, not in use this
// frame), otherwise by allocating a fresh slot. Slots are never freed by the
// eviction scan; texture memory only shrinks when a whole dataset is dropped.
package brickcache

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/internal/hub"
	"github.com/hupe1980/voxcache/internal/resource"
	"github.com/hupe1980/voxcache/volume"
)

// Flags are the compatibility settings a brick texture was produced under.
// Two requests can only share a slot if all four match.
type Flags struct {
	// PadPow2 pads brick data to power-of-two dimensions.
	PadPow2 bool

	// Downsample8 quantizes 16-bit samples down to 8 bits.
	Downsample8 bool

	// DisableBorder skips border replication during padding and selects
	// edge clamping at sampling time instead.
	DisableBorder bool

	// Stack2D emulates the 3D texture as a stack of 2D slices.
	Stack2D bool
}

// Recency is the LRU ordering key: the frame a slot was last touched in,
// tie-broken by the intra-frame operation index.
type Recency struct {
	Frame uint64
	Intra uint64
}

// Before reports whether r is lexicographically smaller than o, i.e. touched
// longer ago.
func (r Recency) Before(o Recency) bool {
	return r.Frame < o.Frame || (r.Frame == o.Frame && r.Intra < o.Intra)
}

// Env bundles the collaborators slot population needs.
type Env struct {
	Driver gpu.Driver
	Hub    *hub.Hub
	Res    *resource.Controller
	Log    *slog.Logger
}

// BrickReadError indicates the backing dataset could not supply brick bytes.
type BrickReadError struct {
	Key   volume.BrickKey
	cause error
}

func (e *BrickReadError) Error() string {
	return fmt.Sprintf("read brick (lod %d, index %d): %v", e.Key.LOD, e.Key.Index, e.cause)
}

func (e *BrickReadError) Unwrap() error { return e.cause }

// AllocationError indicates host or GPU memory could not be obtained for a
// texture.
type AllocationError struct {
	Bytes int64
	cause error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %d texture bytes: %v", e.Bytes, e.cause)
}

func (e *AllocationError) Unwrap() error { return e.cause }
