package voxcache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/voxcache/internal/brickcache"
	"github.com/hupe1980/voxcache/internal/resource"
	"github.com/hupe1980/voxcache/internal/transform"
	"github.com/hupe1980/voxcache/volume"
)

var (
	// ErrNilDriver is returned by New when no driver is supplied.
	ErrNilDriver = errors.New("driver must not be nil")

	// ErrClosed is returned from operations on a closed MemoryManager.
	ErrClosed = errors.New("memory manager is closed")

	// ErrGPUMemoryLimit is returned when an allocation would exceed the
	// configured memory limit.
	ErrGPUMemoryLimit = errors.New("gpu memory limit exceeded")
)

// ErrUnsupportedFormat indicates a dataset whose sample layout has no GPU
// texture format.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrUnsupportedFormat struct {
	Components uint32
	BitWidth   uint32
	cause      error
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported sample format: %d components at %d bits", e.Components, e.BitWidth)
}

func (e *ErrUnsupportedFormat) Unwrap() error { return e.cause }

// ErrBrickRead indicates that brick data could not be read from its dataset.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrBrickRead struct {
	Key   volume.BrickKey
	cause error
}

func (e *ErrBrickRead) Error() string {
	return fmt.Sprintf("brick read failed: lod %d index %d", e.Key.LOD, e.Key.Index)
}

func (e *ErrBrickRead) Unwrap() error { return e.cause }

// ErrAllocationFailure indicates that GPU texture creation or upload failed.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrAllocationFailure struct {
	Bytes int64
	cause error
}

func (e *ErrAllocationFailure) Error() string {
	return fmt.Sprintf("gpu allocation of %d bytes failed", e.Bytes)
}

func (e *ErrAllocationFailure) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Format normalization.
	var bw *transform.ErrUnsupportedBitWidth
	if errors.As(err, &bw) {
		return &ErrUnsupportedFormat{BitWidth: bw.Width, cause: err}
	}
	var cc *transform.ErrUnsupportedComponentCount
	if errors.As(err, &cc) {
		return &ErrUnsupportedFormat{Components: cc.Count, cause: err}
	}

	// I/O and allocation failures.
	var br *brickcache.BrickReadError
	if errors.As(err, &br) {
		return &ErrBrickRead{Key: br.Key, cause: err}
	}
	var af *brickcache.AllocationError
	if errors.As(err, &af) {
		if errors.Is(err, resource.ErrGPUMemoryLimitExceeded) {
			return fmt.Errorf("%w: %w", ErrGPUMemoryLimit, err)
		}
		return &ErrAllocationFailure{Bytes: af.Bytes, cause: err}
	}
	if errors.Is(err, resource.ErrGPUMemoryLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrGPUMemoryLimit, err)
	}

	return err
}
