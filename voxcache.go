// Package voxcache provides a GPU resident-data cache for bricked
// multi-resolution volume rendering.
//
// Voxcache tracks everything a renderer keeps on the GPU and makes sure each
// resource exists at most once:
//
//   - Datasets: path-keyed, reference counted per requesting renderer
//   - Brick textures: slot collection with recency-based repurposing that
//     reuses idle GPU allocations instead of freeing and reallocating
//   - 2D textures from image files: path-keyed, reference counted
//   - Transfer functions (1D and 2D): tracked but not reference counted;
//     every request allocates a fresh function
//
// Brick uploads run through a transform pipeline on the CPU side: staging
// through a shared upload buffer, endianness correction, optional 16 to 8 bit
// range quantization, GPU format selection, and optional power-of-two padding
// with border replication.
//
// # Quick Start
//
//	mm, err := voxcache.New(driver,
//	    voxcache.WithMemoryLimit(512<<20),
//	    voxcache.WithLogger(voxcache.NewTextLogger(slog.LevelInfo)),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer mm.Close()
//
//	renderer := volume.NewRendererID()
//	ds, err := mm.LoadDataset("./data/head.vox", renderer)
//	if err != nil {
//	    panic(err)
//	}
//	defer mm.FreeDataset(ds, renderer)
//
//	for !converged {
//	    mm.NextFrame()
//	    for _, key := range visibleBricks {
//	        tex, err := mm.GetBrick(ctx, ds, key, flags)
//	        if err != nil {
//	            continue
//	        }
//	        render(tex)
//	        mm.ReleaseBrick(ds, key, flags)
//	    }
//	}
//
// All MemoryManager methods are safe for concurrent use, but the gpu.Driver
// passed to New is invoked under the manager's lock, so driver calls are
// serialized onto whichever goroutine called the method. Drivers that require
// a bound graphics context should be used from a single render goroutine.
package voxcache

import (
	"context"
	"sync"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/internal/brickcache"
	"github.com/hupe1980/voxcache/internal/hub"
	"github.com/hupe1980/voxcache/internal/registry"
	"github.com/hupe1980/voxcache/internal/resource"
	"github.com/hupe1980/voxcache/internal/texcache"
	"github.com/hupe1980/voxcache/transfer"
	"github.com/hupe1980/voxcache/volume"
)

// BrickFlags selects the transforms applied when a brick is uploaded.
// Textures are shared only between requests with identical flags.
type BrickFlags struct {
	// PadPow2 pads each brick dimension up to the next power of two.
	PadPow2 bool

	// Downsample8 quantizes 16-bit samples to 8 bits using the dataset's
	// value range.
	Downsample8 bool

	// DisableBorder fills padding with zeros instead of replicating the
	// border and clamps sampling to the texture edge.
	DisableBorder bool

	// Stack2D uploads the brick as a stack of 2D slices instead of a 3D
	// texture.
	Stack2D bool
}

func (f BrickFlags) internal() brickcache.Flags {
	return brickcache.Flags{
		PadPow2:       f.PadPow2,
		Downsample8:   f.Downsample8,
		DisableBorder: f.DisableBorder,
		Stack2D:       f.Stack2D,
	}
}

// Stats is a point-in-time snapshot of manager state.
type Stats struct {
	Datasets      int   // loaded datasets
	BrickSlots    int   // brick texture slots, in use or idle
	GPUBytes      int64 // total GPU memory accounted for
	GPULimitBytes int64 // configured limit, 0 when unlimited
	Frame         uint64
}

// MemoryManager is the central owner of GPU-resident data. Create one per
// graphics context with New and release everything with Close.
type MemoryManager struct {
	mu sync.Mutex

	opts    options
	log     *Logger
	metrics MetricsCollector

	res      *resource.Controller
	datasets *registry.Registry
	bricks   *brickcache.Cache
	textures *texcache.Cache
	clock    frameClock

	closed bool
}

// New creates a MemoryManager on top of the given driver.
func New(driver gpu.Driver, optFns ...Option) (*MemoryManager, error) {
	if driver == nil {
		return nil, ErrNilDriver
	}

	o := applyOptions(optFns)

	res := resource.NewController(resource.Config{
		GPUMemoryLimitBytes:  o.memoryLimitBytes,
		ReadLimitBytesPerSec: int64(o.ioReadLimitBytesPerSec),
	})

	mm := &MemoryManager{
		opts:     o,
		log:      o.logger,
		metrics:  o.metricsCollector,
		res:      res,
		datasets: registry.New(registry.Opener(o.opener), o.logger.Logger),
		textures: texcache.New(driver, res, o.logger.Logger),
	}
	mm.bricks = brickcache.New(brickcache.Env{
		Driver: driver,
		Hub:    hub.New(o.uploadHubSize),
		Res:    res,
		Log:    o.logger.Logger,
	})

	return mm, nil
}

// LoadDataset returns the dataset stored at path, opening it on first
// request. Repeat requests for the same path return the same handle and
// register the requester once more; every registration must be paired with
// one FreeDataset.
func (mm *MemoryManager) LoadDataset(path string, requester volume.RendererID) (volume.Dataset, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.closed {
		return nil, ErrClosed
	}

	ds, err := mm.datasets.Load(path, requester)
	mm.metrics.RecordDatasetLoad(path, err)
	if err != nil {
		mm.log.LogDatasetLoad(path, err)
		return nil, translateError(err)
	}

	return ds, nil
}

// FreeDataset removes one registration of requester on ds. When the last
// registration is removed the dataset is closed and all of its brick textures
// are destroyed. Unknown (dataset, requester) pairs log a warning and change
// nothing.
func (mm *MemoryManager) FreeDataset(ds volume.Dataset, requester volume.RendererID) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	last, ok := mm.datasets.Free(ds, requester)
	if !ok {
		mm.log.Warn("free of unregistered dataset ignored", "requester", requester.String())
		return
	}
	if last {
		dropped := mm.bricks.DropDataset(ds)
		mm.metrics.RecordDatasetFree(dropped)
		mm.log.Debug("dataset freed", "bricks_dropped", dropped)
	}
}

// GetBrick returns a GPU texture holding the requested brick, uploading it if
// no matching texture is resident. Each successful call adds one user grant;
// the caller must pair it with exactly one ReleaseBrick once the brick has
// been rendered this frame. Textures with outstanding grants are never
// repurposed.
func (mm *MemoryManager) GetBrick(ctx context.Context, ds volume.Dataset, key volume.BrickKey, flags BrickFlags) (gpu.Texture, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tex, outcome, err := mm.bricks.Get(ds, key, flags.internal(), mm.clock.tick())
	mm.metrics.RecordBrickRequest(outcome.String(), err)
	mm.log.LogBrickRequest(key, outcome.String(), err)
	if err != nil {
		return nil, translateError(err)
	}
	if outcome != brickcache.OutcomeHit {
		mm.metrics.RecordBrickUpload(tex.SizeBytes())
	}

	return tex, nil
}

// ReleaseBrick returns one GetBrick grant. Releasing a brick that is not
// resident or has no outstanding grant logs a warning and changes nothing.
func (mm *MemoryManager) ReleaseBrick(ds volume.Dataset, key volume.BrickKey, flags BrickFlags) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if !mm.bricks.Release(ds, key, flags.internal()) {
		mm.log.Warn("release of unknown brick ignored",
			"lod", key.LOD, "index", key.Index)
	}
}

// NextFrame advances the frame counter. Call it once at the start of each
// rendered frame; brick repurposing prefers slots untouched for the most
// frames, breaking ties by upload order within the frame.
func (mm *MemoryManager) NextFrame() uint64 {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	return mm.clock.nextFrame()
}

// Load2DTextureFromFile returns a GPU texture decoded from the image at path
// (PNG, JPEG, or BMP). Repeat requests for the same path return the same
// texture and bump its access count; pair each call with one FreeTexture.
func (mm *MemoryManager) Load2DTextureFromFile(path string) (gpu.Texture, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.closed {
		return nil, ErrClosed
	}

	tex, err := mm.textures.Load2D(path)
	mm.metrics.RecordTextureLoad(path, err)
	if err != nil {
		mm.log.Warn("2d texture load failed", "path", path, "error", err)
		return nil, translateError(err)
	}

	return tex, nil
}

// FreeTexture drops one access on the 2D texture loaded from path, destroying
// it when the count reaches zero. Unknown paths log a warning.
func (mm *MemoryManager) FreeTexture(path string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if !mm.textures.Free2D(path) {
		mm.log.Warn("free of unknown 2d texture ignored", "path", path)
	}
}

// GetEmpty1DTrans allocates a fresh 1D transfer function of the given sample
// count, initialized to a grayscale ramp, together with its GPU texture.
// Transfer functions are not shared between requesters.
func (mm *MemoryManager) GetEmpty1DTrans(size int, requester volume.RendererID) (*transfer.Function1D, gpu.Texture, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.closed {
		return nil, nil, ErrClosed
	}

	fn, tex, err := mm.textures.GetEmpty1D(size, requester)
	if err != nil {
		return nil, nil, translateError(err)
	}
	return fn, tex, nil
}

// Access1DTrans returns the GPU texture bound to an owned 1D transfer
// function. It reports false for untracked functions.
func (mm *MemoryManager) Access1DTrans(fn *transfer.Function1D) (gpu.Texture, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	return mm.textures.Access1D(fn)
}

// Free1DTrans destroys the function's GPU texture and stops tracking it.
// Unknown functions log a warning.
func (mm *MemoryManager) Free1DTrans(fn *transfer.Function1D) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if !mm.textures.Free1D(fn) {
		mm.log.Warn("free of unknown 1d transfer function ignored")
	}
}

// GetEmpty2DTrans allocates a fresh zero-initialized 2D transfer function and
// its GPU texture.
func (mm *MemoryManager) GetEmpty2DTrans(width, height int, requester volume.RendererID) (*transfer.Function2D, gpu.Texture, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.closed {
		return nil, nil, ErrClosed
	}

	fn, tex, err := mm.textures.GetEmpty2D(width, height, requester)
	if err != nil {
		return nil, nil, translateError(err)
	}
	return fn, tex, nil
}

// Access2DTrans returns the GPU texture bound to an owned 2D transfer
// function. It reports false for untracked functions.
func (mm *MemoryManager) Access2DTrans(fn *transfer.Function2D) (gpu.Texture, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	return mm.textures.Access2D(fn)
}

// Free2DTrans destroys the function's GPU texture and stops tracking it.
// Unknown functions log a warning.
func (mm *MemoryManager) Free2DTrans(fn *transfer.Function2D) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if !mm.textures.Free2DTrans(fn) {
		mm.log.Warn("free of unknown 2d transfer function ignored")
	}
}

// MemoryUsage returns the GPU bytes currently accounted for.
func (mm *MemoryManager) MemoryUsage() int64 {
	return mm.res.MemoryUsage()
}

// Stats returns a snapshot of manager state.
func (mm *MemoryManager) Stats() Stats {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	return Stats{
		Datasets:      mm.datasets.Len(),
		BrickSlots:    mm.bricks.Len(),
		GPUBytes:      mm.res.MemoryUsage(),
		GPULimitBytes: mm.res.MemoryLimit(),
		Frame:         mm.clock.frame,
	}
}

// Close destroys all GPU resources and closes all datasets. The manager is
// unusable afterwards; Close is idempotent.
func (mm *MemoryManager) Close() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.closed {
		return nil
	}
	mm.closed = true

	mm.bricks.Clear()
	mm.textures.Clear()
	err := mm.datasets.Close()

	mm.log.Info("memory manager closed")

	return err
}
