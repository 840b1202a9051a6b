// Package resource implements the Controller for GPU memory accounting and
// brick-read IO throttling.
//
// Memory tracking is always on; the hard limit is optional. With no limit
// configured the cache keeps the grow-only behavior of the slot collection
// (texture memory only shrinks on dataset teardown) and the controller is
// purely an accounting device. With a limit, fresh texture allocations that
// would exceed it fail fast with ErrGPUMemoryLimitExceeded; repurposing an
// existing slot never consumes additional budget.
//
// All methods handle a nil Controller gracefully: they become no-ops. This
// allows optional resource limiting without nil checks everywhere.
package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrGPUMemoryLimitExceeded is returned when a texture allocation would
// exceed the configured GPU memory limit.
var ErrGPUMemoryLimitExceeded = errors.New("gpu memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// GPUMemoryLimitBytes is the hard limit for tracked texture memory.
	// If 0, no hard limit is enforced (only tracking).
	GPUMemoryLimitBytes int64

	// ReadLimitBytesPerSec is the maximum throughput for brick reads from
	// backing storage. If 0, unlimited.
	ReadLimitBytesPerSec int64
}

// Controller tracks GPU texture memory and throttles brick reads.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	readLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.GPUMemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.GPUMemoryLimitBytes)
	}

	if cfg.ReadLimitBytesPerSec > 0 {
		c.readLimiter = rate.NewLimiter(rate.Limit(cfg.ReadLimitBytesPerSec), int(cfg.ReadLimitBytesPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve texture memory. Non-blocking; returns
// ErrGPUMemoryLimitExceeded if the limit would be exceeded. Callers decide
// whether that is fatal.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrGPUMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)

	return nil
}

// ReleaseMemory releases reserved texture memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the tracked texture memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.GPUMemoryLimitBytes
}

// ThrottleRead blocks until the configured read-rate budget admits n bytes.
// Reads larger than the burst size are admitted in burst-sized chunks.
func (c *Controller) ThrottleRead(n int) {
	if c == nil || c.readLimiter == nil || n <= 0 {
		return
	}

	burst := c.readLimiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		// The background context is deliberate: brick reads are
		// synchronous and uncancellable once started.
		_ = c.readLimiter.WaitN(context.Background(), chunk)
		n -= chunk
	}
}
