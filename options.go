package voxcache

import (
	"log/slog"

	"github.com/hupe1980/voxcache/volume"
	"github.com/hupe1980/voxcache/volume/rawvol"
)

// DatasetOpener constructs a dataset from a source path. The default opener
// reads rawvol containers.
type DatasetOpener func(path string) (volume.Dataset, error)

// defaultUploadHubSize bounds the shared staging buffer. Bricks larger than
// the hub stage through a one-shot allocation instead.
const defaultUploadHubSize = 64 << 20

type options struct {
	opener                 DatasetOpener
	uploadHubSize          int
	memoryLimitBytes       int64
	ioReadLimitBytesPerSec float64
	metricsCollector       MetricsCollector
	logger                 *Logger
}

// Option configures MemoryManager construction.
type Option func(*options)

// WithDatasetOpener configures how LoadDataset turns a path into a dataset.
//
// If nil is passed, the rawvol opener is used.
func WithDatasetOpener(open DatasetOpener) Option {
	return func(o *options) {
		if open == nil {
			open = defaultOpener
		}
		o.opener = open
	}
}

// WithUploadHubSize configures the size in bytes of the shared CPU staging
// buffer for brick uploads. Bricks that fit stage through the hub without
// allocating; larger bricks fall back to per-upload allocations.
//
// A size of 0 disables the hub entirely.
func WithUploadHubSize(bytes int) Option {
	return func(o *options) {
		o.uploadHubSize = bytes
	}
}

// WithMemoryLimit caps the GPU bytes the manager will account for. Brick and
// texture allocations that would exceed the limit fail with
// ErrAllocationFailure; repurposing an existing texture is never affected.
//
// A limit of 0 (the default) disables the cap.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimitBytes = bytes
	}
}

// WithIOReadLimit throttles dataset brick reads to the given rate in bytes
// per second. Useful to keep cold-cache frames from saturating shared
// storage.
//
// A rate of 0 (the default) disables throttling.
func WithIOReadLimit(bytesPerSec float64) Option {
	return func(o *options) {
		o.ioReadLimitBytesPerSec = bytesPerSec
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &voxcache.BasicMetricsCollector{}
//	mm, _ := voxcache.New(driver, voxcache.WithMetricsCollector(metrics))
//	// ... render ...
//	stats := metrics.GetStats()
//	fmt.Printf("hit rate: %.2f\n", stats.HitRate())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := voxcache.NewJSONLogger(slog.LevelInfo)
//	mm, _ := voxcache.New(driver, voxcache.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func defaultOpener(path string) (volume.Dataset, error) {
	return rawvol.Open(path)
}

func applyOptions(optFns []Option) options {
	o := options{
		opener:           defaultOpener,
		uploadHubSize:    defaultUploadHubSize,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
