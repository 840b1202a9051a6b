package voxcache

import (
	"sync/atomic"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    brickRequests *prometheus.CounterVec
//	}
//
//	func (p *PrometheusCollector) RecordBrickRequest(outcome string, err error) {
//	    p.brickRequests.WithLabelValues(outcome).Inc()
//	    // ... record error state, etc.
//	}
type MetricsCollector interface {
	// RecordDatasetLoad is called after each LoadDataset.
	// err is nil if successful.
	RecordDatasetLoad(path string, err error)

	// RecordDatasetFree is called when the last registration of a dataset
	// is freed. bricksDropped is the number of brick slots destroyed.
	RecordDatasetFree(bricksDropped int)

	// RecordBrickRequest is called after each GetBrick. outcome is "hit",
	// "repurposed", or "allocated"; err is nil if successful.
	RecordBrickRequest(outcome string, err error)

	// RecordBrickUpload is called whenever brick data is transferred to
	// the GPU, with the texture's GPU-side size.
	RecordBrickUpload(bytes int64)

	// RecordTextureLoad is called after each Load2DTextureFromFile.
	RecordTextureLoad(path string, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDatasetLoad(string, error)  {}
func (NoopMetricsCollector) RecordDatasetFree(int)            {}
func (NoopMetricsCollector) RecordBrickRequest(string, error) {}
func (NoopMetricsCollector) RecordBrickUpload(int64)          {}
func (NoopMetricsCollector) RecordTextureLoad(string, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	DatasetLoads     atomic.Int64
	DatasetLoadFails atomic.Int64
	DatasetFrees     atomic.Int64
	BricksDropped    atomic.Int64
	BrickHits        atomic.Int64
	BrickRepurposed  atomic.Int64
	BrickAllocated   atomic.Int64
	BrickFailures    atomic.Int64
	BytesUploaded    atomic.Int64
	TextureLoads     atomic.Int64
	TextureLoadFails atomic.Int64
}

// RecordDatasetLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDatasetLoad(path string, err error) {
	b.DatasetLoads.Add(1)
	if err != nil {
		b.DatasetLoadFails.Add(1)
	}
}

// RecordDatasetFree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDatasetFree(bricksDropped int) {
	b.DatasetFrees.Add(1)
	b.BricksDropped.Add(int64(bricksDropped))
}

// RecordBrickRequest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBrickRequest(outcome string, err error) {
	if err != nil {
		b.BrickFailures.Add(1)
		return
	}
	switch outcome {
	case "hit":
		b.BrickHits.Add(1)
	case "repurposed":
		b.BrickRepurposed.Add(1)
	case "allocated":
		b.BrickAllocated.Add(1)
	}
}

// RecordBrickUpload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBrickUpload(bytes int64) {
	b.BytesUploaded.Add(bytes)
}

// RecordTextureLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTextureLoad(path string, err error) {
	b.TextureLoads.Add(1)
	if err != nil {
		b.TextureLoadFails.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		DatasetLoads:     b.DatasetLoads.Load(),
		DatasetLoadFails: b.DatasetLoadFails.Load(),
		DatasetFrees:     b.DatasetFrees.Load(),
		BricksDropped:    b.BricksDropped.Load(),
		BrickHits:        b.BrickHits.Load(),
		BrickRepurposed:  b.BrickRepurposed.Load(),
		BrickAllocated:   b.BrickAllocated.Load(),
		BrickFailures:    b.BrickFailures.Load(),
		BytesUploaded:    b.BytesUploaded.Load(),
		TextureLoads:     b.TextureLoads.Load(),
		TextureLoadFails: b.TextureLoadFails.Load(),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	DatasetLoads     int64
	DatasetLoadFails int64
	DatasetFrees     int64
	BricksDropped    int64
	BrickHits        int64
	BrickRepurposed  int64
	BrickAllocated   int64
	BrickFailures    int64
	BytesUploaded    int64
	TextureLoads     int64
	TextureLoadFails int64
}

// HitRate returns the fraction of successful brick requests served from an
// exact match, 0 when no requests were recorded.
func (s BasicMetricsStats) HitRate() float64 {
	total := s.BrickHits + s.BrickRepurposed + s.BrickAllocated
	if total == 0 {
		return 0
	}
	return float64(s.BrickHits) / float64(total)
}
