package voxcache

import "github.com/hupe1980/voxcache/internal/brickcache"

// frameClock stamps brick accesses with a (frame, intra-frame) pair. The
// frame counter advances once per rendered frame; the intra counter orders
// accesses within one frame and resets when the frame advances.
type frameClock struct {
	frame uint64
	intra uint64
}

// tick stamps one brick access. Callers hold the manager lock.
func (fc *frameClock) tick() brickcache.Recency {
	rec := brickcache.Recency{Frame: fc.frame, Intra: fc.intra}
	fc.intra++
	return rec
}

func (fc *frameClock) nextFrame() uint64 {
	fc.frame++
	fc.intra = 0
	return fc.frame
}
