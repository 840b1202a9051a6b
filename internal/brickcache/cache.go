package brickcache

import (
	"log/slog"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/volume"
)

// Outcome describes how a Get request was served.
type Outcome uint8

const (
	// OutcomeHit means an exact match existed and was reused.
	OutcomeHit Outcome = iota + 1
	// OutcomeRepurposed means an idle slot of matching dimensions was
	// rebound to the requested brick.
	OutcomeRepurposed
	// OutcomeAllocated means a fresh slot was constructed.
	OutcomeAllocated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeRepurposed:
		return "repurposed"
	case OutcomeAllocated:
		return "allocated"
	default:
		return "unknown"
	}
}

// Cache is the collection of brick texture slots. All methods must be called
// from the thread owning the graphics context; the cache takes no locks.
type Cache struct {
	env   Env
	slots []*Slot
}

// New creates an empty brick cache.
func New(env Env) *Cache {
	if env.Log == nil {
		env.Log = slog.New(slog.DiscardHandler)
	}
	return &Cache{env: env}
}

// Get returns a texture for the requested brick, serving it from an exact
// match, a repurposed slot, or a fresh allocation, in that order. Every
// successful Get adds one user grant that the caller must return via Release
// in the same frame.
func (c *Cache) Get(ds volume.Dataset, key volume.BrickKey, flags Flags, rec Recency) (gpu.Texture, Outcome, error) {
	// Exact match first.
	for _, s := range c.slots {
		if s.Matches(ds, key, flags) {
			c.env.Log.Debug("brick cache hit",
				"lod", key.LOD, "index", key.Index)
			return s.Access(rec), OutcomeHit, nil
		}
	}

	// Otherwise repurpose the least-recently-touched slot whose texture
	// can hold this brick without reallocation.
	target := ds.BrickVoxelCounts(key)
	if i, ok := c.bestCandidate(target, flags); ok {
		victim := c.slots[i]
		old := victim.Key()

		if err := victim.Repurpose(&c.env, ds, key, flags, rec); err != nil {
			// The victim is unusable; drop it and fall back to a
			// fresh allocation.
			c.env.Log.Warn("brick repurpose failed, discarding slot",
				"lod", key.LOD, "index", key.Index, "error", err)
			c.removeSlot(i)
		} else {
			c.env.Log.Debug("brick slot repurposed",
				"old_lod", old.LOD, "old_index", old.Index,
				"lod", key.LOD, "index", key.Index)
			return victim.Texture(), OutcomeRepurposed, nil
		}
	}

	s, err := NewSlot(&c.env, ds, key, flags, rec)
	if err != nil {
		return nil, 0, err
	}
	c.slots = append(c.slots, s)

	c.env.Log.Debug("brick slot allocated",
		"lod", key.LOD, "index", key.Index, "bytes", s.GPUSize())

	return s.Texture(), OutcomeAllocated, nil
}

// bestCandidate folds the eviction predicate across all slots and returns
// the index of the one touched longest ago, if any qualifies.
func (c *Cache) bestCandidate(target volume.Dims, flags Flags) (int, bool) {
	best := -1
	var bestRec Recency

	for i, s := range c.slots {
		rec, ok := s.EvictionCandidate(target, flags)
		if !ok {
			continue
		}
		if best < 0 || rec.Before(bestRec) {
			best = i
			bestRec = rec
		}
	}

	return best, best >= 0
}

// Release returns one user grant on the slot exactly matching the request.
// It reports false if no such slot exists or no grant was outstanding.
func (c *Cache) Release(ds volume.Dataset, key volume.BrickKey, flags Flags) bool {
	for _, s := range c.slots {
		if s.Matches(ds, key, flags) {
			return s.Release()
		}
	}
	return false
}

// DropDataset destroys every slot holding bricks of the given dataset and
// returns the number of slots removed. Called on dataset teardown.
func (c *Cache) DropDataset(ds volume.Dataset) int {
	kept := c.slots[:0]
	dropped := 0

	for _, s := range c.slots {
		if s.Dataset() == ds {
			s.Destroy(&c.env)
			dropped++
			continue
		}
		kept = append(kept, s)
	}

	// Clear the tail so destroyed slots are not retained.
	for i := len(kept); i < len(c.slots); i++ {
		c.slots[i] = nil
	}
	c.slots = kept

	return dropped
}

// Clear destroys all slots.
func (c *Cache) Clear() {
	for _, s := range c.slots {
		s.Destroy(&c.env)
	}
	c.slots = nil
}

// Len returns the number of slots in the collection.
func (c *Cache) Len() int { return len(c.slots) }

// GPUSize returns the total GPU-side bytes of all slots.
func (c *Cache) GPUSize() int64 {
	var total int64
	for _, s := range c.slots {
		total += s.GPUSize()
	}
	return total
}

func (c *Cache) removeSlot(i int) {
	c.slots[i].Destroy(&c.env)
	c.slots = append(c.slots[:i], c.slots[i+1:]...)
}
