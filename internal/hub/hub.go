// Package hub implements the upload hub: a single pre-sized staging buffer
// shared across brick uploads. Bricks whose raw byte size fits the buffer
// borrow it instead of allocating, avoiding per-brick heap churn for the
// common small-brick case.
//
// The hub follows the cache's single-threaded model; at most one borrower
// exists at a time and the borrow window ends when the upload completes.
package hub

// Hub is the shared staging buffer. A nil or zero-sized Hub never lends.
type Hub struct {
	buf []byte
}

// New creates a hub with the given capacity in bytes. A size of zero
// disables the hub entirely.
func New(size int) *Hub {
	if size <= 0 {
		return &Hub{}
	}
	return &Hub{buf: make([]byte, size)}
}

// Size returns the hub's capacity in bytes.
func (h *Hub) Size() int {
	if h == nil {
		return 0
	}
	return len(h.buf)
}

// Acquire returns the staging buffer truncated to n bytes if the brick fits,
// or (nil, false) if the caller must allocate privately.
func (h *Hub) Acquire(n uint64) ([]byte, bool) {
	if h == nil || len(h.buf) == 0 || n > uint64(len(h.buf)) {
		return nil, false
	}
	return h.buf[:n], true
}
