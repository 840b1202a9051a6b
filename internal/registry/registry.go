// Package registry implements the dataset reference cache: path-keyed lazy
// loading with a per-entry requester list. A dataset is loaded at most once
// per distinct source path and destroyed exactly when its requester list
// becomes empty.
//
// Requester lists keep at-least-once registration semantics: the same
// requester may appear multiple times, and a free removes only the first
// occurrence.
package registry

import (
	"log/slog"

	"github.com/hupe1980/voxcache/volume"
)

// Opener constructs a dataset from a source path. It is the registry's only
// coupling to concrete dataset implementations.
type Opener func(path string) (volume.Dataset, error)

type entry struct {
	ds         volume.Dataset
	path       string
	requesters []volume.RendererID
}

// Registry is the dataset reference cache. Entries are held in a slice and
// scanned linearly; collections stay small and first-match-wins semantics
// are part of the contract.
type Registry struct {
	open    Opener
	log     *slog.Logger
	entries []*entry
}

// New creates a registry that loads datasets through open.
func New(open Opener, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{open: open, log: log}
}

// Load returns the dataset for path, loading it on first request. Repeat
// requests perform no I/O; they append the requester to the entry and return
// the existing handle. A failed load is not cached.
func (r *Registry) Load(path string, requester volume.RendererID) (volume.Dataset, error) {
	for _, e := range r.entries {
		if e.path == path {
			e.requesters = append(e.requesters, requester)
			r.log.Debug("dataset reused", "path", path, "requesters", len(e.requesters))
			return e.ds, nil
		}
	}

	ds, err := r.open(path)
	if err != nil {
		return nil, err
	}

	r.entries = append(r.entries, &entry{
		ds:         ds,
		path:       path,
		requesters: []volume.RendererID{requester},
	})
	r.log.Info("dataset loaded", "path", path)

	return ds, nil
}

// Free removes the first occurrence of requester from the entry for ds. When
// the requester list becomes empty the dataset is closed and the entry
// removed; last reports that case. ok is false when the (dataset, requester)
// pair is unknown — the caller logs a warning, nothing else changes.
func (r *Registry) Free(ds volume.Dataset, requester volume.RendererID) (last, ok bool) {
	for i, e := range r.entries {
		if e.ds != ds {
			continue
		}

		for j, req := range e.requesters {
			if req != requester {
				continue
			}

			e.requesters = append(e.requesters[:j], e.requesters[j+1:]...)
			if len(e.requesters) > 0 {
				r.log.Debug("dataset still in use",
					"path", e.path, "requesters", len(e.requesters))
				return false, true
			}

			if err := e.ds.Close(); err != nil {
				r.log.Warn("dataset close failed", "path", e.path, "error", err)
			}
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.log.Info("dataset released", "path", e.path)

			return true, true
		}

		return false, false
	}

	return false, false
}

// Requesters returns the number of outstanding requesters for ds, 0 if the
// dataset is not registered.
func (r *Registry) Requesters(ds volume.Dataset) int {
	for _, e := range r.entries {
		if e.ds == ds {
			return len(e.requesters)
		}
	}
	return 0
}

// Len returns the number of loaded datasets.
func (r *Registry) Len() int { return len(r.entries) }

// Close releases every remaining dataset regardless of requester counts.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range r.entries {
		if err := e.ds.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.entries = nil
	return firstErr
}
