// Package testutil provides testing utilities for voxcache.
//
// This package is intended for use in tests and benchmarks only. It provides
// an in-memory Dataset, a fake GPU Driver that records allocations, uploads,
// and frees, and a seeded RNG for deterministic brick data.
package testutil
