// Package volume defines the dataset collaborator interface consumed by the
// cache: bricked, multi-resolution volumes addressed by BrickKey.
//
// The cache never constructs brick keys and never inspects voxel semantics;
// it only asks a Dataset for brick dimensions, sample metadata, and raw brick
// bytes. Concrete datasets live elsewhere (see volume/rawvol for a
// file-backed implementation, or testutil for an in-memory one).
package volume
