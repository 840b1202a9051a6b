// Package gpu abstracts the graphics-API surface the cache needs: creating,
// re-uploading, and freeing texture objects. The cache never issues GPU API
// calls itself; it talks to a Driver supplied by the embedding application.
//
// Drivers are expected to be bound to a single graphics context and, like the
// cache itself, are only ever called from the thread owning that context.
package gpu
