// Package texcache implements the auxiliary resource caches: path-keyed
// ref-counted 2D image textures, and the request/free lists for 1D/2D
// transfer-function textures.
//
// Unlike the brick cache there is no eviction search here; 2D textures live
// until their access counter drops to zero, and transfer-function textures
// are owned by a single requester and freed explicitly. Transfer functions
// deliberately carry no reference counting.
package texcache

import (
	"log/slog"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/internal/imaging"
	"github.com/hupe1980/voxcache/internal/resource"
	"github.com/hupe1980/voxcache/transfer"
	"github.com/hupe1980/voxcache/volume"
)

type textureEntry struct {
	path    string
	access  int
	texture gpu.Texture
}

type trans1DEntry struct {
	fn        *transfer.Function1D
	texture   gpu.Texture
	requester volume.RendererID
}

type trans2DEntry struct {
	fn        *transfer.Function2D
	texture   gpu.Texture
	requester volume.RendererID
}

// Cache holds the auxiliary GPU resources: simple 2D textures and
// transfer-function textures.
type Cache struct {
	drv gpu.Driver
	res *resource.Controller
	log *slog.Logger

	textures []*textureEntry
	trans1D  []*trans1DEntry
	trans2D  []*trans2DEntry
}

// New creates an empty auxiliary cache.
func New(drv gpu.Driver, res *resource.Controller, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Cache{drv: drv, res: res, log: log}
}

// Load2D returns the texture for the image file at path, decoding and
// uploading it on first request. Repeat requests for the same path reuse the
// texture and bump its access counter.
func (c *Cache) Load2D(path string) (gpu.Texture, error) {
	for _, e := range c.textures {
		if e.path == path {
			e.access++
			c.log.Debug("2d texture reused", "path", path, "access", e.access)
			return e.texture, nil
		}
	}

	w, h, rgba, err := imaging.Decode(path)
	if err != nil {
		return nil, err
	}

	tex, err := c.drv.CreateTexture2D(w, h, gpu.FormatRGBA, gpu.SampleUint8, rgba)
	if err != nil {
		return nil, err
	}
	if err := c.res.AcquireMemory(tex.SizeBytes()); err != nil {
		c.drv.Free(tex)
		return nil, err
	}

	c.textures = append(c.textures, &textureEntry{path: path, access: 1, texture: tex})
	c.log.Debug("2d texture loaded", "path", path, "width", w, "height", h)

	return tex, nil
}

// Free2D decrements the access counter for path and destroys the texture
// when it reaches zero. It reports false for an unknown path.
func (c *Cache) Free2D(path string) bool {
	for i, e := range c.textures {
		if e.path != path {
			continue
		}

		e.access--
		if e.access > 0 {
			c.log.Debug("2d texture still in use", "path", path, "access", e.access)
			return true
		}

		c.res.ReleaseMemory(e.texture.SizeBytes())
		c.drv.Free(e.texture)
		c.textures = append(c.textures[:i], c.textures[i+1:]...)
		c.log.Debug("2d texture freed", "path", path)

		return true
	}

	return false
}

// GetEmpty1D allocates a fresh transfer function with size entries and a
// matching 1D texture. Ownership of the pair transfers to the requester.
func (c *Cache) GetEmpty1D(size int, requester volume.RendererID) (*transfer.Function1D, gpu.Texture, error) {
	fn := transfer.New1D(size)

	tex, err := c.drv.CreateTexture1D(uint32(size), gpu.FormatRGBA, gpu.SampleUint8, fn.Bytes())
	if err != nil {
		return nil, nil, err
	}
	if err := c.res.AcquireMemory(tex.SizeBytes()); err != nil {
		c.drv.Free(tex)
		return nil, nil, err
	}

	c.trans1D = append(c.trans1D, &trans1DEntry{fn: fn, texture: tex, requester: requester})

	return fn, tex, nil
}

// Access1D returns the texture bound to an owned 1D transfer function.
func (c *Cache) Access1D(fn *transfer.Function1D) (gpu.Texture, bool) {
	for _, e := range c.trans1D {
		if e.fn == fn {
			return e.texture, true
		}
	}
	return nil, false
}

// Free1D destroys the texture bound to fn. It reports false if fn is
// unknown.
func (c *Cache) Free1D(fn *transfer.Function1D) bool {
	for i, e := range c.trans1D {
		if e.fn == fn {
			c.res.ReleaseMemory(e.texture.SizeBytes())
			c.drv.Free(e.texture)
			c.trans1D = append(c.trans1D[:i], c.trans1D[i+1:]...)
			return true
		}
	}
	return false
}

// GetEmpty2D allocates a fresh 2D transfer function and texture. Ownership
// transfers to the requester.
func (c *Cache) GetEmpty2D(width, height int, requester volume.RendererID) (*transfer.Function2D, gpu.Texture, error) {
	fn := transfer.New2D(width, height)

	tex, err := c.drv.CreateTexture2D(uint32(width), uint32(height), gpu.FormatRGBA, gpu.SampleUint8, fn.Bytes())
	if err != nil {
		return nil, nil, err
	}
	if err := c.res.AcquireMemory(tex.SizeBytes()); err != nil {
		c.drv.Free(tex)
		return nil, nil, err
	}

	c.trans2D = append(c.trans2D, &trans2DEntry{fn: fn, texture: tex, requester: requester})

	return fn, tex, nil
}

// Access2D returns the texture bound to an owned 2D transfer function.
func (c *Cache) Access2D(fn *transfer.Function2D) (gpu.Texture, bool) {
	for _, e := range c.trans2D {
		if e.fn == fn {
			return e.texture, true
		}
	}
	return nil, false
}

// Free2DTrans destroys the texture bound to fn. It reports false if fn is
// unknown.
func (c *Cache) Free2DTrans(fn *transfer.Function2D) bool {
	for i, e := range c.trans2D {
		if e.fn == fn {
			c.res.ReleaseMemory(e.texture.SizeBytes())
			c.drv.Free(e.texture)
			c.trans2D = append(c.trans2D[:i], c.trans2D[i+1:]...)
			return true
		}
	}
	return false
}

// Clear destroys every remaining auxiliary resource.
func (c *Cache) Clear() {
	for _, e := range c.textures {
		c.res.ReleaseMemory(e.texture.SizeBytes())
		c.drv.Free(e.texture)
	}
	for _, e := range c.trans1D {
		c.res.ReleaseMemory(e.texture.SizeBytes())
		c.drv.Free(e.texture)
	}
	for _, e := range c.trans2D {
		c.res.ReleaseMemory(e.texture.SizeBytes())
		c.drv.Free(e.texture)
	}
	c.textures, c.trans1D, c.trans2D = nil, nil, nil
}
