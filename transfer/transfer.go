// Package transfer provides the transfer-function objects whose lookup
// tables back 1D and 2D transfer-function textures.
//
// Functions are plain RGBA8 tables. Ownership is transferred to the
// requester that obtained them from the cache; they carry no reference
// counting (see the cache's design notes on this asymmetry) and must be
// freed explicitly by their sole owner.
package transfer

// Function1D is a one-dimensional RGBA8 transfer function.
type Function1D struct {
	rgba []byte
}

// New1D creates a transfer function with size entries, initialized to a
// linear grayscale ramp with a matching opacity ramp.
func New1D(size int) *Function1D {
	f := &Function1D{rgba: make([]byte, 4*size)}
	for i := 0; i < size; i++ {
		v := byte(0)
		if size > 1 {
			v = byte(i * 255 / (size - 1))
		}
		f.Set(i, v, v, v, v)
	}
	return f
}

// Size returns the number of entries.
func (f *Function1D) Size() int { return len(f.rgba) / 4 }

// Bytes returns the RGBA8 table for texture upload. The slice aliases the
// function's storage; treat it as read-only.
func (f *Function1D) Bytes() []byte { return f.rgba }

// Set assigns entry i.
func (f *Function1D) Set(i int, r, g, b, a byte) {
	copy(f.rgba[4*i:], []byte{r, g, b, a})
}

// At returns entry i.
func (f *Function1D) At(i int) (r, g, b, a byte) {
	return f.rgba[4*i], f.rgba[4*i+1], f.rgba[4*i+2], f.rgba[4*i+3]
}

// Function2D is a two-dimensional RGBA8 transfer function, indexed by value
// and gradient magnitude.
type Function2D struct {
	width, height int
	rgba          []byte
}

// New2D creates a width×height transfer function initialized to zero
// (fully transparent).
func New2D(width, height int) *Function2D {
	return &Function2D{
		width:  width,
		height: height,
		rgba:   make([]byte, 4*width*height),
	}
}

// Width returns the table width.
func (f *Function2D) Width() int { return f.width }

// Height returns the table height.
func (f *Function2D) Height() int { return f.height }

// Bytes returns the RGBA8 table for texture upload. The slice aliases the
// function's storage; treat it as read-only.
func (f *Function2D) Bytes() []byte { return f.rgba }

// Set assigns the entry at (x, y).
func (f *Function2D) Set(x, y int, r, g, b, a byte) {
	copy(f.rgba[4*(y*f.width+x):], []byte{r, g, b, a})
}

// At returns the entry at (x, y).
func (f *Function2D) At(x, y int) (r, g, b, a byte) {
	i := 4 * (y*f.width + x)
	return f.rgba[i], f.rgba[i+1], f.rgba[i+2], f.rgba[i+3]
}
