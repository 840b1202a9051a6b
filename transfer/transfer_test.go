package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunction1DRamp(t *testing.T) {
	f := New1D(256)
	require.Equal(t, 256, f.Size())
	require.Len(t, f.Bytes(), 4*256)

	r, g, b, a := f.At(0)
	assert.Equal(t, [4]byte{0, 0, 0, 0}, [4]byte{r, g, b, a})

	r, g, b, a = f.At(255)
	assert.Equal(t, [4]byte{255, 255, 255, 255}, [4]byte{r, g, b, a})

	f.Set(10, 1, 2, 3, 4)
	r, g, b, a = f.At(10)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, [4]byte{r, g, b, a})
}

func TestFunction1DSingleEntry(t *testing.T) {
	f := New1D(1)
	r, g, b, a := f.At(0)
	assert.Equal(t, [4]byte{0, 0, 0, 0}, [4]byte{r, g, b, a})
}

func TestFunction2D(t *testing.T) {
	f := New2D(8, 4)
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 4, f.Height())
	require.Len(t, f.Bytes(), 4*8*4)

	f.Set(7, 3, 9, 8, 7, 6)
	r, g, b, a := f.At(7, 3)
	assert.Equal(t, [4]byte{9, 8, 7, 6}, [4]byte{r, g, b, a})

	r, g, b, a = f.At(0, 0)
	assert.Equal(t, [4]byte{0, 0, 0, 0}, [4]byte{r, g, b, a})
}
