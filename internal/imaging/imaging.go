// Package imaging decodes image files into RGBA8 pixel data for 2D texture
// upload. BMP, PNG, and JPEG are supported.
package imaging

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	// Registered decoders.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// Decode reads the image file at path and returns its dimensions and pixels
// converted to tightly packed RGBA8.
func Decode(path string) (width, height uint32, rgba []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)

	// NRGBA's stride equals 4*w for a rect anchored at the origin, so Pix
	// is already tightly packed.
	return uint32(w), uint32(h), nrgba.Pix, nil
}
