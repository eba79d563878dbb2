package chart

import "image"

// Raster is a read-only pixel grid queried by the bar scanner.
// Coordinates outside the grid are never dark.
type Raster interface {
	IsDark(x, y int) bool
}

// ImageRaster classifies pixels of a decoded image.
// A pixel is dark unless its red, green and blue channels are all at or above
// the threshold.
type ImageRaster struct {
	img       image.Image
	bounds    image.Rectangle
	threshold uint8
}

// NewImageRaster wraps a fully decoded image
func NewImageRaster(img image.Image, threshold uint8) *ImageRaster {
	return &ImageRaster{
		img:       img,
		bounds:    img.Bounds(),
		threshold: threshold,
	}
}

// IsDark reports whether the pixel at (x, y) is not near-white
func (r *ImageRaster) IsDark(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(r.bounds) {
		return false
	}

	cr, cg, cb, _ := r.img.At(x, y).RGBA()
	t := uint32(r.threshold)
	return cr>>8 < t || cg>>8 < t || cb>>8 < t
}

// Bounds returns the pixel bounds of the underlying image
func (r *ImageRaster) Bounds() image.Rectangle {
	return r.bounds
}
