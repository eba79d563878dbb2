package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxImagePixels guards against decompression bombs (about 12k x 8k)
const maxImagePixels = 100_000_000

// LoadedImage is a fully decoded page ready for OCR and bar scanning.
// Image and OCRImage share one coordinate system.
type LoadedImage struct {
	Image    *image.NRGBA // upright, flattened onto white
	Format   string
	OCRImage []byte // grayscale PNG handed to the OCR engine
}

// Width returns the pixel width of the page
func (l *LoadedImage) Width() int { return l.Image.Bounds().Dx() }

// Height returns the pixel height of the page
func (l *LoadedImage) Height() int { return l.Image.Bounds().Dy() }

// DecodeImage decodes a photographed or scanned page.
// EXIF orientation is applied so that word boxes and pixels line up the way
// the bill is read, and transparency is flattened onto white so that empty
// areas never read as dark.
func DecodeImage(data []byte) (*LoadedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > maxImagePixels {
		return nil, fmt.Errorf("image too large: %dx%d pixels", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
	}

	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat := imaging.Overlay(background, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Grayscale(flat), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode OCR image: %w", err)
	}

	return &LoadedImage{
		Image:    flat,
		Format:   format,
		OCRImage: buf.Bytes(),
	}, nil
}
