// Package picture turns fetched image bytes into rasters the printer can
// print.
package picture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/nixxel-company-limited/escpos-feed-printer/dither"
)

// DefaultWidth is the printable width of a 58mm head, in dots.
const DefaultWidth = 384

// ErrImageProcessing wraps every failure between fetch and staging.
var ErrImageProcessing = errors.New("image processing failed")

// Decode decodes any registered image format, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrImageProcessing, err)
	}
	return img, nil
}

// Fit flattens transparency onto white paper and scales img down to at
// most maxWidth dots wide, keeping its aspect ratio. Narrower images keep
// their size.
func Fit(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	paper := imaging.New(b.Dx(), b.Dy(), color.White)
	flat := imaging.Overlay(paper, img, image.Pt(0, 0), 1.0)

	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return flat
	}
	return imaging.Resize(flat, maxWidth, 0, imaging.Lanczos)
}

// Prepare decodes data, fits it to maxWidth and halftones it.
func Prepare(data []byte, maxWidth int) (*image.Gray, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrImageProcessing)
	}
	return dither.Dither(Fit(img, maxWidth)), nil
}
