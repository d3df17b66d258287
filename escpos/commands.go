// Package escpos encodes print jobs into the ESC/POS command stream
// understood by receipt printers.
package escpos

import (
	"fmt"
	"image"

	"golang.org/x/text/encoding/charmap"
)

// Control bytes
const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

// Font selects one of the printer's resident fonts (ESC M n).
type Font byte

const (
	FontA Font = 0
	FontB Font = 1
)

// Align is the justification set by ESC a n.
type Align byte

const (
	AlignLeft   Align = 0
	AlignCenter Align = 1
	AlignRight  Align = 2
)

// Density is the GS v 0 raster mode byte.
type Density byte

const (
	DensityNormal       Density = 0
	DensityDoubleWidth  Density = 1
	DensityDoubleHeight Density = 2
	DensityQuadruple    Density = 3
)

// Directive is one step of a print job.
type Directive interface {
	// Append appends the directive's ESC/POS encoding to b.
	Append(b []byte) ([]byte, error)
}

// Initialize resets the printer (ESC @).
type Initialize struct{}

func (Initialize) Append(b []byte) ([]byte, error) {
	return append(b, esc, '@'), nil
}

// SetFont selects a font (ESC M n).
type SetFont struct{ Font Font }

func (d SetFont) Append(b []byte) ([]byte, error) {
	return append(b, esc, 'M', byte(d.Font)), nil
}

// SetAlign sets justification (ESC a n).
type SetAlign struct{ Align Align }

func (d SetAlign) Append(b []byte) ([]byte, error) {
	return append(b, esc, 'a', byte(d.Align)), nil
}

// SetBold toggles emphasized mode (ESC E n).
type SetBold struct{ On bool }

func (d SetBold) Append(b []byte) ([]byte, error) {
	var n byte
	if d.On {
		n = 1
	}
	return append(b, esc, 'E', n), nil
}

// SetSize sets the character scale (GS ! n). Width and Height are 1..8.
type SetSize struct{ Width, Height int }

func (d SetSize) Append(b []byte) ([]byte, error) {
	if d.Width < 1 || d.Width > 8 || d.Height < 1 || d.Height > 8 {
		return b, fmt.Errorf("character size %dx%d out of range", d.Width, d.Height)
	}
	n := byte(d.Width-1)<<4 | byte(d.Height-1)
	return append(b, gs, '!', n), nil
}

// Text prints one line. The text is transcoded to code page 437, the
// printer's power-on table. Control characters, including line breaks,
// become spaces so the line cannot carry commands of its own; runes the
// code page lacks become '?'.
type Text struct{ Line string }

func (d Text) Append(b []byte) ([]byte, error) {
	for _, r := range d.Line {
		b = append(b, encodeRune(r))
	}
	return append(b, lf), nil
}

func encodeRune(r rune) byte {
	if isControl(r) {
		return ' '
	}
	if c, ok := charmap.CodePage437.EncodeRune(r); ok {
		return c
	}
	return '?'
}

// isControl reports C0 and C1 control characters and DEL.
func isControl(r rune) bool {
	return r < 0x20 || (r >= 0x7F && r <= 0x9F)
}

// Feed advances the paper by one line.
type Feed struct{}

func (Feed) Append(b []byte) ([]byte, error) {
	return append(b, lf), nil
}

// Cut feeds to the cutter and performs a full cut (GS V A 0).
type Cut struct{}

func (Cut) Append(b []byte) ([]byte, error) {
	return append(b, gs, 'V', 'A', 0), nil
}

// Image prints a binary raster with GS v 0. Pixels with value 0 are
// printed as black dots; anything else is left blank.
type Image struct {
	Raster  *image.Gray
	Density Density
}

func (d Image) Append(b []byte) ([]byte, error) {
	if d.Raster == nil {
		return b, fmt.Errorf("image directive without raster")
	}
	bounds := d.Raster.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return b, fmt.Errorf("empty raster %dx%d", width, height)
	}
	widthBytes := (width + 7) >> 3
	if widthBytes > 0xFFFF || height > 0xFFFF {
		return b, fmt.Errorf("raster %dx%d too large", width, height)
	}

	b = append(b, gs, 'v', '0', byte(d.Density))
	b = append(b, intLowHigh(widthBytes)...)
	b = append(b, intLowHigh(height)...)
	return append(b, PackRaster(d.Raster)...), nil
}

// intLowHigh encodes n as the two-byte little-endian pair ESC/POS uses
// for dimensions.
func intLowHigh(n int) []byte {
	return []byte{byte(n), byte(n >> 8)}
}

// PackRaster packs a raster into rows of MSB-first bits, one bit per pixel,
// a set bit meaning a printed (black) dot. Rows are padded to whole bytes.
func PackRaster(img *image.Gray) []byte {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	stride := (width + 7) >> 3
	data := make([]byte, stride*height)

	for y := 0; y < height; y++ {
		off := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		row := img.Pix[off : off+width]
		for x, v := range row {
			if v == 0 {
				data[y*stride+x>>3] |= 0x80 >> (x & 7)
			}
		}
	}
	return data
}
