// Package dither reduces continuous-tone images to the two levels a thermal
// print head can render.
package dither

import (
	"image"
	"image/draw"
)

// Threshold splits accumulated grey values into black (below) and white.
const Threshold = 128

// Greyscale converts img to one byte per pixel. The result's bounds start
// at the origin.
func Greyscale(img image.Image) *image.Gray {
	b := img.Bounds()
	grey := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(grey, grey.Bounds(), img, b.Min, draw.Src)
	return grey
}

// FloydSteinberg halftones src with Floyd–Steinberg error diffusion and
// returns a raster of the same size holding only 0 and 255. The scan runs
// top to bottom, left to right; quantisation error is pushed into the
// unvisited neighbours of the working buffer (7/16 right, 3/16 below-left,
// 5/16 below, 1/16 below-right). Neighbours outside the raster are dropped.
// src is not modified.
func FloydSteinberg(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	// Diffused error can push values past 0..255, so work in signed ints.
	acc := make([]int32, w*h)
	for y := 0; y < h; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x, v := range src.Pix[off : off+w] {
			acc[y*w+x] = int32(v)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			old := acc[i]
			var level int32
			if old >= Threshold {
				level = 255
			}
			out.Pix[y*out.Stride+x] = uint8(level)

			// Integer division truncates toward zero.
			e := old - level
			if e == 0 {
				continue
			}
			if x+1 < w {
				acc[i+1] += e * 7 / 16
			}
			if y+1 < h {
				if x > 0 {
					acc[i+w-1] += e * 3 / 16
				}
				acc[i+w] += e * 5 / 16
				if x+1 < w {
					acc[i+w+1] += e * 1 / 16
				}
			}
		}
	}
	return out
}

// Dither converts img to greyscale and halftones it.
func Dither(img image.Image) *image.Gray {
	return FloydSteinberg(Greyscale(img))
}

// IsBinary reports whether every pixel of img is 0 or 255.
func IsBinary(img *image.Gray) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if v := img.GrayAt(x, y).Y; v != 0 && v != 255 {
				return false
			}
		}
	}
	return true
}
