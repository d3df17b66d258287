package dither

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*255/w + y*7) % 256)})
		}
	}
	return img
}

func whiteFraction(img *image.Gray) float64 {
	white := 0
	for _, v := range img.Pix {
		if v == 255 {
			white++
		}
	}
	return float64(white) / float64(len(img.Pix))
}

func TestThresholdWithoutError(t *testing.T) {
	testCases := []struct {
		in   uint8
		want uint8
	}{
		{0, 0},
		{1, 0},
		{127, 0},
		{128, 255},
		{200, 255},
		{255, 255},
	}

	for _, tc := range testCases {
		out := FloydSteinberg(uniform(1, 1, tc.in))
		assert.Equal(t, tc.want, out.Pix[0], "input %d", tc.in)

		// The first pixel of a larger raster has no accumulated error either.
		big := uniform(4, 4, 255)
		big.Pix[0] = tc.in
		assert.Equal(t, tc.want, FloydSteinberg(big).Pix[0], "input %d at origin", tc.in)
	}
}

func TestUniformExtremes(t *testing.T) {
	black := FloydSteinberg(uniform(17, 9, 0))
	for _, v := range black.Pix {
		require.Equal(t, uint8(0), v)
	}

	white := FloydSteinberg(uniform(17, 9, 255))
	for _, v := range white.Pix {
		require.Equal(t, uint8(255), v)
	}
}

func TestKnownDiffusion(t *testing.T) {
	// 2x2 of grey 100: the origin goes black and pushes enough error right
	// to light its neighbour; the negative error from that keeps the rest
	// dark.
	out := FloydSteinberg(uniform(2, 2, 100))
	assert.Equal(t, []uint8{0, 255, 0, 0}, out.Pix)
}

func TestMidGreyDensity(t *testing.T) {
	testCases := []struct {
		grey uint8
		want float64
	}{
		{64, 0.25},
		{128, 0.5},
		{192, 0.75},
	}

	for _, tc := range testCases {
		out := FloydSteinberg(uniform(64, 64, tc.grey))
		assert.True(t, IsBinary(out))
		assert.InDelta(t, tc.want, whiteFraction(out), 0.05, "grey %d", tc.grey)
	}
}

func TestDeterministic(t *testing.T) {
	src := gradient(97, 41)
	orig := append([]uint8(nil), src.Pix...)

	a := FloydSteinberg(src)
	b := FloydSteinberg(src)

	assert.True(t, bytes.Equal(a.Pix, b.Pix))
	assert.Equal(t, orig, src.Pix, "source must not be modified")
	assert.Equal(t, src.Bounds(), a.Bounds())
	assert.True(t, IsBinary(a))
}

func TestSubImageMatchesCopy(t *testing.T) {
	src := gradient(32, 32)
	sub := src.SubImage(image.Rect(5, 7, 25, 30)).(*image.Gray)

	cp := image.NewGray(image.Rect(0, 0, 20, 23))
	for y := 0; y < 23; y++ {
		for x := 0; x < 20; x++ {
			cp.SetGray(x, y, src.GrayAt(x+5, y+7))
		}
	}

	assert.Equal(t, FloydSteinberg(cp).Pix, FloydSteinberg(sub).Pix)
}

func TestEmptyRaster(t *testing.T) {
	out := FloydSteinberg(image.NewGray(image.Rect(0, 0, 0, 5)))
	assert.Equal(t, 0, out.Bounds().Dx())
}

func TestGreyscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 12, 11))
	img.Set(10, 10, color.White)
	img.Set(11, 10, color.Black)

	grey := Greyscale(img)
	assert.Equal(t, image.Rect(0, 0, 2, 1), grey.Bounds())
	assert.Equal(t, []uint8{255, 0}, grey.Pix)
}

func TestDither(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	out := Dither(img)
	assert.Equal(t, []uint8{255, 255, 255, 255, 255, 255, 255, 255, 255}, out.Pix)
}

func TestNearExtremeGreysCollapse(t *testing.T) {
	// Diffusion steps truncate toward zero, so errors of magnitude 3 or
	// less never reach a neighbour.
	testCases := []struct {
		grey uint8
		want uint8
	}{
		{1, 0}, {2, 0}, {3, 0},
		{252, 255}, {253, 255}, {254, 255},
	}

	for _, tc := range testCases {
		out := FloydSteinberg(uniform(128, 128, tc.grey))
		assert.Equal(t, bytes.Repeat([]byte{tc.want}, 128*128), out.Pix, "grey %d", tc.grey)
	}

	out := FloydSteinberg(uniform(128, 128, 4))
	assert.Positive(t, bytes.Count(out.Pix, []byte{255}), "grey 4 should produce some white dots")
}
