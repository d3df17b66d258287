package picture

import (
	"context"
	"image"
	"os"

	"github.com/rs/zerolog"
)

// Pipeline fetches an image, halftones it at the printer's width and
// stages the result on disk.
type Pipeline struct {
	Fetcher *Fetcher
	Stager  *Stager
	Width   int
	Logger  zerolog.Logger
}

// Raster runs the pipeline for url and returns the staged raster, read
// back from its scratch file.
func (p *Pipeline) Raster(ctx context.Context, url string) (*image.Gray, error) {
	data, err := p.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	raster, err := Prepare(data, p.Width)
	if err != nil {
		return nil, err
	}

	path, err := p.Stager.Stage(raster)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	p.Logger.Debug().
		Str("path", path).
		Int("width", raster.Bounds().Dx()).
		Int("height", raster.Bounds().Dy()).
		Msg("image staged")

	return Load(path)
}
