package picture

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Stager writes processed rasters as PNG files to a private scratch
// directory and reads them back for printing.
type Stager struct {
	dir string
	seq atomic.Uint64
}

// NewStager creates a scratch directory under parent (the OS temp dir when
// parent is empty).
func NewStager(parent string) (*Stager, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o700); err != nil {
			return nil, err
		}
	}
	dir, err := os.MkdirTemp(parent, "feedprinter-")
	if err != nil {
		return nil, err
	}
	return &Stager{dir: dir}, nil
}

// Dir returns the scratch directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage encodes raster as PNG and returns the file path.
func (s *Stager) Stage(raster *image.Gray) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("image-%06d.png", s.seq.Add(1)))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: stage: %w", ErrImageProcessing, err)
	}
	if err := png.Encode(f, raster); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: encode: %w", ErrImageProcessing, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: stage: %w", ErrImageProcessing, err)
	}
	return path, nil
}

// Load reads a staged PNG back as a greyscale raster.
func Load(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrImageProcessing, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrImageProcessing, err)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g, nil
}

// Close removes the scratch directory and everything staged in it.
func (s *Stager) Close() error {
	return os.RemoveAll(s.dir)
}
