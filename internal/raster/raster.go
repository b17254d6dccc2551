// Package raster serves image series stored as GeoTIFF files through the
// coverage.Provider interface.
package raster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/model"
)

var (
	ErrInvalidRaster = errors.New("invalid raster")
	ErrNoImages      = errors.New("series has no images")
)

// Header describes the layout of a raster file. GeoTransform follows the
// GDAL convention: x = gt[0] + col*gt[1] + row*gt[2], y = gt[3] + col*gt[4] + row*gt[5].
type Header struct {
	GeoTransform  [6]float64
	Width, Height int
	Bands         int
	// NoData holds the fill value of each band, NaN when the band has none.
	NoData []float64
	// Geographic is false for projected coordinate systems.
	Geographic bool
}

// FileReader reads every band of a raster file as float32.
type FileReader func(path string) (Header, [][]float32, error)

// GridFromBands turns band buffers into a coverage grid. Fill values become
// NaN and south-up rasters are flipped. Rotated or projected rasters cannot
// be used and return coverage.ErrCannotReproject.
func GridFromBands(h Header, bands [][]float32) (*coverage.Grid, error) {
	if !h.Geographic {
		return nil, fmt.Errorf("%w: raster is not in geographic coordinates", coverage.ErrCannotReproject)
	}
	gt := h.GeoTransform
	if gt[2] != 0 || gt[4] != 0 {
		return nil, fmt.Errorf("%w: rotated raster", coverage.ErrCannotReproject)
	}
	if h.Width <= 0 || h.Height <= 0 || gt[1] <= 0 || gt[5] == 0 {
		return nil, fmt.Errorf("%w: %dx%d cells of %vx%v", ErrInvalidRaster, h.Width, h.Height, gt[1], gt[5])
	}
	if len(bands) != h.Bands {
		return nil, fmt.Errorf("%w: header declares %d bands, got %d", ErrInvalidRaster, h.Bands, len(bands))
	}

	north, southUp := gt[3], gt[5] > 0
	if southUp {
		north = gt[3] + float64(h.Height)*gt[5]
	}
	g := coverage.NewGrid(gt[0], north, gt[1], math.Abs(gt[5]), h.Width, h.Height, h.Bands)
	for b, buf := range bands {
		if len(buf) != h.Width*h.Height {
			return nil, fmt.Errorf("%w: band %d holds %d values, want %d", ErrInvalidRaster, b, len(buf), h.Width*h.Height)
		}
		nodata := math.NaN()
		if b < len(h.NoData) {
			nodata = h.NoData[b]
		}
		for row := 0; row < h.Height; row++ {
			src := row
			if southUp {
				src = h.Height - 1 - row
			}
			for col := 0; col < h.Width; col++ {
				v := float64(buf[src*h.Width+col])
				if v == nodata {
					continue
				}
				g.Set(b, col, row, v)
			}
		}
	}
	return g, nil
}

// Provider opens the images a catalog lists for a series.
type Provider struct {
	images catalog.Reader
	root   string
	read   FileReader
	log    logging.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithRoot resolves relative image paths against dir.
func WithRoot(dir string) Option {
	return func(p *Provider) {
		p.root = dir
	}
}

// WithFileReader replaces the GDAL reader.
func WithFileReader(r FileReader) Option {
	return func(p *Provider) {
		if r != nil {
			p.read = r
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProvider returns a provider reading GeoTIFF files with GDAL.
func NewProvider(images catalog.Reader, opts ...Option) *Provider {
	p := &Provider{images: images, read: ReadGeoTIFF, log: logging.Noop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ coverage.Provider = (*Provider)(nil)

// Open implements coverage.Provider. The first image is read immediately
// to learn the band count; the others are read on first use.
func (p *Provider) Open(ctx context.Context, series *model.Series, op *model.Operation) (coverage.Coverage, error) {
	images, err := p.images.Images(ctx, series.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", coverage.ErrUnknownSeries, series.Name, err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, series.Name)
	}

	times := make([]time.Time, len(images))
	paths := make([]string, len(images))
	for i, img := range images {
		times[i] = img.Time
		paths[i] = img.Path
		if p.root != "" && !filepath.IsAbs(img.Path) {
			paths[i] = filepath.Join(p.root, img.Path)
		}
	}

	first, err := p.load(paths[0])
	if err != nil {
		return nil, err
	}
	src := coverage.NewSource(series.Name, times, first.Bands, func(ctx context.Context, i int) (*coverage.Grid, error) {
		if i == 0 {
			return first, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.log.Debug(ctx, "reading raster", logging.String("series", series.Name), logging.String("path", paths[i]))
		return p.load(paths[i])
	})
	src, err = src.WithOperation(op)
	if err != nil {
		return nil, err
	}
	p.log.Info(ctx, "series opened",
		logging.String("series", series.Name),
		logging.String("operation", op.Key()),
		logging.Int("images", len(images)),
		logging.Int("bands", first.Bands),
	)
	return coverage.NewGridCoverage3D(src), nil
}

func (p *Provider) load(path string) (*coverage.Grid, error) {
	h, bands, err := p.read(path)
	if err != nil {
		return nil, err
	}
	g, err := GridFromBands(h, bands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
