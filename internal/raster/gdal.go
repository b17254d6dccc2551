package raster

import (
	"fmt"
	"math"

	"github.com/lukeroth/gdal"
)

// ReadGeoTIFF reads every band of a GDAL-readable raster as float32.
func ReadGeoTIFF(path string) (Header, [][]float32, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: open %s: %v", ErrInvalidRaster, path, err)
	}
	defer ds.Close()

	h := Header{
		GeoTransform: ds.GeoTransform(),
		Width:        ds.RasterXSize(),
		Height:       ds.RasterYSize(),
		Bands:        ds.RasterCount(),
		Geographic:   true,
	}
	// a raster without a coordinate system is taken as geographic
	if wkt := ds.Projection(); wkt != "" {
		ref := gdal.CreateSpatialReference(wkt)
		h.Geographic = ref.IsGeographic()
		ref.Destroy()
	}

	h.NoData = make([]float64, h.Bands)
	bands := make([][]float32, h.Bands)
	for b := 0; b < h.Bands; b++ {
		band := ds.RasterBand(b + 1)
		h.NoData[b] = math.NaN()
		if v, ok := band.NoDataValue(); ok {
			h.NoData[b] = float64(float32(v))
		}
		buf := make([]float32, h.Width*h.Height)
		if err := band.IO(gdal.Read, 0, 0, h.Width, h.Height, buf, h.Width, h.Height, 0, 0); err != nil {
			return Header{}, nil, fmt.Errorf("%w: read %s band %d: %v", ErrInvalidRaster, path, b+1, err)
		}
		bands[b] = buf
	}
	return h, bands, nil
}
