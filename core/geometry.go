package core

import (
	"image"
	"math"
)

// EarthRadiusM is the mean Earth radius used for local projections (metres).
const EarthRadiusM = 6371000.0

// Rect is an axis-aligned rectangle. Units depend on the caller: metres
// in a local projection, decimal degrees once reprojected.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.MaxX < r.MinX || r.MaxY < r.MinY
}

// Bounds returns the smallest integer rectangle enclosing r.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.MinX)), int(math.Floor(r.MinY)),
		int(math.Ceil(r.MaxX)), int(math.Ceil(r.MaxY)),
	)
}

// Corners returns the corners in counter-clockwise order from (MinX, MinY).
func (r Rect) Corners() [4][2]float64 {
	return [4][2]float64{
		{r.MinX, r.MinY},
		{r.MaxX, r.MinY},
		{r.MaxX, r.MaxY},
		{r.MinX, r.MaxY},
	}
}

// localMercator is a spherical Mercator projection whose origin is a given
// point and whose scale is true along the parallel of that point. Inputs and
// outputs of project/unproject are radians and metres.
type localMercator struct {
	lon0     float64
	scale    float64 // R * cos(lat0)
	northing float64 // ln(tan(π/4 + lat0/2))
}

func newLocalMercator(lon0, lat0 float64) localMercator {
	return localMercator{
		lon0:     lon0,
		scale:    EarthRadiusM * math.Cos(lat0),
		northing: mercatorY(lat0),
	}
}

func mercatorY(lat float64) float64 {
	return math.Log(math.Tan(math.Pi/4 + lat/2))
}

// project returns metres east and north of the origin.
func (m localMercator) project(lon, lat float64) (x, y float64) {
	dLon := lon - m.lon0
	// take the short way around the antimeridian
	if dLon > math.Pi {
		dLon -= 2 * math.Pi
	} else if dLon < -math.Pi {
		dLon += 2 * math.Pi
	}
	return m.scale * dLon, m.scale * (mercatorY(lat) - m.northing)
}

func (m localMercator) unproject(x, y float64) (lon, lat float64) {
	lon = m.lon0 + x/m.scale
	lat = 2*math.Atan(math.Exp(y/m.scale+m.northing)) - math.Pi/2
	if lon > math.Pi {
		lon -= 2 * math.Pi
	} else if lon < -math.Pi {
		lon += 2 * math.Pi
	}
	return lon, lat
}
