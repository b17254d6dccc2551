package core

import (
	"math"

	"github.com/desruisseaux/Seagis-sub004/model"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// GeodeticTrajectory is the path of a mobile object on the Earth surface.
// Points are kept in single precision radians; the last point is the
// current location. Movements are computed in a Mercator projection
// centred on the current location and rebuilt on every step.
//
// A GeodeticTrajectory is not safe for concurrent use.
type GeodeticTrajectory struct {
	coords []float32 // lon, lat pairs
	// bearing is in radians, counter-clockwise from east.
	bearing float64

	minLon, minLat float32
	maxLon, maxLat float32
}

// NewGeodeticTrajectory returns an empty trajectory heading east.
func NewGeodeticTrajectory() *GeodeticTrajectory {
	return &GeodeticTrajectory{}
}

// Len is the number of recorded points.
func (g *GeodeticTrajectory) Len() int {
	return len(g.coords) / 2
}

// SetLocation appends p as the new current location.
func (g *GeodeticTrajectory) SetLocation(p model.GeoPoint) {
	g.append(float32(p.Lon*degToRad), float32(p.Lat*degToRad))
}

// Location returns the current location, or false when nothing was set yet.
func (g *GeodeticTrajectory) Location() (model.GeoPoint, bool) {
	n := len(g.coords)
	if n == 0 {
		return model.GeoPoint{}, false
	}
	return toGeoPoint(g.coords[n-2], g.coords[n-1]), true
}

// Bearing returns the heading in degrees, counter-clockwise from east.
func (g *GeodeticTrajectory) Bearing() float64 {
	return g.bearing * radToDeg
}

// Rotate turns the heading clockwise by angle degrees.
func (g *GeodeticTrajectory) Rotate(angle float64) {
	g.bearing -= angle * degToRad
}

// Move advances distance metres along the current bearing. It does
// nothing when there is no current location.
func (g *GeodeticTrajectory) Move(distance float64) {
	proj, ok := g.projection()
	if !ok {
		return
	}
	lon, lat := proj.unproject(distance*math.Cos(g.bearing), distance*math.Sin(g.bearing))
	g.append(float32(lon), float32(lat))
}

// MoveToward advances up to distance metres toward target and reports
// whether target was reached. The bearing is always turned toward target,
// even when the step lands exactly on it.
func (g *GeodeticTrajectory) MoveToward(distance float64, target model.GeoPoint) bool {
	proj, ok := g.projection()
	if !ok {
		return false
	}
	// Project the stored precision so that a target equal to the current
	// location is at distance zero.
	tlon, tlat := float32(target.Lon*degToRad), float32(target.Lat*degToRad)
	tx, ty := proj.project(float64(tlon), float64(tlat))
	g.bearing = math.Atan2(ty, tx)
	if distance >= math.Hypot(tx, ty) {
		g.append(tlon, tlat)
		return true
	}
	lon, lat := proj.unproject(distance*math.Cos(g.bearing), distance*math.Sin(g.bearing))
	g.append(float32(lon), float32(lat))
	return false
}

// RelativeToGeographic converts a rectangle in metres relative to the
// current location (x east, y north) into decimal degrees. It reports false
// when there is no current location.
func (g *GeodeticTrajectory) RelativeToGeographic(r Rect) (Rect, bool) {
	proj, ok := g.projection()
	if !ok {
		return Rect{}, false
	}
	out := Rect{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, c := range r.Corners() {
		lon, lat := proj.unproject(c[0], c[1])
		lon *= radToDeg
		lat *= radToDeg
		out.MinX = math.Min(out.MinX, lon)
		out.MaxX = math.Max(out.MaxX, lon)
		out.MinY = math.Min(out.MinY, lat)
		out.MaxY = math.Max(out.MaxY, lat)
	}
	return out, true
}

// Points returns the path in decimal degrees, oldest first.
func (g *GeodeticTrajectory) Points() []model.GeoPoint {
	pts := make([]model.GeoPoint, 0, g.Len())
	for i := 0; i+1 < len(g.coords); i += 2 {
		pts = append(pts, toGeoPoint(g.coords[i], g.coords[i+1]))
	}
	return pts
}

// Bounds returns the bounding box of the path in decimal degrees. The
// rectangle is empty when no point was recorded.
func (g *GeodeticTrajectory) Bounds() Rect {
	if len(g.coords) == 0 {
		return Rect{MinX: 0, MinY: 0, MaxX: -1, MaxY: -1}
	}
	return Rect{
		MinX: float64(g.minLon) * radToDeg,
		MinY: float64(g.minLat) * radToDeg,
		MaxX: float64(g.maxLon) * radToDeg,
		MaxY: float64(g.maxLat) * radToDeg,
	}
}

func (g *GeodeticTrajectory) projection() (localMercator, bool) {
	n := len(g.coords)
	if n == 0 {
		return localMercator{}, false
	}
	return newLocalMercator(float64(g.coords[n-2]), float64(g.coords[n-1])), true
}

func (g *GeodeticTrajectory) append(lon, lat float32) {
	if len(g.coords) == 0 {
		g.minLon, g.maxLon = lon, lon
		g.minLat, g.maxLat = lat, lat
	} else {
		g.minLon = min(g.minLon, lon)
		g.maxLon = max(g.maxLon, lon)
		g.minLat = min(g.minLat, lat)
		g.maxLat = max(g.maxLat, lat)
	}
	g.coords = append(g.coords, lon, lat)
}

func toGeoPoint(lon, lat float32) model.GeoPoint {
	return model.GeoPoint{Lon: float64(lon) * radToDeg, Lat: float64(lat) * radToDeg}
}
