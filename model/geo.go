package model

import "fmt"

// GeoPoint is a geographic position in decimal degrees (WGS84).
type GeoPoint struct {
	Lon float64
	Lat float64
}

// String formats the point as "lon,lat".
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.4f,%.4f", p.Lon, p.Lat)
}

// Area is a geographic bounding box in decimal degrees.
type Area struct {
	West  float64 `validate:"gte=-180,lte=180"`
	East  float64 `validate:"gte=-180,lte=180,gtfield=West"`
	South float64 `validate:"gte=-90,lte=90"`
	North float64 `validate:"gte=-90,lte=90,gtfield=South"`
}

// Contains reports whether p lies inside the area, borders included.
func (a Area) Contains(p GeoPoint) bool {
	return p.Lon >= a.West && p.Lon <= a.East && p.Lat >= a.South && p.Lat <= a.North
}

// Center returns the middle of the area.
func (a Area) Center() GeoPoint {
	return GeoPoint{Lon: (a.West + a.East) / 2, Lat: (a.South + a.North) / 2}
}
