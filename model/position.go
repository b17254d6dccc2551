package model

import (
	"math"
	"time"
)

// RelativePosition shifts an observation point in space and time, for
// instance "five days before the catch, same place".
type RelativePosition struct {
	ID   int64
	Name string
	// TimeOffset is added to the sample time.
	TimeOffset time.Duration
	// DLon and DLat are added to the sample coordinates, in degrees.
	DLon float64
	DLat float64
	// Default marks the positions filled when none are requested explicitly.
	Default bool
}

// Apply returns the position and time obtained by shifting (p, t).
// A nil receiver leaves them unchanged.
func (r *RelativePosition) Apply(p GeoPoint, t time.Time) (GeoPoint, time.Time) {
	if r == nil {
		return p, t
	}
	return GeoPoint{Lon: p.Lon + r.DLon, Lat: p.Lat + r.DLat}, t.Add(r.TimeOffset)
}

// Reverse undoes Apply.
func (r *RelativePosition) Reverse(p GeoPoint, t time.Time) (GeoPoint, time.Time) {
	if r == nil {
		return p, t
	}
	return GeoPoint{Lon: p.Lon - r.DLon, Lat: p.Lat - r.DLat}, t.Add(-r.TimeOffset)
}

// Offset returns the exact time offset, zero for a nil receiver.
func (r *RelativePosition) Offset() time.Duration {
	if r == nil {
		return 0
	}
	return r.TimeOffset
}

// TypicalTimeOffset is the offset rounded to whole days. It only orders
// work; evaluations always use the exact offset.
func (r *RelativePosition) TypicalTimeOffset() time.Duration {
	if r == nil {
		return 0
	}
	days := math.Round(r.TimeOffset.Hours() / 24)
	return time.Duration(days) * 24 * time.Hour
}
