package model

import "time"

// Sample is one fishery observation: a catch at a place and time.
type Sample struct {
	ID      int64
	Species string
	Point   GeoPoint
	// End is the end point of a longline set, when known.
	End   *GeoPoint
	Time  time.Time
	Catch float64
}
