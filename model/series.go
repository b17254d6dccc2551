package model

import "time"

// Series is a named collection of gridded images of one physical quantity
// (e.g. sea surface temperature), one image per acquisition time.
type Series struct {
	ID          int64
	Name        string
	Description string
	// Period is the nominal time between two consecutive images.
	Period time.Duration
}

// Image is one raster file of a series.
type Image struct {
	SeriesID int64
	Time     time.Time
	Path     string
}
