// Package coverage evaluates gridded environmental fields in space and time
// and caches the handles opened for each series.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

var (
	// ErrPointOutsideCoverage is the expected condition raised when no data
	// exists at the requested place and time.
	ErrPointOutsideCoverage = errors.New("point outside coverage")
	// ErrCannotReproject reports a coordinate system mismatch. It is never
	// retried.
	ErrCannotReproject  = errors.New("cannot reproject")
	ErrUnknownSeries    = errors.New("unknown series")
	ErrUnknownOperation = errors.New("unknown operation")
)

// PointOutsideError carries the coverage and coordinates of an
// outside-coverage condition. It matches ErrPointOutsideCoverage.
type PointOutsideError struct {
	Coverage string
	Point    model.GeoPoint
	Time     time.Time
}

func (e *PointOutsideError) Error() string {
	return fmt.Sprintf("%s: %s at %s (%s)", ErrPointOutsideCoverage, e.Point, e.Time.Format(time.RFC3339), e.Coverage)
}

func (e *PointOutsideError) Unwrap() error { return ErrPointOutsideCoverage }

// IsOutside reports whether err is an outside-coverage condition.
func IsOutside(err error) bool {
	return errors.Is(err, ErrPointOutsideCoverage)
}

// OutsideCoverageName returns the name of the coverage that raised err, or
// the empty string when err does not carry one.
func OutsideCoverageName(err error) string {
	var pe *PointOutsideError
	if errors.As(err, &pe) {
		return pe.Coverage
	}
	return ""
}

// Coverage is a function from (point, time) to one value per band.
// Implementations return an error matching ErrPointOutsideCoverage when no
// data exists there, and NaN for bands that are missing (e.g. clouds).
type Coverage interface {
	Name() string
	NumBands() int
	Evaluate(ctx context.Context, p model.GeoPoint, t time.Time) ([]float64, error)
}

// SampleAwareCoverage can evaluate a whole sample, for instance by
// integrating along a longline set instead of reading a single point.
type SampleAwareCoverage interface {
	Coverage
	EvaluateSample(ctx context.Context, s *model.Sample, pos *model.RelativePosition) ([]float64, error)
}

// Cloneable coverages produce a new handle that shares the underlying data
// but keeps its own read state.
type Cloneable interface {
	Clone() Coverage
}

// Provider opens a coverage for a series with an operation applied.
// A nil operation means the raw images.
type Provider interface {
	Open(ctx context.Context, series *model.Series, op *model.Operation) (Coverage, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, series *model.Series, op *model.Operation) (Coverage, error)

// Open calls f.
func (f ProviderFunc) Open(ctx context.Context, series *model.Series, op *model.Operation) (Coverage, error) {
	return f(ctx, series, op)
}
