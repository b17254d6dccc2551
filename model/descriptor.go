package model

import (
	"fmt"
	"math"
	"strings"
)

// IdentityName is the name of the descriptor that always evaluates to 1.
const IdentityName = "①"

// Distribution describes how a raw descriptor value is normalized before
// it enters a linear model.
type Distribution string

const (
	DistributionNormal    Distribution = "normal"
	DistributionLogNormal Distribution = "lognormal"
	DistributionAmplitude Distribution = "amplitude"
)

// ParseDistribution maps a catalog name to a Distribution. The empty
// string means normal.
func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return DistributionNormal, nil
	case "lognormal", "log-normal":
		return DistributionLogNormal, nil
	case "amplitude":
		return DistributionAmplitude, nil
	default:
		return "", fmt.Errorf("%w: unknown distribution %q", ErrInvalidParameter, s)
	}
}

// Normalize maps a raw value. Invalid inputs yield NaN.
func (d Distribution) Normalize(v float64) float64 {
	switch d {
	case DistributionLogNormal:
		if v <= 0 {
			return math.NaN()
		}
		return math.Log(v)
	case DistributionAmplitude:
		return math.Sqrt(math.Abs(v))
	default:
		return v
	}
}

// Descriptor is a source parameter observed at a relative position after
// an operation, then normalized.
type Descriptor struct {
	ID           int64
	Name         string
	Parameter    *Parameter
	Position     *RelativePosition
	Operation    *Operation
	Distribution Distribution
	// Band overrides the parameter band when set.
	Band *int
}

// Identity returns the constant descriptor.
func Identity() *Descriptor {
	return &Descriptor{Name: IdentityName}
}

// IsIdentity reports whether the descriptor always evaluates to 1.
func (d *Descriptor) IsIdentity() bool {
	return d == nil || d.Parameter == nil
}

// SourceBand is the band of the source series read for this descriptor.
func (d *Descriptor) SourceBand() int {
	if d.Band != nil {
		return *d.Band
	}
	if d.Parameter == nil {
		return 0
	}
	return d.Parameter.Band
}

// Normalize applies the descriptor distribution.
func (d *Descriptor) Normalize(v float64) float64 {
	if d == nil {
		return v
	}
	return d.Distribution.Normalize(v)
}
