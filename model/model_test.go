package model

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDistributionNormalize(t *testing.T) {
	tests := []struct {
		name string
		d    Distribution
		in   float64
		want float64
	}{
		{"normal", DistributionNormal, -3, -3},
		{"lognormal", DistributionLogNormal, math.E, 1},
		{"lognormal non-positive", DistributionLogNormal, 0, math.NaN()},
		{"amplitude", DistributionAmplitude, -4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.d.Normalize(tt.in)
			if math.IsNaN(tt.want) {
				if !math.IsNaN(got) {
					t.Fatalf("expected NaN, got %v", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := ParseDistribution("gamma"); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if d, err := ParseDistribution(" Log-Normal "); err != nil || d != DistributionLogNormal {
		t.Fatalf("expected lognormal, got %v %v", d, err)
	}
}

func TestParameterValidate(t *testing.T) {
	sst := &Parameter{Name: "SST", Series: []*Series{{Name: "SST"}}}
	derived := &Parameter{Name: "PP", Model: []*LinearModelTerm{{Coefficient: 2}}}

	tests := []struct {
		name string
		p    *Parameter
		ok   bool
	}{
		{"direct", sst, true},
		{"derived", &Parameter{Name: "PP", Model: []*LinearModelTerm{
			{Coefficient: 0.5},
			{Coefficient: 1.5, Descriptors: []*Descriptor{{Name: "sst", Parameter: sst}, Identity()}},
		}}, true},
		{"no name", &Parameter{Series: sst.Series}, false},
		{"no series", &Parameter{Name: "SST"}, false},
		{"negative band", &Parameter{Name: "SST", Series: sst.Series, Band: -1}, false},
		{"non-finite coefficient", &Parameter{Name: "PP", Model: []*LinearModelTerm{{Coefficient: math.Inf(1)}}}, false},
		{"nested derived", &Parameter{Name: "PP2", Model: []*LinearModelTerm{
			{Coefficient: 1, Descriptors: []*Descriptor{{Name: "pp", Parameter: derived}}},
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestDescriptorsDeduplicated(t *testing.T) {
	sst := &Parameter{Name: "SST", Series: []*Series{{Name: "SST"}}}
	d := &Descriptor{Name: "sst", Parameter: sst}
	p := &Parameter{Name: "PP", Model: []*LinearModelTerm{
		{Coefficient: 1, Descriptors: []*Descriptor{d}},
		{Coefficient: 2, Descriptors: []*Descriptor{d, d}},
	}}
	if got := p.Descriptors(); len(got) != 1 || got[0] != d {
		t.Fatalf("expected one shared descriptor, got %v", got)
	}
}

func TestRelativePosition(t *testing.T) {
	t0 := time.Date(2002, 1, 10, 0, 0, 0, 0, time.UTC)
	r := &RelativePosition{Name: "t-5", TimeOffset: -5*24*time.Hour - 3*time.Hour, DLon: 0.5}

	p, at := r.Apply(GeoPoint{Lon: 55, Lat: -20}, t0)
	if p != (GeoPoint{Lon: 55.5, Lat: -20}) || !at.Equal(t0.Add(r.TimeOffset)) {
		t.Fatalf("unexpected Apply result %v %v", p, at)
	}
	if back, bt := r.Reverse(p, at); back != (GeoPoint{Lon: 55, Lat: -20}) || !bt.Equal(t0) {
		t.Fatalf("Reverse did not undo Apply: %v %v", back, bt)
	}
	if got := r.TypicalTimeOffset(); got != -5*24*time.Hour {
		t.Fatalf("expected -5 days, got %v", got)
	}

	var none *RelativePosition
	if got, gt := none.Apply(p, t0); got != p || !gt.Equal(t0) || none.Offset() != 0 {
		t.Fatalf("nil position should leave inputs unchanged")
	}
}

func TestOperationKey(t *testing.T) {
	var identity *Operation
	if identity.Key() != "" {
		t.Fatalf("expected empty key for the identity operation")
	}
	if got := (&Operation{Name: OperationSobel}).Key(); got != "Sobel" {
		t.Fatalf("unexpected key %q", got)
	}
	op := &Operation{Name: OperationNodataFilter, Parameters: map[string]string{"max": "30", "min": "-2"}}
	if got := op.Key(); got != "NodataFilter{max=30,min=-2}" {
		t.Fatalf("unexpected key %q", got)
	}
	if OperationName(op) != OperationNodataFilter || OperationName(nil) != "" {
		t.Fatalf("unexpected operation names")
	}
}

func TestDescriptorSourceBand(t *testing.T) {
	uv := &Parameter{Name: "wind", Series: []*Series{{Name: "QuikSCAT"}}, Band: 1}
	zero := 0
	tests := []struct {
		name string
		d    *Descriptor
		want int
	}{
		{"parameter band", &Descriptor{Name: "V", Parameter: uv}, 1},
		{"explicit band 0", &Descriptor{Name: "U", Parameter: uv, Band: &zero}, 0},
		{"no parameter", Identity(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.SourceBand(); got != tt.want {
				t.Fatalf("SourceBand() = %d, want %d", got, tt.want)
			}
		})
	}
}
