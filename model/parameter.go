package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter reports an inconsistent parameter definition.
var ErrInvalidParameter = errors.New("invalid parameter")

// Parameter is either a quantity read directly from one of its series, or
// a quantity derived from other parameters through a linear model.
type Parameter struct {
	ID   int64
	Name string
	// Series lists the primary series first, then fallbacks in order.
	Series []*Series
	// Band is the band read from the series for a direct parameter.
	Band int
	// Operation is applied to the series when the parameter is read directly.
	Operation *Operation
	// Model is non-empty for derived parameters.
	Model []*LinearModelTerm
}

// IsDerived reports whether the parameter is computed from a linear model.
func (p *Parameter) IsDerived() bool {
	return p != nil && len(p.Model) > 0
}

// Primary returns the first series, or nil.
func (p *Parameter) Primary() *Series {
	if p == nil || len(p.Series) == 0 {
		return nil
	}
	return p.Series[0]
}

// Descriptors returns the distinct descriptors of the linear model, in
// first-appearance order.
func (p *Parameter) Descriptors() []*Descriptor {
	if p == nil {
		return nil
	}
	seen := make(map[*Descriptor]bool)
	var out []*Descriptor
	for _, term := range p.Model {
		for _, d := range term.Descriptors {
			if d == nil || seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// Validate checks the structural rules of a parameter definition.
func (p *Parameter) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil parameter", ErrInvalidParameter)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidParameter)
	}
	if p.Band < 0 {
		return fmt.Errorf("%w: %s: negative band %d", ErrInvalidParameter, p.Name, p.Band)
	}
	if !p.IsDerived() {
		if len(p.Series) == 0 {
			return fmt.Errorf("%w: %s: no series", ErrInvalidParameter, p.Name)
		}
		for i, s := range p.Series {
			if s == nil {
				return fmt.Errorf("%w: %s: nil series at %d", ErrInvalidParameter, p.Name, i)
			}
		}
		return nil
	}
	for i, term := range p.Model {
		if term == nil {
			return fmt.Errorf("%w: %s: nil term %d", ErrInvalidParameter, p.Name, i)
		}
		if math.IsNaN(term.Coefficient) || math.IsInf(term.Coefficient, 0) {
			return fmt.Errorf("%w: %s: term %d has non-finite coefficient", ErrInvalidParameter, p.Name, i)
		}
		for _, d := range term.Descriptors {
			if d == nil || d.IsIdentity() {
				continue
			}
			if d.Parameter.IsDerived() {
				return fmt.Errorf("%w: %s: descriptor %s refers to derived parameter %s",
					ErrInvalidParameter, p.Name, d.Name, d.Parameter.Name)
			}
			if len(d.Parameter.Series) == 0 {
				return fmt.Errorf("%w: %s: descriptor %s has no series", ErrInvalidParameter, p.Name, d.Name)
			}
			if d.Band != nil && *d.Band < 0 {
				return fmt.Errorf("%w: %s: descriptor %s has negative band %d", ErrInvalidParameter, p.Name, d.Name, *d.Band)
			}
		}
	}
	return nil
}

// LinearModelTerm is coefficient × product of normalized descriptor values.
// A term without descriptors is the constant (intercept) term.
type LinearModelTerm struct {
	Coefficient float64
	Descriptors []*Descriptor
}
