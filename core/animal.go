package core

import (
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// Animal is a simulated fish moving through the environment.
type Animal struct {
	ID      string
	Species string
	Path    *GeodeticTrajectory
	// Speed is in metres per day.
	Speed float64
	// PerceptionRadius is the half side of the square the animal senses,
	// in metres.
	PerceptionRadius float64

	Observations []Observation
}

// Observation is what an animal perceived at one step.
type Observation struct {
	Time     time.Time
	Position model.GeoPoint
	Values   map[string]float64
}

// NewAnimal places a new animal at p.
func NewAnimal(id, species string, p model.GeoPoint, speed, perceptionRadius float64) *Animal {
	path := NewGeodeticTrajectory()
	path.SetLocation(p)
	return &Animal{
		ID:               id,
		Species:          species,
		Path:             path,
		Speed:            speed,
		PerceptionRadius: perceptionRadius,
	}
}

// Location returns the current position.
func (a *Animal) Location() (model.GeoPoint, bool) {
	return a.Path.Location()
}

// PerceptionArea returns the square sensed by the animal, in degrees.
func (a *Animal) PerceptionArea() (Rect, bool) {
	r := a.PerceptionRadius
	return a.Path.RelativeToGeographic(Rect{MinX: -r, MinY: -r, MaxX: r, MaxY: r})
}

// StepDistance is how far the animal swims in d.
func (a *Animal) StepDistance(d time.Duration) float64 {
	return a.Speed * d.Hours() / 24
}
