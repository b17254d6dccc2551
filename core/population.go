package core

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// PopulationSpec describes a population spread uniformly over an area.
type PopulationSpec struct {
	Count   int
	Species string
	Area    model.Area
	// Speed in metres per day, PerceptionRadius in metres.
	Speed            float64
	PerceptionRadius float64
}

// RandomPopulation places spec.Count animals at random in spec.Area.
func RandomPopulation(spec PopulationSpec, rng *rand.Rand) []*Animal {
	out := make([]*Animal, 0, spec.Count)
	for i := 0; i < spec.Count; i++ {
		p := model.GeoPoint{
			Lon: spec.Area.West + rng.Float64()*(spec.Area.East-spec.Area.West),
			Lat: spec.Area.South + rng.Float64()*(spec.Area.North-spec.Area.South),
		}
		out = append(out, NewAnimal(fmt.Sprintf("%s-%03d", spec.Species, i+1), spec.Species, p, spec.Speed, spec.PerceptionRadius))
	}
	return out
}

// internal JSON shapes
type populationJSON struct {
	Animals []animalJSON `json:"animals"`
}

type animalJSON struct {
	ID           string   `json:"id"`
	Species      string   `json:"species"`
	Lon          float64  `json:"lon"`
	Lat          float64  `json:"lat"`
	SpeedKmDay   *float64 `json:"speed_km_per_day"`  // optional; from PopulationSpec when absent
	PerceptionKm *float64 `json:"perception_km"`     // optional; from PopulationSpec when absent
	Heading      float64  `json:"heading,omitempty"` // clockwise degrees from east
}

// LoadPopulation reads animals from JSON. Missing speeds, perception radii
// and species are taken from defaults.
func LoadPopulation(r io.Reader, defaults PopulationSpec) ([]*Animal, error) {
	var payload populationJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadPopulation: decode failed: %w", err)
	}

	seen := make(map[string]bool, len(payload.Animals))
	out := make([]*Animal, 0, len(payload.Animals))
	for i, aj := range payload.Animals {
		if aj.ID == "" {
			return nil, fmt.Errorf("LoadPopulation: animal %d has no id", i)
		}
		if seen[aj.ID] {
			return nil, fmt.Errorf("LoadPopulation: duplicate animal id %q", aj.ID)
		}
		seen[aj.ID] = true
		if aj.Lon < -180 || aj.Lon > 180 || aj.Lat < -90 || aj.Lat > 90 {
			return nil, fmt.Errorf("LoadPopulation: animal %q has invalid position %v,%v", aj.ID, aj.Lon, aj.Lat)
		}

		species := aj.Species
		if species == "" {
			species = defaults.Species
		}
		speed := defaults.Speed
		if aj.SpeedKmDay != nil {
			speed = *aj.SpeedKmDay * 1000
		}
		radius := defaults.PerceptionRadius
		if aj.PerceptionKm != nil {
			radius = *aj.PerceptionKm * 1000
		}
		a := NewAnimal(aj.ID, species, model.GeoPoint{Lon: aj.Lon, Lat: aj.Lat}, speed, radius)
		a.Path.Rotate(aj.Heading)
		out = append(out, a)
	}
	return out, nil
}
