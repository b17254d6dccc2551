// Package config reads the simulation configuration file: a block of
// KEY = value properties, a line of dashes, then one
// "series;operation;evaluator" row per parameter the animals perceive.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/desruisseaux/Seagis-sub004/model"
)

var (
	ErrMissingKey = errors.New("missing configuration key")
	ErrBadValue   = errors.New("bad configuration value")
	ErrUnknownKey = errors.New("unknown configuration key")
)

var validate = validator.New()

// Property keys.
const (
	KeyStartTime        = "START_TIME"
	KeyEndTime          = "END_TIME"
	KeyTimeStep         = "TIME_STEP"
	KeyPopulation       = "POPULATION"
	KeyPopulationFile   = "POPULATION_FILE"
	KeySpeed            = "SPEED"
	KeyPerceptionRadius = "PERCEPTION_RADIUS"
	KeyArea             = "AREA"
	KeySeed             = "SEED"
	KeyDatabase         = "DATABASE"
	KeyTracksOutput     = "TRACKS_OUTPUT"
)

var required = []string{KeyStartTime, KeyEndTime, KeyTimeStep, KeyArea, KeySpeed, KeyPerceptionRadius}

// Evaluator names accepted in the parameter table.
const (
	EvaluatorAverage = "Average"
	EvaluatorMaximum = "Maximum"
	EvaluatorMinimum = "Minimum"
)

// ParameterRow is one line of the parameter table.
type ParameterRow struct {
	Series    string `validate:"required"`
	Operation string
	Evaluator string `validate:"oneof=Average Maximum Minimum"`
}

// Simulation is a parsed simulation configuration.
type Simulation struct {
	StartTime time.Time     `validate:"required"`
	EndTime   time.Time     `validate:"required,gtfield=StartTime"`
	TimeStep  time.Duration `validate:"gt=0"`

	Population     int `validate:"gte=0,required_without=PopulationFile"`
	PopulationFile string
	// Speed is in km/day and PerceptionRadius in km.
	Speed            float64 `validate:"gte=0"`
	PerceptionRadius float64 `validate:"gt=0"`
	Area             model.Area
	Seed             int64

	Database     string
	TracksOutput string

	Parameters []ParameterRow `validate:"dive"`
}

// SpeedMetersPerDay returns Speed in the unit used by the simulation.
func (s *Simulation) SpeedMetersPerDay() float64 { return s.Speed * 1000 }

// PerceptionMeters returns PerceptionRadius in metres.
func (s *Simulation) PerceptionMeters() float64 { return s.PerceptionRadius * 1000 }

// Steps is the number of time steps from StartTime to EndTime inclusive.
func (s *Simulation) Steps() int {
	return int(s.EndTime.Sub(s.StartTime)/s.TimeStep) + 1
}

// Load reads and validates the file at path.
func Load(path string) (*Simulation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads and validates a configuration.
func Parse(r io.Reader) (*Simulation, error) {
	props := make(map[string]string)
	var rows []ParameterRow
	seen := make(map[ParameterRow]int)
	inTable := false

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if isSeparator(text) {
			inTable = true
			continue
		}
		if inTable {
			row, err := parseRow(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if first, dup := seen[row]; dup {
				return nil, fmt.Errorf("line %d: %w: row %q repeats line %d", line, ErrBadValue, text, first)
			}
			seen[row] = line
			rows = append(rows, row)
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: %w: expected KEY = value, got %q", line, ErrBadValue, text)
		}
		props[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := fromProperties(props)
	if err != nil {
		return nil, err
	}
	cfg.Parameters = rows
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	return cfg, nil
}

func isSeparator(s string) bool {
	return len(s) >= 3 && strings.Trim(s, "-") == ""
}

func parseRow(s string) (ParameterRow, error) {
	fields := strings.Split(s, ";")
	if len(fields) != 3 {
		return ParameterRow{}, fmt.Errorf("%w: expected series;operation;evaluator, got %q", ErrBadValue, s)
	}
	row := ParameterRow{
		Series:    strings.TrimSpace(fields[0]),
		Operation: strings.TrimSpace(fields[1]),
		Evaluator: strings.TrimSpace(fields[2]),
	}
	for _, name := range []string{EvaluatorAverage, EvaluatorMaximum, EvaluatorMinimum} {
		if strings.EqualFold(row.Evaluator, name) {
			row.Evaluator = name
		}
	}
	return row, nil
}

func fromProperties(props map[string]string) (*Simulation, error) {
	for _, k := range required {
		if props[k] == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, k)
		}
	}
	if props[KeyPopulation] == "" && props[KeyPopulationFile] == "" {
		return nil, fmt.Errorf("%w: %s or %s", ErrMissingKey, KeyPopulation, KeyPopulationFile)
	}

	cfg := &Simulation{}
	var err error
	for k, v := range props {
		switch k {
		case KeyStartTime:
			cfg.StartTime, err = ParseTime(v)
		case KeyEndTime:
			cfg.EndTime, err = ParseTime(v)
		case KeyTimeStep:
			var days float64
			if days, err = strconv.ParseFloat(v, 64); err == nil {
				cfg.TimeStep = time.Duration(days * float64(24*time.Hour))
			}
		case KeyPopulation:
			cfg.Population, err = strconv.Atoi(v)
		case KeyPopulationFile:
			cfg.PopulationFile = v
		case KeySpeed:
			cfg.Speed, err = strconv.ParseFloat(v, 64)
		case KeyPerceptionRadius:
			cfg.PerceptionRadius, err = strconv.ParseFloat(v, 64)
		case KeyArea:
			cfg.Area, err = ParseArea(v)
		case KeySeed:
			cfg.Seed, err = strconv.ParseInt(v, 10, 64)
		case KeyDatabase:
			cfg.Database = v
		case KeyTracksOutput:
			cfg.TracksOutput = v
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s = %q: %v", ErrBadValue, k, v, err)
		}
	}
	return cfg, nil
}

// ParseTime accepts RFC 3339, YYYY-MM-DDTHH:MM and YYYY-MM-DD, in UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339 time")
}

// ParseArea parses "west,east,south,north" in decimal degrees.
func ParseArea(s string) (model.Area, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.Area{}, fmt.Errorf("expected west,east,south,north")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Area{}, err
		}
		v[i] = f
	}
	a := model.Area{West: v[0], East: v[1], South: v[2], North: v[3]}
	if err := validate.Struct(a); err != nil {
		return model.Area{}, err
	}
	return a, nil
}
