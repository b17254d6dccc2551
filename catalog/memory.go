package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventValueWritten EventType = iota
	EventFlagWritten
)

// Event is emitted to subscribers when an environmental value is stored.
type Event struct {
	Type     EventType
	SampleID int64
	Position string
	Column   string
	Value    float64
	Flag     bool
}

type valueKey struct {
	sample   int64
	position string
	column   string
}

// Memory is an in-memory, thread-safe catalog.
type Memory struct {
	mu sync.RWMutex

	nextID    int64
	series    map[string]*model.Series
	ops       map[string]*model.Operation
	positions map[string]*model.RelativePosition
	params    map[string]*model.Parameter
	samples   []*model.Sample
	images    map[string][]model.Image

	values map[valueKey]float64
	flags  map[valueKey]bool

	subs []func(Event)
}

// NewMemory constructs an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		series:    make(map[string]*model.Series),
		ops:       make(map[string]*model.Operation),
		positions: make(map[string]*model.RelativePosition),
		params:    make(map[string]*model.Parameter),
		images:    make(map[string][]model.Image),
		values:    make(map[valueKey]float64),
		flags:     make(map[valueKey]bool),
	}
}

func (m *Memory) id(current int64) int64 {
	if current != 0 {
		return current
	}
	m.nextID++
	return m.nextID
}

// AddSeries adds a series. It returns ErrExists if the name is taken.
func (m *Memory) AddSeries(s *model.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.series[s.Name]; exists {
		return fmt.Errorf("%w: series %q", ErrExists, s.Name)
	}
	s.ID = m.id(s.ID)
	m.series[s.Name] = s
	return nil
}

// AddOperation adds an operation.
func (m *Memory) AddOperation(op *model.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ops[op.Name]; exists {
		return fmt.Errorf("%w: operation %q", ErrExists, op.Name)
	}
	op.ID = m.id(op.ID)
	m.ops[op.Name] = op
	return nil
}

// AddRelativePosition adds a relative position.
func (m *Memory) AddRelativePosition(p *model.RelativePosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.positions[p.Name]; exists {
		return fmt.Errorf("%w: relative position %q", ErrExists, p.Name)
	}
	p.ID = m.id(p.ID)
	m.positions[p.Name] = p
	return nil
}

// AddParameter adds a parameter after validating it. Every series it reads,
// directly or through descriptors, must already be in the catalog.
func (m *Memory) AddParameter(p *model.Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.params[p.Name]; exists {
		return fmt.Errorf("%w: parameter %q", ErrExists, p.Name)
	}
	check := func(series []*model.Series) error {
		for _, s := range series {
			if _, ok := m.series[s.Name]; !ok {
				return fmt.Errorf("%w: series %q for parameter %q", ErrNotFound, s.Name, p.Name)
			}
		}
		return nil
	}
	if err := check(p.Series); err != nil {
		return err
	}
	for _, d := range p.Descriptors() {
		if !d.IsIdentity() {
			if err := check(d.Parameter.Series); err != nil {
				return err
			}
		}
	}
	p.ID = m.id(p.ID)
	m.params[p.Name] = p
	return nil
}

// AddSample adds a sample.
func (m *Memory) AddSample(s *model.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id(s.ID)
	m.samples = append(m.samples, s)
}

// AddImage registers an image of a known series.
func (m *Memory) AddImage(series string, img model.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[series]
	if !ok {
		return fmt.Errorf("%w: series %q", ErrNotFound, series)
	}
	img.SeriesID = s.ID
	m.images[series] = append(m.images[series], img)
	return nil
}

// Series implements Reader.
func (m *Memory) Series(_ context.Context, name string) (*model.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.series[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: series %q", ErrNotFound, name)
}

// Operation implements Reader.
func (m *Memory) Operation(_ context.Context, name string) (*model.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if op, ok := m.ops[name]; ok {
		return op, nil
	}
	return nil, fmt.Errorf("%w: operation %q", ErrNotFound, name)
}

// RelativePosition implements Reader.
func (m *Memory) RelativePosition(_ context.Context, name string) (*model.RelativePosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.positions[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: relative position %q", ErrNotFound, name)
}

// Parameter implements Reader.
func (m *Memory) Parameter(_ context.Context, name string) (*model.Parameter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.params[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: parameter %q", ErrNotFound, name)
}

// ListSeries implements Reader.
func (m *Memory) ListSeries(context.Context) ([]*model.Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.series), nil
}

// ListOperations implements Reader.
func (m *Memory) ListOperations(context.Context) ([]*model.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.ops), nil
}

// ListRelativePositions implements Reader.
func (m *Memory) ListRelativePositions(context.Context) ([]*model.RelativePosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.positions), nil
}

// ListParameters implements Reader.
func (m *Memory) ListParameters(context.Context) ([]*model.Parameter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.params), nil
}

// Samples implements Reader.
func (m *Memory) Samples(context.Context) ([]*model.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]*model.Sample(nil), m.samples...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// Images implements Reader.
func (m *Memory) Images(_ context.Context, series string) ([]model.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.series[series]; !ok {
		return nil, fmt.Errorf("%w: series %q", ErrNotFound, series)
	}
	out := append([]model.Image(nil), m.images[series]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// SetValue implements Writer and notifies subscribers.
func (m *Memory) SetValue(_ context.Context, s *model.Sample, pos *model.RelativePosition, column string, v float64) error {
	key := valueKey{sample: s.ID, position: positionName(pos), column: column}
	m.mu.Lock()
	m.values[key] = v
	subs := append([]func(Event){}, m.subs...)
	m.mu.Unlock()

	event := Event{Type: EventValueWritten, SampleID: s.ID, Position: key.position, Column: column, Value: v}
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// SetFlag implements Writer and notifies subscribers.
func (m *Memory) SetFlag(_ context.Context, s *model.Sample, pos *model.RelativePosition, column string, flag bool) error {
	key := valueKey{sample: s.ID, position: positionName(pos), column: column}
	m.mu.Lock()
	m.flags[key] = flag
	subs := append([]func(Event){}, m.subs...)
	m.mu.Unlock()

	event := Event{Type: EventFlagWritten, SampleID: s.ID, Position: key.position, Column: column, Flag: flag}
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Value returns a stored value.
func (m *Memory) Value(sampleID int64, position, column string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[valueKey{sample: sampleID, position: position, column: column}]
	return v, ok
}

// ValueCount is the number of stored values.
func (m *Memory) ValueCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Close implements Catalog.
func (m *Memory) Close() error { return nil }

// Subscribe registers a callback for write events. It returns an
// unsubscribe function.
func (m *Memory) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
	idx := len(m.subs) - 1

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < 0 || idx >= len(m.subs) {
			return
		}
		m.subs = append(m.subs[:idx], m.subs[idx+1:]...)
		idx = -1
	}
}

func positionName(p *model.RelativePosition) string {
	if p == nil {
		return ""
	}
	return p.Name
}

type named interface {
	*model.Series | *model.Operation | *model.RelativePosition | *model.Parameter
}

func sortedValues[T named](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
