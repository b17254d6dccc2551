package sqlcatalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// Series implements catalog.Reader.
func (s *Store) Series(ctx context.Context, name string) (*model.Series, error) {
	var (
		out    model.Series
		period int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, period_seconds FROM series WHERE name = ?`, name,
	).Scan(&out.ID, &out.Name, &out.Description, &period)
	if err != nil {
		return nil, notFound("series", name, err)
	}
	out.Period = time.Duration(period) * time.Second
	return &out, nil
}

// ListSeries implements catalog.Reader.
func (s *Store) ListSeries(ctx context.Context) ([]*model.Series, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, period_seconds FROM series ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []*model.Series
	for rows.Next() {
		var (
			sr     model.Series
			period int64
		)
		if err := rows.Scan(&sr.ID, &sr.Name, &sr.Description, &period); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		sr.Period = time.Duration(period) * time.Second
		out = append(out, &sr)
	}
	return out, rows.Err()
}

// Images implements catalog.Reader.
func (s *Store) Images(ctx context.Context, series string) ([]model.Image, error) {
	sr, err := s.Series(ctx, series)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT time_unix, path FROM images WHERE series_id = ? ORDER BY time_unix`, sr.ID)
	if err != nil {
		return nil, fmt.Errorf("list images of %s: %w", series, err)
	}
	defer rows.Close()

	var out []model.Image
	for rows.Next() {
		var (
			t    int64
			path string
		)
		if err := rows.Scan(&t, &path); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, model.Image{SeriesID: sr.ID, Time: unixTime(t), Path: path})
	}
	return out, rows.Err()
}

// Operation implements catalog.Reader.
func (s *Store) Operation(ctx context.Context, name string) (*model.Operation, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM operations WHERE name = ?`, name).Scan(&id); err != nil {
		return nil, notFound("operation", name, err)
	}
	return newLoader(s).operation(ctx, id)
}

// ListOperations implements catalog.Reader.
func (s *Store) ListOperations(ctx context.Context) ([]*model.Operation, error) {
	ids, err := s.ids(ctx, `SELECT id FROM operations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	l := newLoader(s)
	out := make([]*model.Operation, 0, len(ids))
	for _, id := range ids {
		op, err := l.operation(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

// RelativePosition implements catalog.Reader.
func (s *Store) RelativePosition(ctx context.Context, name string) (*model.RelativePosition, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM relative_positions WHERE name = ?`, name).Scan(&id); err != nil {
		return nil, notFound("relative position", name, err)
	}
	return newLoader(s).position(ctx, id)
}

// ListRelativePositions implements catalog.Reader.
func (s *Store) ListRelativePositions(ctx context.Context) ([]*model.RelativePosition, error) {
	ids, err := s.ids(ctx, `SELECT id FROM relative_positions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list relative positions: %w", err)
	}
	l := newLoader(s)
	out := make([]*model.RelativePosition, 0, len(ids))
	for _, id := range ids {
		p, err := l.position(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Parameter implements catalog.Reader. Descriptors, positions and
// operations shared by several terms are loaded once.
func (s *Store) Parameter(ctx context.Context, name string) (*model.Parameter, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM parameters WHERE name = ?`, name).Scan(&id); err != nil {
		return nil, notFound("parameter", name, err)
	}
	return newLoader(s).parameter(ctx, id)
}

// ListParameters implements catalog.Reader.
func (s *Store) ListParameters(ctx context.Context) ([]*model.Parameter, error) {
	ids, err := s.ids(ctx, `SELECT id FROM parameters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	l := newLoader(s)
	out := make([]*model.Parameter, 0, len(ids))
	for _, id := range ids {
		p, err := l.parameter(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Samples implements catalog.Reader.
func (s *Store) Samples(ctx context.Context) ([]*model.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, species, time_unix, lon, lat, end_lon, end_lat, catch FROM samples ORDER BY time_unix, id`)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var out []*model.Sample
	for rows.Next() {
		var (
			sm             model.Sample
			t              int64
			endLon, endLat sql.NullFloat64
		)
		if err := rows.Scan(&sm.ID, &sm.Species, &t, &sm.Point.Lon, &sm.Point.Lat, &endLon, &endLat, &sm.Catch); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sm.Time = unixTime(t)
		if endLon.Valid && endLat.Valid {
			sm.End = &model.GeoPoint{Lon: endLon.Float64, Lat: endLat.Float64}
		}
		out = append(out, &sm)
	}
	return out, rows.Err()
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// loader resolves the object graph of a parameter, sharing entries by ID.
type loader struct {
	s           *Store
	series      map[int64]*model.Series
	ops         map[int64]*model.Operation
	positions   map[int64]*model.RelativePosition
	params      map[int64]*model.Parameter
	descriptors map[int64]*model.Descriptor
}

func newLoader(s *Store) *loader {
	return &loader{
		s:           s,
		series:      make(map[int64]*model.Series),
		ops:         make(map[int64]*model.Operation),
		positions:   make(map[int64]*model.RelativePosition),
		params:      make(map[int64]*model.Parameter),
		descriptors: make(map[int64]*model.Descriptor),
	}
}

func (l *loader) seriesByID(ctx context.Context, id int64) (*model.Series, error) {
	if sr, ok := l.series[id]; ok {
		return sr, nil
	}
	var (
		sr     model.Series
		period int64
	)
	err := l.s.db.QueryRowContext(ctx,
		`SELECT id, name, description, period_seconds FROM series WHERE id = ?`, id,
	).Scan(&sr.ID, &sr.Name, &sr.Description, &period)
	if err != nil {
		return nil, notFound("series", fmt.Sprint(id), err)
	}
	sr.Period = time.Duration(period) * time.Second
	l.series[id] = &sr
	return &sr, nil
}

func (l *loader) operation(ctx context.Context, id int64) (*model.Operation, error) {
	if op, ok := l.ops[id]; ok {
		return op, nil
	}
	var op model.Operation
	err := l.s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM operations WHERE id = ?`, id,
	).Scan(&op.ID, &op.Name, &op.Description)
	if err != nil {
		return nil, notFound("operation", fmt.Sprint(id), err)
	}

	rows, err := l.s.db.QueryContext(ctx,
		`SELECT name, value FROM operation_parameters WHERE operation_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("operation %s parameters: %w", op.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan operation parameter: %w", err)
		}
		if op.Parameters == nil {
			op.Parameters = make(map[string]string)
		}
		op.Parameters[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	l.ops[id] = &op
	return &op, nil
}

func (l *loader) position(ctx context.Context, id int64) (*model.RelativePosition, error) {
	if p, ok := l.positions[id]; ok {
		return p, nil
	}
	var (
		p      model.RelativePosition
		offset int64
	)
	err := l.s.db.QueryRowContext(ctx,
		`SELECT id, name, time_offset_seconds, dlon, dlat, is_default FROM relative_positions WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &offset, &p.DLon, &p.DLat, &p.Default)
	if err != nil {
		return nil, notFound("relative position", fmt.Sprint(id), err)
	}
	p.TimeOffset = time.Duration(offset) * time.Second
	l.positions[id] = &p
	return &p, nil
}

func (l *loader) parameter(ctx context.Context, id int64) (*model.Parameter, error) {
	if p, ok := l.params[id]; ok {
		return p, nil
	}
	p := &model.Parameter{}
	var opID sql.NullInt64
	err := l.s.db.QueryRowContext(ctx,
		`SELECT id, name, band, operation_id FROM parameters WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Band, &opID)
	if err != nil {
		return nil, notFound("parameter", fmt.Sprint(id), err)
	}
	// registered before the model is loaded so that references back to p
	// resolve to the same pointer
	l.params[id] = p

	if opID.Valid {
		if p.Operation, err = l.operation(ctx, opID.Int64); err != nil {
			return nil, err
		}
	}

	seriesIDs, err := l.s.ids(ctx,
		`SELECT series_id FROM parameter_series WHERE parameter_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, fmt.Errorf("parameter %s series: %w", p.Name, err)
	}
	for _, sid := range seriesIDs {
		sr, err := l.seriesByID(ctx, sid)
		if err != nil {
			return nil, err
		}
		p.Series = append(p.Series, sr)
	}

	type termRow struct {
		id          int64
		coefficient float64
	}
	rows, err := l.s.db.QueryContext(ctx,
		`SELECT id, coefficient FROM linear_terms WHERE target_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("parameter %s terms: %w", p.Name, err)
	}
	var terms []termRow
	for rows.Next() {
		var tr termRow
		if err := rows.Scan(&tr.id, &tr.coefficient); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, tr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, tr := range terms {
		term := &model.LinearModelTerm{Coefficient: tr.coefficient}
		descIDs, err := l.s.ids(ctx,
			`SELECT descriptor_id FROM term_descriptors WHERE term_id = ? ORDER BY ordinal`, tr.id)
		if err != nil {
			return nil, fmt.Errorf("parameter %s term descriptors: %w", p.Name, err)
		}
		for _, did := range descIDs {
			d, err := l.descriptor(ctx, did)
			if err != nil {
				return nil, err
			}
			term.Descriptors = append(term.Descriptors, d)
		}
		p.Model = append(p.Model, term)
	}
	return p, nil
}

func (l *loader) descriptor(ctx context.Context, id int64) (*model.Descriptor, error) {
	if d, ok := l.descriptors[id]; ok {
		return d, nil
	}
	var (
		d                    model.Descriptor
		paramID, posID, opID sql.NullInt64
		band                 sql.NullInt64
		distribution         string
	)
	err := l.s.db.QueryRowContext(ctx,
		`SELECT id, name, parameter_id, position_id, operation_id, distribution, band FROM descriptors WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &paramID, &posID, &opID, &distribution, &band)
	if err != nil {
		return nil, notFound("descriptor", fmt.Sprint(id), err)
	}
	if d.Distribution, err = model.ParseDistribution(distribution); err != nil {
		return nil, fmt.Errorf("descriptor %s: %w", d.Name, err)
	}
	if band.Valid {
		b := int(band.Int64)
		d.Band = &b
	}
	if paramID.Valid {
		if d.Parameter, err = l.parameter(ctx, paramID.Int64); err != nil {
			return nil, err
		}
	}
	if posID.Valid {
		if d.Position, err = l.position(ctx, posID.Int64); err != nil {
			return nil, err
		}
	}
	if opID.Valid {
		if d.Operation, err = l.operation(ctx, opID.Int64); err != nil {
			return nil, err
		}
	}
	l.descriptors[id] = &d
	return &d, nil
}
