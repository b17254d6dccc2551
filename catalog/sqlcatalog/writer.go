package sqlcatalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(kind, name string, err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s %q", catalog.ErrExists, kind, name)
	}
	return fmt.Errorf("insert %s %q: %w", kind, name, err)
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AddSeries inserts a series and sets its ID.
func (s *Store) AddSeries(ctx context.Context, sr *model.Series) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO series (name, description, period_seconds) VALUES (?, ?, ?)`,
		sr.Name, sr.Description, int64(sr.Period.Seconds()))
	if err != nil {
		return exists("series", sr.Name, err)
	}
	sr.ID, err = res.LastInsertId()
	return err
}

// AddImage registers an image of a known series.
func (s *Store) AddImage(ctx context.Context, series string, img model.Image) error {
	sr, err := s.Series(ctx, series)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO images (series_id, time_unix, path) VALUES (?, ?, ?)`,
		sr.ID, img.Time.Unix(), img.Path); err != nil {
		return exists("image", img.Path, err)
	}
	return nil
}

// AddOperation inserts an operation with its parameters.
func (s *Store) AddOperation(ctx context.Context, op *model.Operation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO operations (name, description) VALUES (?, ?)`, op.Name, op.Description)
		if err != nil {
			return exists("operation", op.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for k, v := range op.Parameters {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO operation_parameters (operation_id, name, value) VALUES (?, ?, ?)`,
				id, k, v); err != nil {
				return fmt.Errorf("operation %s parameter %s: %w", op.Name, k, err)
			}
		}
		op.ID = id
		return nil
	})
}

// AddRelativePosition inserts a relative position and sets its ID.
func (s *Store) AddRelativePosition(ctx context.Context, p *model.RelativePosition) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO relative_positions (name, time_offset_seconds, dlon, dlat, is_default) VALUES (?, ?, ?, ?, ?)`,
		p.Name, int64(p.TimeOffset.Seconds()), p.DLon, p.DLat, p.Default)
	if err != nil {
		return exists("relative position", p.Name, err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// AddSample inserts a sample and sets its ID.
func (s *Store) AddSample(ctx context.Context, sm *model.Sample) error {
	var endLon, endLat sql.NullFloat64
	if sm.End != nil {
		endLon = sql.NullFloat64{Float64: sm.End.Lon, Valid: true}
		endLat = sql.NullFloat64{Float64: sm.End.Lat, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (species, time_unix, lon, lat, end_lon, end_lat, catch) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sm.Species, sm.Time.Unix(), sm.Point.Lon, sm.Point.Lat, endLon, endLat, sm.Catch)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	sm.ID, err = res.LastInsertId()
	return err
}

// AddParameter validates and inserts a parameter. The series, operations,
// positions and descriptor parameters it refers to must already be in the
// catalog. Descriptors are inserted on first use and shared by name.
func (s *Store) AddParameter(ctx context.Context, p *model.Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		opID, err := lookupID(ctx, tx, "operations", "operation", model.OperationName(p.Operation))
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO parameters (name, band, operation_id) VALUES (?, ?, ?)`, p.Name, p.Band, opID)
		if err != nil {
			return exists("parameter", p.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for rank, sr := range p.Series {
			sid, err := lookupID(ctx, tx, "series", "series", sr.Name)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO parameter_series (parameter_id, rank, series_id) VALUES (?, ?, ?)`,
				id, rank, sid); err != nil {
				return fmt.Errorf("parameter %s series %s: %w", p.Name, sr.Name, err)
			}
		}
		for i, term := range p.Model {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO linear_terms (target_id, ordinal, coefficient) VALUES (?, ?, ?)`,
				id, i, term.Coefficient)
			if err != nil {
				return fmt.Errorf("parameter %s term %d: %w", p.Name, i, err)
			}
			termID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for j, d := range term.Descriptors {
				did, err := descriptorID(ctx, tx, d)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO term_descriptors (term_id, ordinal, descriptor_id) VALUES (?, ?, ?)`,
					termID, j, did); err != nil {
					return fmt.Errorf("parameter %s term %d descriptor %s: %w", p.Name, i, d.Name, err)
				}
			}
		}
		p.ID = id
		return nil
	})
}

// lookupID resolves a name to its row ID. An empty name maps to NULL.
func lookupID(ctx context.Context, q execer, table, kind, name string) (sql.NullInt64, error) {
	if name == "" {
		return sql.NullInt64{}, nil
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE name = ?`, name).Scan(&id); err != nil {
		return sql.NullInt64{}, notFound(kind, name, err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func descriptorID(ctx context.Context, q execer, d *model.Descriptor) (int64, error) {
	if d == nil {
		d = model.Identity()
	}
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM descriptors WHERE name = ?`, d.Name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query descriptor %q: %w", d.Name, err)
	}

	var paramName, posName string
	if !d.IsIdentity() {
		paramName = d.Parameter.Name
	}
	if d.Position != nil {
		posName = d.Position.Name
	}
	paramID, err := lookupID(ctx, q, "parameters", "parameter", paramName)
	if err != nil {
		return 0, err
	}
	posID, err := lookupID(ctx, q, "relative_positions", "relative position", posName)
	if err != nil {
		return 0, err
	}
	opID, err := lookupID(ctx, q, "operations", "operation", model.OperationName(d.Operation))
	if err != nil {
		return 0, err
	}
	distribution := d.Distribution
	if distribution == "" {
		distribution = model.DistributionNormal
	}
	var band sql.NullInt64
	if d.Band != nil {
		band = sql.NullInt64{Int64: int64(*d.Band), Valid: true}
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO descriptors (name, parameter_id, position_id, operation_id, distribution, band) VALUES (?, ?, ?, ?, ?, ?)`,
		d.Name, paramID, posID, opID, string(distribution), band)
	if err != nil {
		return 0, exists("descriptor", d.Name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func positionID(pos *model.RelativePosition) int64 {
	if pos == nil {
		return 0
	}
	return pos.ID
}

// SetValue implements catalog.Writer. NaN is stored as NULL.
func (s *Store) SetValue(ctx context.Context, sm *model.Sample, pos *model.RelativePosition, column string, v float64) error {
	value := sql.NullFloat64{Float64: v, Valid: v == v}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO environments (sample_id, position_id, column_name, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(sample_id, position_id, column_name) DO UPDATE SET value = excluded.value`,
		sm.ID, positionID(pos), column, value)
	if err != nil {
		return fmt.Errorf("set %s for sample %d: %w", column, sm.ID, err)
	}
	s.log.Debug(ctx, "environment value stored",
		logging.Int("sample", int(sm.ID)),
		logging.String("column", column),
		logging.Float("value", v),
	)
	return nil
}

// SetFlag implements catalog.Writer.
func (s *Store) SetFlag(ctx context.Context, sm *model.Sample, pos *model.RelativePosition, column string, flag bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO environments (sample_id, position_id, column_name, flag) VALUES (?, ?, ?, ?)
		 ON CONFLICT(sample_id, position_id, column_name) DO UPDATE SET flag = excluded.flag`,
		sm.ID, positionID(pos), column, flag)
	if err != nil {
		return fmt.Errorf("set flag %s for sample %d: %w", column, sm.ID, err)
	}
	return nil
}

// Value returns a stored value. The boolean is false when no value was
// written or the stored value is NULL.
func (s *Store) Value(ctx context.Context, sampleID int64, pos *model.RelativePosition, column string) (float64, bool, error) {
	var v sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM environments WHERE sample_id = ? AND position_id = ? AND column_name = ?`,
		sampleID, positionID(pos), column).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query %s for sample %d: %w", column, sampleID, err)
	}
	return v.Float64, v.Valid, nil
}
