// Package catalog gives access to the metadata of series, operations,
// relative positions, parameters and samples, and stores the environmental
// values computed for each sample.
package catalog

import (
	"context"
	"errors"

	"github.com/desruisseaux/Seagis-sub004/model"
)

var (
	ErrNotFound = errors.New("catalog entry not found")
	ErrExists   = errors.New("catalog entry already exists")
)

// Reader looks up catalog entries by name.
type Reader interface {
	Series(ctx context.Context, name string) (*model.Series, error)
	Operation(ctx context.Context, name string) (*model.Operation, error)
	RelativePosition(ctx context.Context, name string) (*model.RelativePosition, error)
	Parameter(ctx context.Context, name string) (*model.Parameter, error)

	ListSeries(ctx context.Context) ([]*model.Series, error)
	ListOperations(ctx context.Context) ([]*model.Operation, error)
	ListRelativePositions(ctx context.Context) ([]*model.RelativePosition, error)
	ListParameters(ctx context.Context) ([]*model.Parameter, error)

	// Samples returns the samples in ascending time order.
	Samples(ctx context.Context) ([]*model.Sample, error)
	// Images returns the images of a series in ascending time order.
	Images(ctx context.Context, series string) ([]model.Image, error)
}

// Writer stores computed environmental values. A nil position means the
// sample itself.
type Writer interface {
	SetValue(ctx context.Context, s *model.Sample, pos *model.RelativePosition, column string, v float64) error
	SetFlag(ctx context.Context, s *model.Sample, pos *model.RelativePosition, column string, flag bool) error
}

// Catalog is a readable and writable catalog.
type Catalog interface {
	Reader
	Writer
	Close() error
}

// PositionsOrDefault resolves names to relative positions. With no names it
// returns the positions flagged as default.
func PositionsOrDefault(ctx context.Context, r Reader, names []string) ([]*model.RelativePosition, error) {
	if len(names) == 0 {
		all, err := r.ListRelativePositions(ctx)
		if err != nil {
			return nil, err
		}
		var out []*model.RelativePosition
		for _, p := range all {
			if p.Default {
				out = append(out, p)
			}
		}
		return out, nil
	}
	out := make([]*model.RelativePosition, 0, len(names))
	for _, n := range names {
		p, err := r.RelativePosition(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
