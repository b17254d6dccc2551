package coverage

import (
	"fmt"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// TimeOffset is an optional nominal time offset. The zero value is the
// wildcard, which matches any offset.
type TimeOffset struct {
	d     time.Duration
	known bool
}

// AnyOffset is the wildcard offset.
var AnyOffset = TimeOffset{}

// Offset returns a known offset.
func Offset(d time.Duration) TimeOffset {
	return TimeOffset{d: d, known: true}
}

// Value returns the offset and whether it is known.
func (o TimeOffset) Value() (time.Duration, bool) {
	return o.d, o.known
}

// Matches is true when both offsets are known and equal, or when either is
// the wildcard.
func (o TimeOffset) Matches(other TimeOffset) bool {
	if !o.known || !other.known {
		return true
	}
	return o.d == other.d
}

func (o TimeOffset) String() string {
	if !o.known {
		return "*"
	}
	return o.d.String()
}

// SeriesKey identifies a coverage handle in the cache.
type SeriesKey struct {
	Series    string
	Operation string
	Offset    TimeOffset
}

// NewSeriesKey builds the key for a series read through op at offset.
func NewSeriesKey(series *model.Series, op *model.Operation, offset TimeOffset) SeriesKey {
	return SeriesKey{Series: series.Name, Operation: op.Key(), Offset: offset}
}

// Matches compares series and operation exactly and offsets with wildcard
// rules.
func (k SeriesKey) Matches(other SeriesKey) bool {
	return k.Series == other.Series && k.Operation == other.Operation && k.Offset.Matches(other.Offset)
}

// Wildcard returns the key with its offset cleared.
func (k SeriesKey) Wildcard() SeriesKey {
	return SeriesKey{Series: k.Series, Operation: k.Operation}
}

func (k SeriesKey) String() string {
	op := k.Operation
	if op == "" {
		op = "raw"
	}
	return fmt.Sprintf("%s/%s@%s", k.Series, op, k.Offset)
}
