package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operation names understood by the coverage layer.
const (
	OperationNodataFilter = "NodataFilter"
	OperationSobel        = "Sobel"
)

// Operation is an image processing step applied to a series before
// evaluation. A nil *Operation means the images are used unchanged.
type Operation struct {
	ID          int64
	Name        string
	Description string
	Parameters  map[string]string
}

// Float returns the named numeric parameter, or def if it is absent.
func (o *Operation) Float(name string, def float64) (float64, error) {
	if o == nil || o.Parameters == nil {
		return def, nil
	}
	raw, ok := o.Parameters[name]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: operation %q parameter %q: %v", ErrInvalidParameter, o.Name, name, err)
	}
	return v, nil
}

// Key is the operation identity used in cache keys: the name followed by
// the parameters sorted by name, as in Sobel{scale=10}. It is empty for the
// identity operation.
func (o *Operation) Key() string {
	if o == nil {
		return ""
	}
	if len(o.Parameters) == 0 {
		return o.Name
	}
	names := make([]string, 0, len(o.Parameters))
	for k := range o.Parameters {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(o.Name)
	b.WriteByte('{')
	for i, k := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(o.Parameters[k])
	}
	b.WriteByte('}')
	return b.String()
}

// OperationName returns the operation name, or "" for the identity
// operation.
func OperationName(o *Operation) string {
	if o == nil {
		return ""
	}
	return o.Name
}
