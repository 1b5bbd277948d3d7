package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteMapping is returned when a required field has no source column.
var ErrIncompleteMapping = errors.New("incomplete column mapping")

// Binding pairs a canonical field with a source column, addressed either by
// zero-based index or by header name.
type Binding struct {
	Field  Field  `yaml:"field"`
	Index  *int   `yaml:"index,omitempty"`
	Header string `yaml:"header,omitempty"`
}

// Mapping is the ordered list of field bindings for one table.
type Mapping []Binding

// PositionalMapping maps Fields to columns 0..8 in order.
func PositionalMapping() Mapping {
	m := make(Mapping, len(Fields))
	for i, f := range Fields {
		idx := i
		m[i] = Binding{Field: f, Index: &idx}
	}
	return m
}

// UsesHeaders reports whether any binding is addressed by header name.
func (m Mapping) UsesHeaders() bool {
	for _, b := range m {
		if b.Index == nil {
			return true
		}
	}
	return false
}

// Validate checks that the mapping is well formed and total over the
// required fields.
func (m Mapping) Validate() error {
	seen := make(map[Field]bool, len(m))
	for _, b := range m {
		if !b.Field.valid() {
			return fmt.Errorf("unknown field %q", b.Field)
		}
		if seen[b.Field] {
			return fmt.Errorf("field %q mapped twice", b.Field)
		}
		seen[b.Field] = true

		switch {
		case b.Index != nil && b.Header != "":
			return fmt.Errorf("field %q: set either index or header, not both", b.Field)
		case b.Index == nil && strings.TrimSpace(b.Header) == "":
			return fmt.Errorf("field %q: no source column", b.Field)
		case b.Index != nil && *b.Index < 0:
			return fmt.Errorf("field %q: negative column index %d", b.Field, *b.Index)
		}
	}

	var missing []string
	for _, f := range Fields {
		if f.Required() && !seen[f] {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unmapped %s", ErrIncompleteMapping, strings.Join(missing, ", "))
	}
	return nil
}

// Resolve turns the mapping into column indexes. Header-addressed bindings
// are looked up in header, ignoring case and surrounding whitespace.
func (m Mapping) Resolve(header []string) (map[Field]int, error) {
	cols := make(map[Field]int, len(m))
	for _, b := range m {
		if b.Index != nil {
			cols[b.Field] = *b.Index
			continue
		}
		idx := indexOf(header, b.Header)
		if idx < 0 {
			return nil, fmt.Errorf("%w: header %q for field %q not found", ErrIncompleteMapping, b.Header, b.Field)
		}
		cols[b.Field] = idx
	}
	return cols, nil
}

func indexOf(header []string, name string) int {
	name = strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
