package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrDuplicateTable is returned when two tables share a name.
var ErrDuplicateTable = errors.New("duplicate table name")

// TableSpec describes one source table.
type TableSpec struct {
	Name string `yaml:"name"`
	// Path is resolved against the catalog data directory when relative.
	Path string `yaml:"path"`
	// Sheet selects a worksheet in spreadsheet files; empty means the first.
	Sheet string `yaml:"sheet,omitempty"`
	// SkipRows drops leading rows (titles, banners) before the data or header row.
	SkipRows int `yaml:"skip_rows,omitempty"`
	// Header marks the first row after SkipRows as column names.
	Header bool `yaml:"header,omitempty"`
	// Columns defaults to PositionalMapping when empty.
	Columns Mapping `yaml:"columns,omitempty"`
}

// Manifest lists the catalog tables, in load order, and the cleaning rules.
type Manifest struct {
	Sentinel      string           `yaml:"sentinel,omitempty"`
	MissingTokens []string         `yaml:"missing_tokens,omitempty"`
	Defaults      map[Field]string `yaml:"defaults,omitempty"`
	Tables        []TableSpec      `yaml:"tables"`
}

// DefaultManifest describes the two catalog workbooks the project ships with.
func DefaultManifest() Manifest {
	return Manifest{
		Tables: []TableSpec{
			{Name: "peinture", Path: "Peinture_et_Calligraphie.xlsx", SkipRows: 2, Columns: PositionalMapping()},
			{Name: "poterie", Path: "Poterie_et_Céramique.xlsx", SkipRows: 2, Columns: PositionalMapping()},
		},
	}
}

// LoadManifest reads and validates a YAML manifest.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	m.fill()
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m *Manifest) fill() {
	for i := range m.Tables {
		if len(m.Tables[i].Columns) == 0 {
			m.Tables[i].Columns = PositionalMapping()
		}
		if m.Tables[i].Name == "" {
			m.Tables[i].Name = m.Tables[i].Path
		}
	}
}

// Validate checks every table mapping. Table names prefix document IDs,
// so they must be unique.
func (m Manifest) Validate() error {
	if len(m.Tables) == 0 {
		return fmt.Errorf("manifest lists no tables")
	}
	if err := m.checkUniqueNames(); err != nil {
		return err
	}
	for f := range m.Defaults {
		if !f.valid() {
			return fmt.Errorf("defaults: unknown field %q", f)
		}
	}
	for _, t := range m.Tables {
		if t.Path == "" {
			return fmt.Errorf("table %q: path is required", t.Name)
		}
		if t.SkipRows < 0 {
			return fmt.Errorf("table %q: skip_rows must not be negative", t.Name)
		}
		if err := t.Columns.Validate(); err != nil {
			return fmt.Errorf("table %q: %w", t.Name, err)
		}
		if t.Columns.UsesHeaders() && !t.Header {
			return fmt.Errorf("table %q: %w: columns are addressed by header but header is false", t.Name, ErrIncompleteMapping)
		}
	}
	return nil
}

func (m Manifest) checkUniqueNames() error {
	seen := make(map[string]bool, len(m.Tables))
	for _, t := range m.Tables {
		name := t.Name
		if name == "" {
			name = t.Path
		}
		if seen[name] {
			return fmt.Errorf("table %q: %w", name, ErrDuplicateTable)
		}
		seen[name] = true
	}
	return nil
}

// WithFallbacks fills the sentinel and the certification default from
// service configuration when the manifest leaves them unset.
func (m Manifest) WithFallbacks(sentinel, certification string) Manifest {
	if m.Sentinel == "" {
		m.Sentinel = sentinel
	}
	if certification != "" && m.Defaults[FieldCertification] == "" {
		defaults := make(map[Field]string, len(m.Defaults)+1)
		for f, v := range m.Defaults {
			defaults[f] = v
		}
		defaults[FieldCertification] = certification
		m.Defaults = defaults
	}
	return m
}

// Options returns the normalization options declared by the manifest.
// Unset values fall back to DefaultOptions.
func (m Manifest) Options() Options {
	opts := DefaultOptions()
	if m.Sentinel != "" {
		opts.Sentinel = m.Sentinel
	}
	if m.MissingTokens != nil {
		opts.MissingTokens = m.MissingTokens
	}
	for f, v := range m.Defaults {
		opts.Defaults[f] = v
	}
	return opts
}
