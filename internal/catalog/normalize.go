package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultMissingTokens are cell values treated as absent.
var DefaultMissingTokens = []string{"", "nan", "N/A", "-"}

// Options control value substitution during normalization.
type Options struct {
	// Sentinel replaces absent values for fields without an explicit default.
	Sentinel string
	// MissingTokens are compared case-insensitively after trimming.
	MissingTokens []string
	// Defaults override Sentinel per field. The image field always defaults to "".
	Defaults map[Field]string
}

// DefaultOptions mirrors the catalog's historical cleaning rules: an unset
// label reads "non" and an unset certification "non disponible".
func DefaultOptions() Options {
	return Options{
		Sentinel:      Sentinel,
		MissingTokens: DefaultMissingTokens,
		Defaults: map[Field]string{
			FieldLabel:         "non",
			FieldCertification: "non disponible",
		},
	}
}

// RawTable is a loaded source table with its columns resolved.
type RawTable struct {
	Name    string
	Rows    [][]string
	Columns map[Field]int
}

// Normalizer converts raw rows into Records. It is not safe for concurrent use.
type Normalizer struct {
	opts    Options
	missing map[string]struct{}
	title   cases.Caser
}

// NewNormalizer creates a Normalizer. Empty options fall back to DefaultOptions.
func NewNormalizer(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.Sentinel == "" {
		opts.Sentinel = def.Sentinel
	}
	if opts.MissingTokens == nil {
		opts.MissingTokens = def.MissingTokens
	}
	if opts.Defaults == nil {
		opts.Defaults = def.Defaults
	}

	missing := make(map[string]struct{}, len(opts.MissingTokens))
	for _, tok := range opts.MissingTokens {
		missing[strings.ToLower(strings.TrimSpace(tok))] = struct{}{}
	}

	return &Normalizer{
		opts:    opts,
		missing: missing,
		title:   cases.Title(language.French),
	}
}

// Sentinel returns the configured placeholder for absent values.
func (n *Normalizer) Sentinel() string {
	return n.opts.Sentinel
}

// Default returns the value substituted for an absent field.
func (n *Normalizer) Default(f Field) string {
	if f == FieldImage {
		return ""
	}
	if v := n.opts.Defaults[f]; v != "" {
		return v
	}
	return n.opts.Sentinel
}

// Normalize converts tables in order and concatenates their records.
func (n *Normalizer) Normalize(tables []RawTable) []Record {
	var out []Record
	for _, t := range tables {
		out = append(out, n.NormalizeTable(t)...)
	}
	return out
}

// NormalizeTable converts every non-blank row of t.
func (n *Normalizer) NormalizeTable(t RawTable) []Record {
	records := make([]Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		rec, ok := n.NormalizeRow(row, t.Columns)
		if !ok {
			continue
		}
		rec.Table = t.Name
		rec.Row = i + 1
		records = append(records, rec)
	}
	return records
}

// NormalizeRow converts one raw row. It returns false when every mapped
// cell is absent.
func (n *Normalizer) NormalizeRow(cells []string, cols map[Field]int) (Record, bool) {
	var rec Record
	present := false

	for _, f := range Fields {
		raw, ok := cell(cells, cols, f)
		if ok && !n.isMissing(raw) {
			present = true
			rec.set(f, n.display(f, strings.TrimSpace(raw)))
			continue
		}
		rec.set(f, n.Default(f))
	}
	if !present {
		return Record{}, false
	}

	rec.Label = strings.ToLower(rec.Label)
	rec.Dimensions = ExtractDimensions(rec.Description, n.opts.Sentinel)
	rec.Price = ExtractPrice(rec.Description, n.opts.Sentinel)
	return rec, true
}

func (n *Normalizer) isMissing(v string) bool {
	_, ok := n.missing[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// display applies cosmetic casing to real values only.
func (n *Normalizer) display(f Field, v string) string {
	switch f {
	case FieldCategory, FieldCertification:
		return n.title.String(v)
	}
	return v
}

func cell(cells []string, cols map[Field]int, f Field) (string, bool) {
	idx, ok := cols[f]
	if !ok || idx >= len(cells) {
		return "", false
	}
	return cells[idx], true
}
