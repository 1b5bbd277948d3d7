package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoData is returned when no table yields a single record.
var ErrNoData = errors.New("no catalog data")

// TableReport summarizes the outcome of loading one table.
type TableReport struct {
	Name    string
	Path    string
	Records int
	Err     error
}

// LoadTable reads the file behind spec and resolves its column mapping.
func LoadTable(spec TableSpec, dataDir string) (RawTable, error) {
	path := spec.Path
	if !filepath.IsAbs(path) && dataDir != "" {
		path = filepath.Join(dataDir, path)
	}

	rows, err := readRows(path, spec.Sheet)
	if err != nil {
		return RawTable{}, err
	}

	if spec.SkipRows >= len(rows) {
		rows = nil
	} else {
		rows = rows[spec.SkipRows:]
	}

	var header []string
	if spec.Header {
		if len(rows) == 0 {
			return RawTable{}, fmt.Errorf("%s: header row missing", path)
		}
		header, rows = rows[0], rows[1:]
	}

	cols, err := spec.Columns.Resolve(header)
	if err != nil {
		return RawTable{}, err
	}

	return RawTable{Name: spec.Name, Rows: rows, Columns: cols}, nil
}

// Load reads every table in the manifest, in order, and normalizes the rows.
// A table that fails to load is logged and skipped; if nothing remains the
// result is ErrNoData.
func Load(m Manifest, dataDir string) ([]Record, []TableReport, error) {
	if err := m.checkUniqueNames(); err != nil {
		return nil, nil, err
	}
	n := NewNormalizer(m.Options())

	var records []Record
	reports := make([]TableReport, 0, len(m.Tables))
	for _, spec := range m.Tables {
		report := TableReport{Name: spec.Name, Path: spec.Path}

		t, err := LoadTable(spec, dataDir)
		if err != nil {
			slog.Warn("skipping catalog table", "table", spec.Name, "path", spec.Path, "error", err)
			report.Err = err
			reports = append(reports, report)
			continue
		}

		recs := n.NormalizeTable(t)
		report.Records = len(recs)
		reports = append(reports, report)
		records = append(records, recs...)
		slog.Info("catalog table loaded", "table", spec.Name, "rows", len(t.Rows), "records", len(recs))
	}

	if len(records) == 0 {
		return nil, reports, ErrNoData
	}
	return records, reports, nil
}

func readRows(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path, sheet)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("%s: unsupported table format", path)
	}
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if len(rows) == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
