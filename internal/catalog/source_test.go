package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeWorkbook(t *testing.T, dir, name string, rows map[string][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for cell, values := range rows {
		values := values
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoad_WorkbookWithSkippedRows(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, dir, "peinture.xlsx", map[string][]any{
		"A1": {"Catalogue peinture et calligraphie"},
		"A3": {"PC-1", "Calligraphie coufique", "calligraphie", "Fès", "2020", "Oui", "label national", "Encre sur papier 50x70 cm, 1200.00 Dhs", "c1.png"},
		"A4": {"PC-2", "Paysage", "peinture", "Marrakech", "", "", "", "Huile sur toile", ""},
	})

	m := Manifest{Tables: []TableSpec{{Name: "peinture", Path: "peinture.xlsx", SkipRows: 2}}}
	m.fill()
	require.NoError(t, m.Validate())

	records, reports, err := Load(m, dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Records)

	first := records[0]
	assert.Equal(t, "PC-1", first.Reference)
	assert.Equal(t, "Calligraphie", first.Category)
	assert.Equal(t, "oui", first.Label)
	assert.Equal(t, "50x70 cm", first.Dimensions)
	assert.Equal(t, "1200.00 Dhs", first.Price)

	second := records[1]
	assert.Equal(t, Sentinel, second.Date)
	assert.Equal(t, "non", second.Label)
	assert.Equal(t, "non disponible", second.Certification)
	assert.Equal(t, "", second.Image)
}

func TestLoad_CSVWithHeaderMapping(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "poterie.csv", "Nom,Référence,Catégorie,Origine,Date,Label,Certification,Description\n"+
		"Vase,PT-1,poterie,Safi,2018,non,,Vase 20 cm\n")

	manifest := `
tables:
  - name: poterie
    path: poterie.csv
    header: true
    columns:
      - {field: reference, header: "Référence"}
      - {field: name, header: "nom"}
      - {field: category, header: "Catégorie"}
      - {field: origin, header: "Origine"}
      - {field: date, header: "Date"}
      - {field: label, header: "Label"}
      - {field: certification, header: "Certification"}
      - {field: description, header: "Description"}
`
	m, err := ParseManifest([]byte(manifest))
	require.NoError(t, err)

	records, _, err := Load(m, dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PT-1", records[0].Reference)
	assert.Equal(t, "Vase", records[0].Name)
	assert.Equal(t, "20 cm", records[0].Dimensions)
	assert.Equal(t, "non disponible", records[0].Certification)
}

func TestLoad_CSVByteOrderMarkStripped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "poterie.csv", "\ufeffPT-1,Vase,poterie,Safi,2018,non,,Vase 20 cm\n")

	m := Manifest{Tables: []TableSpec{{Name: "poterie", Path: "poterie.csv"}}}
	m.fill()

	records, _, err := Load(m, dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PT-1", records[0].Reference)
}

func TestLoad_FailedTableSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.csv", "R1,Bol\n")

	m := Manifest{Tables: []TableSpec{
		{Name: "missing", Path: "missing.xlsx"},
		{Name: "ok", Path: "ok.csv"},
	}}
	m.fill()

	records, reports, err := Load(m, dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, reports, 2)
	assert.Error(t, reports[0].Err)
	assert.NoError(t, reports[1].Err)
}

func TestLoad_AllTablesFail(t *testing.T) {
	m := Manifest{Tables: []TableSpec{
		{Name: "a", Path: "a.xlsx"},
		{Name: "b", Path: "b.txt"},
	}}
	m.fill()

	_, reports, err := Load(m, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Len(t, reports, 2)
}

func TestLoad_UnknownHeaderFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "t.csv", "a,b\n1,2\n")

	spec := TableSpec{Name: "t", Path: "t.csv", Header: true, Columns: Mapping{{Field: FieldReference, Header: "Ref"}}}
	_, err := LoadTable(spec, dir)
	assert.True(t, errors.Is(err, ErrIncompleteMapping))
}

func TestMappingValidate(t *testing.T) {
	assert.NoError(t, PositionalMapping().Validate())

	incomplete := PositionalMapping()[:7]
	err := incomplete.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompleteMapping))
	assert.Contains(t, err.Error(), "description")

	withoutImage := PositionalMapping()[:8]
	assert.NoError(t, withoutImage.Validate(), "image is optional")

	dup := append(PositionalMapping(), Binding{Field: FieldName, Header: "Nom"})
	assert.Error(t, dup.Validate())

	unknown := append(PositionalMapping(), Binding{Field: "price", Header: "Prix"})
	assert.Error(t, unknown.Validate())
}

func TestParseManifest_HeaderMappingRequiresHeaderRow(t *testing.T) {
	_, err := ParseManifest([]byte(`
tables:
  - path: x.csv
    columns:
      - {field: reference, header: Ref}
`))
	require.Error(t, err)
}

func TestManifestWithFallbacks(t *testing.T) {
	m := DefaultManifest().WithFallbacks("N/D", "aucune")
	opts := m.Options()

	assert.Equal(t, "N/D", opts.Sentinel)
	assert.Equal(t, "aucune", opts.Defaults[FieldCertification])
	assert.Equal(t, "non", opts.Defaults[FieldLabel])

	explicit := Manifest{Sentinel: "?", Defaults: map[Field]string{FieldCertification: "-"}}
	explicit = explicit.WithFallbacks("N/D", "aucune")
	assert.Equal(t, "?", explicit.Sentinel)
	assert.Equal(t, "-", explicit.Defaults[FieldCertification])
}

func TestParseManifest_DuplicateTableNames(t *testing.T) {
	_, err := ParseManifest([]byte(`
tables:
  - {name: poterie, path: a.csv}
  - {name: poterie, path: b.csv}
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTable))

	// Unnamed tables take their path as name.
	_, err = ParseManifest([]byte(`
tables:
  - {path: a.csv}
  - {path: a.csv, skip_rows: 1}
`))
	assert.True(t, errors.Is(err, ErrDuplicateTable))
}

func TestLoad_DuplicateTableNamesRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "R1,Bol\n")
	writeFile(t, dir, "b.csv", "R2,Vase\n")

	m := Manifest{Tables: []TableSpec{
		{Name: "poterie", Path: "a.csv"},
		{Name: "poterie", Path: "b.csv"},
	}}
	m.fill()

	records, _, err := Load(m, dir)
	assert.True(t, errors.Is(err, ErrDuplicateTable))
	assert.Empty(t, records)
}
