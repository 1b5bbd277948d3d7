package catalog

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Catalogue"

var exportHeader = []any{
	"Table", "Ligne", "Référence", "Nom", "Catégorie", "Origine", "Date",
	"Label", "Certification", "Description", "Image", "Dimensions", "Prix",
}

// WriteWorkbook writes normalized records to a single-sheet workbook, one
// row per record after a header row.
func WriteWorkbook(path string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return fmt.Errorf("opening stream writer: %w", err)
	}
	if err := sw.SetRow("A1", exportHeader, excelize.RowOpts{}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.Table, r.Row, r.Reference, r.Name, r.Category, r.Origin, r.Date,
			r.Label, r.Certification, r.Description, r.Image, r.Dimensions, r.Price,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing rows: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
