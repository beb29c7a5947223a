package adam

import (
	"fmt"

	"adamstat/domain/adam"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding BDS records in XLSX output
const SheetName = "ADBDS"

// NewWorkbook lays records out on a single ADBDS sheet in Columns order.
// AVAL and ASEQ are stored as numbers, the rest as text.
func NewWorkbook(records []adam.ResultRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := []any{r.USUBJID, string(r.PARAMCD), r.PARAM, r.AVAL, r.AVALC, r.ADT, r.ASEQ, r.ANL01FL}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write record %d: %w", r.ASEQ, err)
		}
	}
	return f, nil
}

// WriteXLSX saves records to an .xlsx workbook at path
func WriteXLSX(path string, records []adam.ResultRecord) error {
	f, err := NewWorkbook(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}
