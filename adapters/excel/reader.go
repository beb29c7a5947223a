package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"adamstat/domain/core"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// RawRowData represents a row of raw cell text keyed by header
type RawRowData map[string]string

// ExcelData represents a parsed tabular file
type ExcelData struct {
	Headers []string
	Rows    []RawRowData
}

// missingTokens are cell values treated as absent observations
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NAN":  true,
	"NULL": true,
	".":    true,
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   zerolog.Logger
}

// NewDataReader creates a reader that picks CSV or XLSX parsing from the file extension
func NewDataReader(filePath string, logger zerolog.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" || ext == ".txt" {
		fileType = "csv"
	}
	return &DataReader{
		filePath: filePath,
		fileType: fileType,
		logger:   logger.With().Str("component", "data_reader").Str("file", filePath).Logger(),
	}
}

// WithSheet selects the worksheet for XLSX files; the first sheet is used otherwise
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// ReadData reads the file into headers and rows
func (r *DataReader) ReadData() (*ExcelData, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

func (r *DataReader) readExcelData() (*ExcelData, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	r.logger.Debug().Str("sheet", sheet).Int("rows", len(rows)).Dur("elapsed", time.Since(start)).Msg("excel sheet read")

	if len(rows) < 1 {
		return nil, fmt.Errorf("Excel sheet %s has no header row", sheet)
	}
	return r.processRows(rows), nil
}

func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	start := time.Now()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug().Int("rows", len(rows)).Dur("elapsed", time.Since(start)).Msg("csv file read")

	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file has no header row")
	}
	return r.processRows(rows), nil
}

// processRows converts raw string rows into ExcelData
func (r *DataReader) processRows(rows [][]string) *ExcelData {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Info().Int("columns", len(headers)).Int("rows", len(dataRows)).Msg("file processed")
	return &ExcelData{Headers: headers, Rows: dataRows}
}

// HasColumn reports whether the header row contains name
func (d *ExcelData) HasColumn(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// NumericColumn returns the observations of a column in row order with
// missing cells dropped. A column that is absent or empty after dropping
// yields core.ErrMissingColumn; a non-numeric cell yields core.ErrInvalidParameter.
func (d *ExcelData) NumericColumn(name string) (values []float64, dropped int, err error) {
	if !d.HasColumn(name) {
		return nil, 0, core.NewMissingColumnError(name, "not found in header")
	}

	values = make([]float64, 0, len(d.Rows))
	for i, row := range d.Rows {
		cell := row[name]
		if missingTokens[strings.ToUpper(cell)] {
			dropped++
			continue
		}
		v, perr := strconv.ParseFloat(cell, 64)
		if perr != nil || math.IsInf(v, 0) {
			return nil, 0, core.NewParameterError(name, fmt.Sprintf("row %d has non-numeric value %q", i+2, cell))
		}
		if math.IsNaN(v) {
			dropped++
			continue
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return nil, dropped, core.NewMissingColumnError(name, "has no values after dropping missing cells")
	}
	return values, dropped, nil
}
