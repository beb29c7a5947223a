package excel

import (
	"os"
	"path/filepath"
	"testing"

	"adamstat/domain/core"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadCSVNumericColumn(t *testing.T) {
	path := writeFile(t, "raw.csv", "\ufeffUSUBJID,SBP,DBP\n"+
		"P1,120,80\n"+
		"P2,122,\n"+
		"P3,NA,79\n"+
		"P4, 118 ,81\n"+
		"P5,,82\n")

	data, err := NewDataReader(path, zerolog.Nop()).ReadData()
	require.NoError(t, err)
	assert.Equal(t, []string{"USUBJID", "SBP", "DBP"}, data.Headers)
	require.Len(t, data.Rows, 5)

	sbp, dropped, err := data.NumericColumn("SBP")
	require.NoError(t, err)
	assert.Equal(t, []float64{120, 122, 118}, sbp)
	assert.Equal(t, 2, dropped)

	dbp, dropped, err := data.NumericColumn("DBP")
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 79, 81, 82}, dbp)
	assert.Equal(t, 1, dropped)
}

func TestNumericColumnErrors(t *testing.T) {
	path := writeFile(t, "raw.csv", "ID,SBP,EMPTY,NOTE\nP1,120,,abc\nP2,121,NA,def\n")
	data, err := NewDataReader(path, zerolog.Nop()).ReadData()
	require.NoError(t, err)

	_, _, err = data.NumericColumn("HR")
	assert.ErrorIs(t, err, core.ErrMissingColumn)

	_, _, err = data.NumericColumn("EMPTY")
	assert.ErrorIs(t, err, core.ErrMissingColumn)

	_, _, err = data.NumericColumn("NOTE")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
	assert.ErrorContains(t, err, "row 2")
}

func TestReadExcel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{{"ID", "SBP"}, {"P1", 120}, {"P2", 122.5}, {"P3", nil}, {"P4", 118}}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "raw.xlsx")
	require.NoError(t, f.SaveAs(path))

	data, err := NewDataReader(path, zerolog.Nop()).ReadData()
	require.NoError(t, err)

	sbp, dropped, err := data.NumericColumn("SBP")
	require.NoError(t, err)
	assert.Equal(t, []float64{120, 122.5, 118}, sbp)
	assert.Equal(t, 1, dropped)
}

func TestReadDataMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.csv"), zerolog.Nop()).ReadData()
	assert.ErrorContains(t, err, "not found")
}
