package adam

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adamstat/adapters/stats/engine"
	"adamstat/domain/adam"
	"adamstat/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"pgregory.net/rapid"
)

func sbpRecords(t *testing.T, s stats.Sidedness) []adam.ResultRecord {
	t.Helper()
	p := stats.TestParams{ReferenceMean: 120, Alpha: 0.05, Sidedness: s}
	res, err := engine.NewTTestEngine().Compute([]float64{120, 122, 118, 125, 119, 121, 123, 117}, p)
	require.NoError(t, err)
	return adam.BuildRecords(res, adam.Meta{
		SubjectID:    "CAMIS-PT-001",
		Column:       "SBP",
		AnalysisDate: "2026-10-16",
		Sidedness:    s,
		Alpha:        0.05,
	})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sbpRecords(t, stats.TwoSided)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "USUBJID,PARAMCD,PARAM,AVAL,AVALC,ADT,ASEQ,ANL01FL", lines[0])
	assert.Equal(t, "CAMIS-PT-001,MEAN,Mean SBP,120.63,120.63,2026-10-16,1,Y", lines[1])
	assert.Equal(t, "CAMIS-PT-001,DF,Degrees of Freedom,7,7,2026-10-16,4,Y", lines[4])
	assert.Equal(t, "CAMIS-PT-001,CIHIGH,Upper 95% CI SBP,122.8566,122.8566,2026-10-16,8,Y", lines[8])
}

func TestCSVRoundTrip(t *testing.T) {
	records := sbpRecords(t, stats.LowerOneSided)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))
	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, back)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("USUBJID,PARAMCD\nA,MEAN\n"))
	assert.ErrorContains(t, err, "missing column")
}

func TestProperty_TabularRoundTripWithinPrecision(t *testing.T) {
	codes := []adam.ParamCode{
		adam.ParamMean, adam.ParamSD, adam.ParamSE, adam.ParamTStat,
		adam.ParamPValue, adam.ParamCILow, adam.ParamCIHigh,
	}
	rapid.Check(t, func(rt *rapid.T) {
		code := rapid.SampledFrom(codes).Draw(rt, "code")
		v := rapid.Float64Range(-1e6, 1e6).Draw(rt, "value")

		aval, avalc := adam.Format(code, v)
		rec := adam.ResultRecord{USUBJID: "S", PARAMCD: code, PARAM: "p", AVAL: aval, AVALC: avalc, ADT: "2026-01-01", ASEQ: 1, ANL01FL: "Y"}

		var buf bytes.Buffer
		require.NoError(rt, WriteCSV(&buf, []adam.ResultRecord{rec}))
		back, err := ReadCSV(&buf)
		require.NoError(rt, err)
		require.Len(rt, back, 1)

		places, _ := adam.Precision(code)
		tolerance := 0.5*math.Pow(10, -float64(places)) + 1e-9*math.Abs(v)
		assert.InDelta(rt, v, back[0].AVAL, tolerance)
		assert.Equal(rt, avalc, back[0].AVALC)
	})
}

func TestNewDataset(t *testing.T) {
	records := sbpRecords(t, stats.UpperOneSided)
	created := time.Date(2026, 10, 16, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	ds := NewDataset(records, created)
	assert.Equal(t, "2026-10-16T07:30:00Z", ds.CreationDateTime)
	assert.Equal(t, "1.1.0", ds.Version)
	assert.Equal(t, "IG.BDS.SUMMARY", ds.ItemGroupOID)
	assert.Equal(t, 7, ds.Records)
	require.Len(t, ds.Columns, len(Columns))
	for i, c := range ds.Columns {
		assert.Equal(t, Columns[i], c.Name)
		assert.Equal(t, "IT.BDS."+c.Name, c.ItemOID)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, ds))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	cols := raw["columns"].([]any)
	keys := map[string]float64{}
	for _, c := range cols {
		m := c.(map[string]any)
		if ks, ok := m["keySequence"]; ok {
			keys[m["name"].(string)] = ks.(float64)
		}
	}
	assert.Equal(t, map[string]float64{"USUBJID": 1, "ADT": 2, "ASEQ": 3}, keys)

	first := raw["rows"].([]any)[0].([]any)
	assert.Equal(t, []any{"CAMIS-PT-001", "MEAN", "Mean SBP", 120.63, "120.63", "2026-10-16", float64(1), "Y"}, first)
	assert.Contains(t, buf.String(), `"AVAL"`)
	assert.Contains(t, buf.String(), "118.8370,")
}

func TestDatasetJSONRoundTrip(t *testing.T) {
	records := sbpRecords(t, stats.TwoSided)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewDataset(records, time.Now())))

	ds, err := ReadJSON(&buf)
	require.NoError(t, err)
	back, err := ds.ResultRecords()
	require.NoError(t, err)
	assert.Equal(t, records, back)
}

func TestReadJSON_RecordCountMismatch(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"records": 2, "rows": [[]]}`))
	assert.ErrorContains(t, err, "record count")
}

func TestWriteXLSX(t *testing.T) {
	records := sbpRecords(t, stats.TwoSided)
	path := filepath.Join(t.TempDir(), "adam_bds.xlsx")
	require.NoError(t, WriteXLSX(path, records))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, len(records)+1)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "MEAN", rows[1][1])
	assert.Equal(t, "120.63", rows[1][4])
	assert.Equal(t, "8", rows[8][6])
}
