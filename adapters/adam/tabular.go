package adam

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"adamstat/domain/adam"
)

// Columns is the fixed BDS column order shared by every output format
var Columns = []string{"USUBJID", "PARAMCD", "PARAM", "AVAL", "AVALC", "ADT", "ASEQ", "ANL01FL"}

// row renders a record in Columns order. AVAL reuses the fixed-precision AVALC text.
func row(r adam.ResultRecord) []string {
	return []string{
		r.USUBJID,
		string(r.PARAMCD),
		r.PARAM,
		r.AVALC,
		r.AVALC,
		r.ADT,
		strconv.Itoa(r.ASEQ),
		r.ANL01FL,
	}
}

// WriteCSV writes records as a tabular BDS dataset with a header row
func WriteCSV(w io.Writer, records []adam.ResultRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r.ASEQ, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a tabular BDS dataset written by WriteCSV
func ReadCSV(r io.Reader) ([]adam.ResultRecord, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV has no header row")
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[h] = i
	}
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("CSV is missing column %s", c)
		}
	}

	records := make([]adam.ResultRecord, 0, len(rows)-1)
	for i, fields := range rows[1:] {
		rec, err := parseRow(func(col string) string { return fields[index[col]] })
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(get func(col string) string) (adam.ResultRecord, error) {
	aval, err := strconv.ParseFloat(get("AVAL"), 64)
	if err != nil {
		return adam.ResultRecord{}, fmt.Errorf("invalid AVAL %q: %w", get("AVAL"), err)
	}
	aseq, err := strconv.Atoi(get("ASEQ"))
	if err != nil {
		return adam.ResultRecord{}, fmt.Errorf("invalid ASEQ %q: %w", get("ASEQ"), err)
	}
	return adam.ResultRecord{
		USUBJID: get("USUBJID"),
		PARAMCD: adam.ParamCode(get("PARAMCD")),
		PARAM:   get("PARAM"),
		AVAL:    aval,
		AVALC:   get("AVALC"),
		ADT:     get("ADT"),
		ASEQ:    aseq,
		ANL01FL: get("ANL01FL"),
	}, nil
}
