package adam

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"adamstat/domain/adam"
)

// Dataset-JSON envelope constants
const (
	DatasetJSONVersion = "1.1.0"
	ItemGroupOID       = "IG.BDS.SUMMARY"
	DatasetName        = "BDS_SUMMARY"
	DatasetLabel       = "Summary Statistics BDS"
	CreationLayout     = "2006-01-02T15:04:05Z"
)

// Column is one Dataset-JSON column definition
type Column struct {
	ItemOID     string `json:"itemOID"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	DataType    string `json:"dataType"`
	KeySequence int    `json:"keySequence,omitempty"`
}

// Dataset is a CDISC Dataset-JSON v1.1 document holding BDS records
type Dataset struct {
	CreationDateTime string   `json:"datasetJSONCreationDateTime"`
	Version          string   `json:"datasetJSONVersion"`
	ItemGroupOID     string   `json:"itemGroupOID"`
	Name             string   `json:"name"`
	Label            string   `json:"label"`
	Records          int      `json:"records"`
	Columns          []Column `json:"columns"`
	Rows             [][]any  `json:"rows"`
}

// BDSColumns describes the fixed BDS columns, in Columns order
var BDSColumns = []Column{
	{ItemOID: "IT.BDS.USUBJID", Name: "USUBJID", Label: "Subject ID", DataType: "string", KeySequence: 1},
	{ItemOID: "IT.BDS.PARAMCD", Name: "PARAMCD", Label: "Parameter Code", DataType: "string"},
	{ItemOID: "IT.BDS.PARAM", Name: "PARAM", Label: "Parameter Description", DataType: "string"},
	{ItemOID: "IT.BDS.AVAL", Name: "AVAL", Label: "Analysis Value", DataType: "decimal"},
	{ItemOID: "IT.BDS.AVALC", Name: "AVALC", Label: "Analysis Value (char)", DataType: "string"},
	{ItemOID: "IT.BDS.ADT", Name: "ADT", Label: "Analysis Date", DataType: "date", KeySequence: 2},
	{ItemOID: "IT.BDS.ASEQ", Name: "ASEQ", Label: "Analysis Sequence", DataType: "integer", KeySequence: 3},
	{ItemOID: "IT.BDS.ANL01FL", Name: "ANL01FL", Label: "Flag analysis 01", DataType: "string"},
}

// NewDataset wraps records in a Dataset-JSON envelope stamped with createdAt (UTC)
func NewDataset(records []adam.ResultRecord, createdAt time.Time) *Dataset {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.USUBJID,
			string(r.PARAMCD),
			r.PARAM,
			json.Number(r.AVALC),
			r.AVALC,
			r.ADT,
			r.ASEQ,
			r.ANL01FL,
		})
	}

	columns := make([]Column, len(BDSColumns))
	copy(columns, BDSColumns)

	return &Dataset{
		CreationDateTime: createdAt.UTC().Format(CreationLayout),
		Version:          DatasetJSONVersion,
		ItemGroupOID:     ItemGroupOID,
		Name:             DatasetName,
		Label:            DatasetLabel,
		Records:          len(rows),
		Columns:          columns,
		Rows:             rows,
	}
}

// WriteJSON writes the dataset as indented JSON
func WriteJSON(w io.Writer, ds *Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("failed to encode Dataset-JSON: %w", err)
	}
	return nil
}

// ReadJSON decodes a Dataset-JSON document
func ReadJSON(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode Dataset-JSON: %w", err)
	}
	if ds.Records != len(ds.Rows) {
		return nil, fmt.Errorf("record count %d does not match %d rows", ds.Records, len(ds.Rows))
	}
	return &ds, nil
}

// ResultRecords converts the dataset rows back into records
func (ds *Dataset) ResultRecords() ([]adam.ResultRecord, error) {
	index := make(map[string]int, len(ds.Columns))
	for i, c := range ds.Columns {
		index[c.Name] = i
	}
	for _, c := range Columns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("dataset is missing column %s", c)
		}
	}

	records := make([]adam.ResultRecord, 0, len(ds.Rows))
	for i, values := range ds.Rows {
		if len(values) != len(ds.Columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i+1, len(values), len(ds.Columns))
		}
		rec, err := parseRow(func(col string) string { return fmt.Sprint(values[index[col]]) })
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
