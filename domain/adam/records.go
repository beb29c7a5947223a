package adam

import (
	"fmt"
	"strconv"

	"adamstat/domain/stats"

	"github.com/shopspring/decimal"
)

// ParamCode is a BDS PARAMCD token
type ParamCode string

const (
	ParamMean   ParamCode = "MEAN"
	ParamSD     ParamCode = "SD"
	ParamSE     ParamCode = "SE"
	ParamDF     ParamCode = "DF"
	ParamTStat  ParamCode = "TSTAT"
	ParamPValue ParamCode = "PVALUE"
	ParamCILow  ParamCode = "CILOW"
	ParamCIHigh ParamCode = "CIHIGH"
)

// AnalysisFlag is the constant ANL01FL value
const AnalysisFlag = "Y"

// DateLayout is the ADT rendering
const DateLayout = "2006-01-02"

// paramSpec describes how one parameter is labelled and rendered.
// Places < 0 marks an integer parameter.
type paramSpec struct {
	Places int32
	Label  func(column, level string) string
}

// paramSpecs is the single source of precision and labelling for every output format.
var paramSpecs = map[ParamCode]paramSpec{
	ParamMean:   {Places: 2, Label: func(c, _ string) string { return "Mean " + c }},
	ParamSD:     {Places: 2, Label: func(c, _ string) string { return "SD " + c }},
	ParamSE:     {Places: 4, Label: func(c, _ string) string { return "SE " + c }},
	ParamDF:     {Places: -1, Label: func(_, _ string) string { return "Degrees of Freedom" }},
	ParamTStat:  {Places: 4, Label: func(_, _ string) string { return "t-Statistic" }},
	ParamPValue: {Places: 4, Label: func(_, _ string) string { return "p-Value" }},
	ParamCILow:  {Places: 4, Label: func(c, l string) string { return fmt.Sprintf("Lower %s%% CI %s", l, c) }},
	ParamCIHigh: {Places: 4, Label: func(c, l string) string { return fmt.Sprintf("Upper %s%% CI %s", l, c) }},
}

// Precision returns the number of decimals rendered for code, or -1 for integers
func Precision(code ParamCode) (int32, bool) {
	spec, ok := paramSpecs[code]
	return spec.Places, ok
}

// ResultRecord is one BDS row
type ResultRecord struct {
	USUBJID string    `json:"USUBJID" db:"usubjid"`
	PARAMCD ParamCode `json:"PARAMCD" db:"paramcd"`
	PARAM   string    `json:"PARAM" db:"param"`
	AVAL    float64   `json:"AVAL" db:"aval"`
	AVALC   string    `json:"AVALC" db:"avalc"`
	ADT     string    `json:"ADT" db:"adt"`
	ASEQ    int       `json:"ASEQ" db:"aseq"`
	ANL01FL string    `json:"ANL01FL" db:"anl01fl"`
}

// Meta is the static labelling applied to every record of a run
type Meta struct {
	SubjectID    string
	Column       string
	AnalysisDate string
	Sidedness    stats.Sidedness
	Alpha        float64
}

// Format renders v at the precision of code. Both AVAL and AVALC derive from
// this so tabular and structured outputs cannot disagree.
func Format(code ParamCode, v float64) (float64, string) {
	places := paramSpecs[code].Places
	if places < 0 {
		i := int64(v)
		return float64(i), strconv.FormatInt(i, 10)
	}
	d := decimal.NewFromFloat(v).Round(places)
	return d.InexactFloat64(), d.StringFixed(places)
}

// BuildRecords maps a test result onto the ordered BDS parameter sequence.
// Bounds that do not apply to the sidedness are omitted.
func BuildRecords(result stats.TestResult, meta Meta) []ResultRecord {
	level := confidenceLabel(meta.Alpha)

	type entry struct {
		code  ParamCode
		value float64
	}
	entries := []entry{
		{ParamMean, result.Mean},
		{ParamSD, result.SD},
		{ParamSE, result.StdErr},
		{ParamDF, float64(result.DF)},
		{ParamTStat, result.TStat},
		{ParamPValue, result.PValue},
	}
	if meta.Sidedness != stats.LowerOneSided && result.Lower.Valid {
		entries = append(entries, entry{ParamCILow, result.Lower.Value})
	}
	if meta.Sidedness != stats.UpperOneSided && result.Upper.Valid {
		entries = append(entries, entry{ParamCIHigh, result.Upper.Value})
	}

	records := make([]ResultRecord, 0, len(entries))
	for i, e := range entries {
		aval, avalc := Format(e.code, e.value)
		records = append(records, ResultRecord{
			USUBJID: meta.SubjectID,
			PARAMCD: e.code,
			PARAM:   paramSpecs[e.code].Label(meta.Column, level),
			AVAL:    aval,
			AVALC:   avalc,
			ADT:     meta.AnalysisDate,
			ASEQ:    i + 1,
			ANL01FL: AnalysisFlag,
		})
	}
	return records
}

// confidenceLabel renders (1-alpha) as a percentage without trailing zeros
func confidenceLabel(alpha float64) string {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(alpha)).Shift(2).String()
}
