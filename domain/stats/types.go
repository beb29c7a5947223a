package stats

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"adamstat/domain/core"
)

// Sidedness selects the alternative hypothesis of a one-sample t-test
type Sidedness int

const (
	// TwoSided tests mean != reference and reports both CI bounds
	TwoSided Sidedness = iota
	// UpperOneSided tests mean > reference and reports a lower CI bound
	UpperOneSided
	// LowerOneSided tests mean < reference and reports an upper CI bound
	LowerOneSided
)

// String returns the canonical token for the sidedness
func (s Sidedness) String() string {
	switch s {
	case TwoSided:
		return "two"
	case UpperOneSided:
		return "upper"
	case LowerOneSided:
		return "lower"
	default:
		return fmt.Sprintf("Sidedness(%d)", int(s))
	}
}

// IsValid reports whether s is one of the three recognized variants
func (s Sidedness) IsValid() bool {
	return s == TwoSided || s == UpperOneSided || s == LowerOneSided
}

// IsOneSided reports whether only one CI bound applies
func (s Sidedness) IsOneSided() bool {
	return s == UpperOneSided || s == LowerOneSided
}

// MarshalText implements encoding.TextMarshaler
func (s Sidedness) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, core.NewParameterError("sidedness", fmt.Sprintf("unrecognized value %d", int(s)))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Sidedness) UnmarshalText(text []byte) error {
	parsed, _, err := ParseSidedness(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// sidednessTokens maps every accepted spelling onto the three variants.
var sidednessTokens = map[string]Sidedness{
	"two":             TwoSided,
	"two-sided":       TwoSided,
	"two.sided":       TwoSided,
	"twosided":        TwoSided,
	"both":            TwoSided,
	"upper":           UpperOneSided,
	"greater":         UpperOneSided,
	"upper-one-sided": UpperOneSided,
	"lower":           LowerOneSided,
	"less":            LowerOneSided,
	"lower-one-sided": LowerOneSided,
}

// ParseSidedness converts an external token into a Sidedness. An empty token
// means two-sided.
//
// The legacy token "one" names no tail. It is mapped to UpperOneSided and the
// ambiguous flag is set so callers can surface the mapping.
func ParseSidedness(token string) (s Sidedness, ambiguous bool, err error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return TwoSided, false, nil
	}
	if t == "one" || t == "one-sided" {
		return UpperOneSided, true, nil
	}
	if v, ok := sidednessTokens[t]; ok {
		return v, false, nil
	}
	return TwoSided, false, core.NewParameterError("sidedness",
		fmt.Sprintf("unrecognized token %q (want two, upper or lower)", token))
}

// TestParams holds the scalar inputs of a one-sample t-test
type TestParams struct {
	ReferenceMean float64   `json:"referenceMean"`
	Alpha         float64   `json:"alpha"`
	Sidedness     Sidedness `json:"sidedness"`
}

// Validate checks the parameter preconditions
func (p TestParams) Validate() error {
	if math.IsNaN(p.ReferenceMean) || math.IsInf(p.ReferenceMean, 0) {
		return core.NewParameterError("reference mean", "must be finite")
	}
	if !(p.Alpha > 0 && p.Alpha < 1) {
		return core.NewParameterError("alpha", fmt.Sprintf("must lie in (0,1), got %g", p.Alpha))
	}
	if !p.Sidedness.IsValid() {
		return core.NewParameterError("sidedness", fmt.Sprintf("unrecognized value %d", int(p.Sidedness)))
	}
	return nil
}

// ConfidenceLevel returns (1-alpha) as a percentage
func (p TestParams) ConfidenceLevel() float64 {
	return (1 - p.Alpha) * 100
}

// Bound is a confidence bound that may not apply to the chosen sidedness
type Bound struct {
	Value float64
	Valid bool
}

// NotApplicable is the absent bound of a one-sided interval
var NotApplicable = Bound{}

// Some wraps a computed bound
func Some(v float64) Bound {
	return Bound{Value: v, Valid: true}
}

// MarshalJSON renders an absent bound as null
func (b Bound) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(b.Value, 'g', -1, 64)), nil
}

// UnmarshalJSON accepts a number or null
func (b *Bound) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = NotApplicable
		return nil
	}
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(data)), 64)
	if err != nil {
		return fmt.Errorf("invalid bound %s: %w", data, err)
	}
	*b = Some(v)
	return nil
}

// TestResult is the full-precision outcome of a one-sample t-test.
// Values are never rounded here.
type TestResult struct {
	N         int     `json:"n"`
	Mean      float64 `json:"mean"`
	SD        float64 `json:"sd"`
	StdErr    float64 `json:"stdErr"`
	DF        int     `json:"df"`
	TStat     float64 `json:"tStat"`
	RawPValue float64 `json:"rawPValue"` // two-sided
	PValue    float64 `json:"pValue"`    // adjusted for sidedness
	TCrit     float64 `json:"tCrit"`
	Lower     Bound   `json:"lower"`
	Upper     Bound   `json:"upper"`

	Params TestParams `json:"params"`
}
