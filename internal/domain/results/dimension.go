// Package results contains the VESPA results domain: per-cycle scores,
// canonical student records, trends, RAG ratings and the in-memory view
// engine (filter, sort, paginate). This package has zero external dependencies.
package results

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIMENSIONS
// ══════════════════════════════════════════════════════════════════════════════

// Dimension is one of the six VESPA score dimensions.
type Dimension string

const (
	DimensionVision   Dimension = "vision"
	DimensionEffort   Dimension = "effort"
	DimensionSystems  Dimension = "systems"
	DimensionPractice Dimension = "practice"
	DimensionAttitude Dimension = "attitude"
	DimensionOverall  Dimension = "overall"
)

// AllDimensions returns the dimensions in display order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionVision,
		DimensionEffort,
		DimensionSystems,
		DimensionPractice,
		DimensionAttitude,
		DimensionOverall,
	}
}

// dimensionTheme holds display data for a dimension.
type dimensionTheme struct {
	label  string
	letter string
	color  string
}

var dimensionThemes = map[Dimension]dimensionTheme{
	DimensionVision:   {label: "Vision", letter: "V", color: "#ff8f00"},
	DimensionEffort:   {label: "Effort", letter: "E", color: "#86b4f0"},
	DimensionSystems:  {label: "Systems", letter: "S", color: "#72cb44"},
	DimensionPractice: {label: "Practice", letter: "P", color: "#7f31a4"},
	DimensionAttitude: {label: "Attitude", letter: "A", color: "#f032e6"},
	DimensionOverall:  {label: "Overall", letter: "O", color: "#2a3c7a"},
}

// ParseDimension parses a dimension name (case-insensitive).
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown dimension %q", s)
	}
	return d, nil
}

// IsValid reports whether d is a known dimension.
func (d Dimension) IsValid() bool {
	_, ok := dimensionThemes[d]
	return ok
}

// Label returns the human-readable name, e.g. "Vision".
func (d Dimension) Label() string { return dimensionThemes[d].label }

// Letter returns the single-letter abbreviation used in column headers.
func (d Dimension) Letter() string { return dimensionThemes[d].letter }

// Color returns the theme colour used by charts.
func (d Dimension) Color() string { return dimensionThemes[d].color }

// ══════════════════════════════════════════════════════════════════════════════
// CYCLES
// ══════════════════════════════════════════════════════════════════════════════

// Cycle is a measurement period number (1..3).
type Cycle int

const (
	CycleOne   Cycle = 1
	CycleTwo   Cycle = 2
	CycleThree Cycle = 3

	// MaxCycles is the number of measurement cycles per academic year.
	MaxCycles = 3
)

// AllCycles returns the cycles in ascending order.
func AllCycles() []Cycle {
	return []Cycle{CycleOne, CycleTwo, CycleThree}
}

// IsValid reports whether c is within 1..MaxCycles.
func (c Cycle) IsValid() bool {
	return c >= CycleOne && c <= MaxCycles
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORES
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MinScore is the lowest valid VESPA score.
	MinScore = 1
	// MaxScore is the highest valid VESPA score.
	MaxScore = 10
)

// Score is a nullable VESPA score. A valid score is always within
// MinScore..MaxScore. It marshals to a JSON number or null.
type Score struct {
	Value int
	Valid bool
}

// NewScore returns a valid score for v, or a null score when v is out of range.
func NewScore(v int) Score {
	if v < MinScore || v > MaxScore {
		return Score{}
	}
	return Score{Value: v, Valid: true}
}

// NullScore returns an absent score.
func NullScore() Score { return Score{} }

// Int returns the value and whether it is present.
func (s Score) Int() (int, bool) {
	return s.Value, s.Valid
}

// OrZero returns the value, or 0 for a null score.
func (s Score) OrZero() int {
	if !s.Valid {
		return 0
	}
	return s.Value
}

// String renders the score, or an empty string when null.
func (s Score) String() string {
	if !s.Valid {
		return ""
	}
	return fmt.Sprintf("%d", s.Value)
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	*s = NewScore(v)
	return nil
}

// CycleScores holds the six dimension scores recorded in one cycle.
// All six fields always exist; absent values are null scores.
type CycleScores struct {
	Vision   Score `json:"vision"`
	Effort   Score `json:"effort"`
	Systems  Score `json:"systems"`
	Practice Score `json:"practice"`
	Attitude Score `json:"attitude"`
	Overall  Score `json:"overall"`
}

// Get returns the score for a dimension.
func (c CycleScores) Get(d Dimension) Score {
	switch d {
	case DimensionVision:
		return c.Vision
	case DimensionEffort:
		return c.Effort
	case DimensionSystems:
		return c.Systems
	case DimensionPractice:
		return c.Practice
	case DimensionAttitude:
		return c.Attitude
	case DimensionOverall:
		return c.Overall
	default:
		return Score{}
	}
}

// Set assigns the score for a dimension. Unknown dimensions are ignored.
func (c *CycleScores) Set(d Dimension, s Score) {
	switch d {
	case DimensionVision:
		c.Vision = s
	case DimensionEffort:
		c.Effort = s
	case DimensionSystems:
		c.Systems = s
	case DimensionPractice:
		c.Practice = s
	case DimensionAttitude:
		c.Attitude = s
	case DimensionOverall:
		c.Overall = s
	}
}

// Count returns the number of non-null scores.
func (c CycleScores) Count() int {
	n := 0
	for _, d := range AllDimensions() {
		if c.Get(d).Valid {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no dimension was recorded.
func (c CycleScores) IsEmpty() bool {
	return c.Count() == 0
}
