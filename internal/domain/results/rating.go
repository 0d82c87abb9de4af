package results

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Rating is the RAG band of a score, used for colour coding.
type Rating string

const (
	RatingNone       Rating = "none"
	RatingRed        Rating = "red"
	RatingAmber      Rating = "amber"
	RatingLightGreen Rating = "lightGreen"
	RatingDarkGreen  Rating = "darkGreen"
)

// RatingStyle is the presentation attached to a rating.
type RatingStyle struct {
	Label      string `json:"label"`
	Color      string `json:"color"`
	Background string `json:"background"`
}

var ratingStyles = map[Rating]RatingStyle{
	RatingRed:        {Label: "Needs Improvement", Color: "#dc3545", Background: "#fee"},
	RatingAmber:      {Label: "Developing", Color: "#ffc107", Background: "#fff3cd"},
	RatingLightGreen: {Label: "Good", Color: "#28a745", Background: "#d4edda"},
	RatingDarkGreen:  {Label: "Excellent", Color: "#155724", Background: "#c3e6cb"},
}

// Style returns the label and colours for r. RatingNone has an empty style
// and must be rendered as a neutral cell.
func (r Rating) Style() RatingStyle {
	return ratingStyles[r]
}

// Classify maps an integer score to its band:
// 1-3 red, 4-5 amber, 6-8 light green, 9-10 dark green, anything else none.
func Classify(score int) Rating {
	switch {
	case score >= 1 && score <= 3:
		return RatingRed
	case score >= 4 && score <= 5:
		return RatingAmber
	case score >= 6 && score <= 8:
		return RatingLightGreen
	case score >= 9 && score <= 10:
		return RatingDarkGreen
	default:
		return RatingNone
	}
}

// ClassifyScore classifies a nullable score.
func ClassifyScore(s Score) Rating {
	if !s.Valid {
		return RatingNone
	}
	return Classify(s.Value)
}

// ClassifyValue classifies an arbitrary value: integers, integral floats,
// numeric strings and Scores. Everything else yields RatingNone.
func ClassifyValue(v any) Rating {
	switch x := v.(type) {
	case nil:
		return RatingNone
	case int:
		return Classify(x)
	case int64:
		return Classify(int(x))
	case int32:
		return Classify(int(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return RatingNone
		}
		return Classify(int(x))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return RatingNone
		}
		return Classify(n)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return RatingNone
		}
		return Classify(int(n))
	case Score:
		return ClassifyScore(x)
	case *Score:
		if x == nil {
			return RatingNone
		}
		return ClassifyScore(*x)
	default:
		return RatingNone
	}
}
