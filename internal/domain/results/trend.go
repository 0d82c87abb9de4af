package results

// Trend is the direction of a dimension between the two latest populated cycles.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendSame Trend = "same"
	TrendNone Trend = "none"
)

// Symbol returns the arrow shown in the trend column.
func (t Trend) Symbol() string {
	switch t {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	case TrendSame:
		return "→"
	default:
		return ""
	}
}

// CalculateTrends derives a trend for every dimension.
func CalculateTrends(cycles map[Cycle]CycleScores) map[Dimension]Trend {
	trends := make(map[Dimension]Trend, len(dimensionThemes))
	for _, d := range AllDimensions() {
		trends[d] = CalculateTrend(cycles, d)
	}
	return trends
}

// CalculateTrend compares the two highest-numbered cycles that have a value
// for d. A middle cycle may be missing: cycles 1 and 3 are compared directly.
func CalculateTrend(cycles map[Cycle]CycleScores, d Dimension) Trend {
	var values []int
	for _, c := range AllCycles() {
		scores, ok := cycles[c]
		if !ok {
			continue
		}
		if v, ok := scores.Get(d).Int(); ok {
			values = append(values, v)
		}
	}

	if len(values) < 2 {
		return TrendNone
	}

	earlier, later := values[len(values)-2], values[len(values)-1]
	switch {
	case later > earlier:
		return TrendUp
	case later < earlier:
		return TrendDown
	default:
		return TrendSame
	}
}
