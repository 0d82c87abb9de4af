package results

import (
	"sort"
	"strconv"
)

// FilterOptions are the values offered by the selector controls.
type FilterOptions struct {
	YearGroups []string     `json:"year_groups"`
	Faculties  []string     `json:"faculties"`
	Groups     []string     `json:"groups"`
	Roles      []RoleOption `json:"roles"`
	PageSizes  []int        `json:"page_sizes"`
}

// BuildFilterOptions collects the distinct non-empty identity values of all
// students. scope may be nil, in which case no role options are offered.
func BuildFilterOptions(all []StudentRecord, scope *AccessScope) FilterOptions {
	yearGroups := map[string]struct{}{}
	faculties := map[string]struct{}{}
	groups := map[string]struct{}{}

	for i := range all {
		if v := all[i].YearGroup; v != "" {
			yearGroups[v] = struct{}{}
		}
		if v := all[i].Faculty; v != "" {
			faculties[v] = struct{}{}
		}
		if v := all[i].Group; v != "" {
			groups[v] = struct{}{}
		}
	}

	opts := FilterOptions{
		YearGroups: sortedKeys(yearGroups),
		Faculties:  sortedKeys(faculties),
		Groups:     sortedKeys(groups),
		Roles:      []RoleOption{},
		PageSizes:  PageSizes(),
	}
	if scope != nil {
		if roles := scope.AvailableRoles(); roles != nil {
			opts.Roles = roles
		}
	}
	return opts
}

// sortedKeys orders numerically when both values are integers ("9" < "10"),
// lexically otherwise.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i])
		b, errB := strconv.Atoi(out[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// ColumnVisibility maps column keys ("vision_1", "vision_trend") to visibility.
type ColumnVisibility map[string]bool

// ComputeColumnVisibility shows a score column when any student has a value
// for it, and a trend column when any of its dimension's columns is shown.
func ComputeColumnVisibility(students []StudentRecord) ColumnVisibility {
	cols := make(ColumnVisibility, len(dimensionThemes)*(MaxCycles+1))
	for _, d := range AllDimensions() {
		anyCycle := false
		for _, c := range AllCycles() {
			visible := false
			for i := range students {
				if students[i].Score(d, c).Valid {
					visible = true
					break
				}
			}
			cols[ScoreField(d, c)] = visible
			anyCycle = anyCycle || visible
		}
		cols[TrendField(d)] = anyCycle
	}
	return cols
}

// Toggle flips a column's visibility. Unknown keys are ignored.
func (c ColumnVisibility) Toggle(key string) {
	if v, ok := c[key]; ok {
		c[key] = !v
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CHART DATA
// ══════════════════════════════════════════════════════════════════════════════

// ChartPoint is one populated value of a series.
type ChartPoint struct {
	Cycle Cycle   `json:"cycle"`
	Value float64 `json:"value"`
}

// ChartSeries is the progression of one dimension.
type ChartSeries struct {
	Dimension Dimension    `json:"dimension"`
	Label     string       `json:"label"`
	Color     string       `json:"color"`
	Points    []ChartPoint `json:"points"`
}

// StudentChart is the per-student progress chart.
type StudentChart struct {
	StudentID string              `json:"student_id"`
	Name      string              `json:"name"`
	Series    []ChartSeries       `json:"series"`
	Trends    map[Dimension]Trend `json:"trends"`
}

// BuildStudentChart returns one series per dimension with a point for every
// populated cycle.
func BuildStudentChart(s *StudentRecord) StudentChart {
	chart := StudentChart{StudentID: s.ID, Name: s.Name, Trends: s.Trends}
	for _, d := range AllDimensions() {
		series := ChartSeries{Dimension: d, Label: d.Label(), Color: d.Color(), Points: []ChartPoint{}}
		for _, c := range AllCycles() {
			if v, ok := s.Score(d, c).Int(); ok {
				series.Points = append(series.Points, ChartPoint{Cycle: c, Value: float64(v)})
			}
		}
		chart.Series = append(chart.Series, series)
	}
	return chart
}

// CycleAverages holds the group average of each dimension in one cycle.
type CycleAverages struct {
	Cycle    Cycle                 `json:"cycle"`
	Averages map[Dimension]float64 `json:"averages"`
	Students int                   `json:"students"`
}

// GroupAnalytics summarizes a set of students per cycle.
type GroupAnalytics struct {
	TotalStudents int             `json:"total_students"`
	Cycles        []CycleAverages `json:"cycles"`
}

// BuildGroupAnalytics averages non-null values per dimension and cycle,
// rounded to one decimal. Cycles without any data are omitted; a dimension
// without data in a present cycle averages to 0.
func BuildGroupAnalytics(students []StudentRecord) GroupAnalytics {
	out := GroupAnalytics{TotalStudents: len(students), Cycles: []CycleAverages{}}

	for _, c := range AllCycles() {
		avg := CycleAverages{Cycle: c, Averages: make(map[Dimension]float64, len(dimensionThemes))}
		hasData := false

		for _, d := range AllDimensions() {
			sum, n := 0, 0
			for i := range students {
				if v, ok := students[i].Score(d, c).Int(); ok {
					sum += v
					n++
				}
			}
			if n > 0 {
				avg.Averages[d] = roundOneDecimal(float64(sum) / float64(n))
				hasData = true
			} else {
				avg.Averages[d] = 0
			}
		}

		for i := range students {
			if _, ok := students[i].Cycles[c]; ok {
				avg.Students++
			}
		}

		if hasData {
			out.Cycles = append(out.Cycles, avg)
		}
	}
	return out
}

func roundOneDecimal(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
