package results

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func student(id, name string, yearGroup string, roles ...RoleTag) StudentRecord {
	s := NewStudentRecord(id)
	s.Name = name
	s.Email = id + "@school.test"
	s.YearGroup = yearGroup
	for _, r := range roles {
		s.AddRole(r)
	}
	return *s
}

func withScore(s StudentRecord, d Dimension, c Cycle, v int) StudentRecord {
	scores := s.Cycles[c]
	scores.Set(d, NewScore(v))
	s.SetCycle(c, scores)
	s.RefreshTrends()
	return s
}

func TestFilterStudents_Composition(t *testing.T) {
	a := withScore(student("a", "Alice", "12", RoleTagTutor), DimensionVision, CycleOne, 7)
	b := withScore(student("b", "Bob", "13", RoleTagTutor, RoleTagHeadOfYear), DimensionVision, CycleOne, 3)
	all := []StudentRecord{a, b}

	st := DefaultViewState()
	st.YearGroup = "12"
	got := FilterStudents(all, st)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	st = DefaultViewState()
	st.SmartFilters = []SmartFilter{{ID: "f1", Dimension: DimensionVision, Cycle: CycleOne, Operator: OpGreaterEqual, Value: 5}}
	got = FilterStudents(all, st)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	st = DefaultViewState()
	st.Role = string(RoleTagHeadOfYear)
	got = FilterStudents(all, st)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	st.YearGroup = "12"
	assert.Empty(t, FilterStudents(all, st))

	assert.Len(t, all, 2, "input must not be modified")
}

func TestFilterStudents_Search(t *testing.T) {
	a := student("a", "Alice Smith", "12")
	a.Group = "12B"
	b := student("b", "Bob Jones", "12")

	st := DefaultViewState()
	st.Search = "  SMITH "
	got := FilterStudents([]StudentRecord{a, b}, st)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	st.Search = "12b"
	assert.Len(t, FilterStudents([]StudentRecord{a, b}, st), 1)

	st.Search = "b@school"
	got = FilterStudents([]StudentRecord{a, b}, st)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestSmartFilter_MissingScoreFails(t *testing.T) {
	s := student("a", "Alice", "12")
	f := SmartFilter{ID: "f", Dimension: DimensionEffort, Cycle: CycleTwo, Operator: OpLess, Value: 10}
	assert.False(t, f.Matches(&s))
}

func TestSortStudents(t *testing.T) {
	a := withScore(student("a", "charlie", "12"), DimensionVision, CycleOne, 5)
	b := withScore(student("b", "Alice", "12"), DimensionVision, CycleOne, 9)
	c := student("c", "bob", "12")

	list := []StudentRecord{a, b, c}
	SortStudents(list, SortState{Field: SortFieldName, Direction: SortAsc})
	assert.Equal(t, []string{"b", "c", "a"}, ids(list))

	SortStudents(list, SortState{Field: "vision_1", Direction: SortDesc})
	assert.Equal(t, []string{"b", "a", "c"}, ids(list))

	SortStudents(list, SortState{Field: "vision_1", Direction: SortAsc})
	assert.Equal(t, []string{"c", "a", "b"}, ids(list), "missing score ranks lowest")
}

func TestSortStudents_StableOnTies(t *testing.T) {
	list := []StudentRecord{student("x", "Same", "12"), student("y", "same", "12"), student("z", "SAME", "12")}
	SortStudents(list, SortState{Field: SortFieldName, Direction: SortAsc})
	assert.Equal(t, []string{"x", "y", "z"}, ids(list))
}

func TestParseScoreField(t *testing.T) {
	d, c, ok := ParseScoreField("overall_3")
	assert.True(t, ok)
	assert.Equal(t, DimensionOverall, d)
	assert.Equal(t, CycleThree, c)

	for _, bad := range []string{"overall", "overall_4", "colour_1", "vision_x"} {
		_, _, ok := ParseScoreField(bad)
		assert.False(t, ok, bad)
	}
	assert.True(t, ValidSortField(SortFieldYearGroup))
	assert.False(t, ValidSortField("vision_trend"))
}

func TestPaginate(t *testing.T) {
	list := make([]StudentRecord, 101)
	for i := range list {
		list[i] = student(fmt.Sprintf("s%03d", i), fmt.Sprintf("Student %03d", i), "12")
	}

	p := Paginate(list, 50, 3)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 3, p.Page)
	assert.Len(t, p.Students, 1)
	assert.Equal(t, 101, p.From)
	assert.Equal(t, 101, p.To)

	p = Paginate(list, 50, 9)
	assert.Equal(t, 3, p.Page, "page beyond range clamps to last")

	p = Paginate(list, 50, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.From)
	assert.Equal(t, 50, p.To)

	p = Paginate(list, PageSizeAll, 4)
	assert.Equal(t, 1, p.TotalPages)
	assert.Len(t, p.Students, 101)

	p = Paginate(nil, 50, 2)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.From)
	assert.Equal(t, 0, p.To)
}

func TestView_ToggleSort(t *testing.T) {
	v := NewView()
	assert.Equal(t, SortState{Field: SortFieldName, Direction: SortAsc}, v.State().Sort)

	require.NoError(t, v.ToggleSort(SortFieldName))
	assert.Equal(t, SortDesc, v.State().Sort.Direction)

	require.NoError(t, v.ToggleSort(SortFieldName))
	assert.Equal(t, SortAsc, v.State().Sort.Direction)

	require.NoError(t, v.ToggleSort("effort_2"))
	assert.Equal(t, SortState{Field: "effort_2", Direction: SortAsc}, v.State().Sort)

	assert.Error(t, v.ToggleSort("nope"))
}

func TestView_FilterChangesResetPage(t *testing.T) {
	v := NewView()
	v.SetPage(3)
	v.SetSearch("al")
	assert.Equal(t, 1, v.State().Page)

	v.SetPage(2)
	require.NoError(t, v.AddSmartFilter(SmartFilter{ID: "f1", Dimension: DimensionVision, Cycle: CycleOne, Operator: OpGreater, Value: 3}))
	assert.Equal(t, 1, v.State().Page)

	assert.Error(t, v.AddSmartFilter(SmartFilter{ID: "f2", Dimension: "colour", Cycle: CycleOne, Operator: OpGreater}))
	assert.Len(t, v.State().SmartFilters, 1)

	v.SetPage(2)
	assert.True(t, v.RemoveSmartFilter("f1"))
	assert.False(t, v.RemoveSmartFilter("f1"))
	assert.Equal(t, 1, v.State().Page)

	require.NoError(t, v.ToggleSort("vision_1"))
	v.SetPage(4)
	v.ClearFilters()
	st := v.State()
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, "vision_1", st.Sort.Field, "sort survives clearing filters")
}

func TestView_Update(t *testing.T) {
	v := NewView()
	next := v.State()
	next.Page = 4
	require.NoError(t, v.Update(next))
	assert.Equal(t, 4, v.State().Page, "page-only change is kept")

	next = v.State()
	next.Faculty = "Science"
	next.Page = 4
	require.NoError(t, v.Update(next))
	assert.Equal(t, 1, v.State().Page)

	next = v.State()
	next.PageSize = 7
	assert.Error(t, v.Update(next))
}

func TestView_PageSizeChangeClampsPage(t *testing.T) {
	all := make([]StudentRecord, 101)
	for i := range all {
		all[i] = student(fmt.Sprintf("s%03d", i), fmt.Sprintf("Student %03d", i), "12")
	}

	v := NewView()
	require.NoError(t, v.SetPageSize(50))
	v.SetPage(3)
	p := v.Apply(all)
	assert.Equal(t, 3, p.Page)
	assert.Len(t, p.Students, 1)

	require.NoError(t, v.SetPageSize(100))
	p = v.Apply(all)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 2, p.TotalPages)
	assert.Len(t, p.Students, 100)

	v.SetPage(3)
	p = v.Apply(all)
	assert.Equal(t, 2, p.Page, "a page past the end is clamped to the last page")
	require.Len(t, p.Students, 1)
	assert.Equal(t, 101, p.From)
	assert.Equal(t, 101, p.To)
	assert.Equal(t, 2, v.State().Page)

	next := v.State()
	next.PageSize = 50
	next.Page = 3
	require.NoError(t, v.Update(next))
	p = v.Apply(all)
	assert.Equal(t, 1, p.Page, "a page size change returns to the first page")
	assert.NotEmpty(t, p.Students)
}

func TestApply_ColumnsFollowFilteredSet(t *testing.T) {
	a := withScore(student("a", "Alice", "12"), DimensionVision, CycleOne, 7)
	b := withScore(student("b", "Bob", "13"), DimensionEffort, CycleTwo, 4)

	st := DefaultViewState()
	st.YearGroup = "12"
	page := Apply([]StudentRecord{a, b}, st)

	assert.Equal(t, 1, page.TotalFiltered)
	assert.Equal(t, 2, page.TotalStudents)
	assert.True(t, page.Columns["vision_1"])
	assert.True(t, page.Columns["vision_trend"])
	assert.False(t, page.Columns["effort_2"])
	assert.False(t, page.Columns["effort_trend"])
}

func ids(list []StudentRecord) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = list[i].ID
	}
	return out
}

func TestParseSmartFilter(t *testing.T) {
	f, err := ParseSmartFilter(" Vision:2:>=:6.5 ")
	require.NoError(t, err)
	assert.Equal(t, SmartFilter{Dimension: DimensionVision, Cycle: CycleTwo, Operator: OpGreaterEqual, Value: 6.5}, f)
	assert.Equal(t, "vision:2:>=:6.5", f.Key())

	for _, raw := range []string{"vision:2:>=", "vision:x:>:1", "vision:1:>:high", "", "vision:1:>:NaN", "vision:1:<:Inf", "vision:1:<:-Infinity"} {
		_, err := ParseSmartFilter(raw)
		assert.Error(t, err, raw)
	}

	// Unknown names parse; Validate rejects them.
	f, err = ParseSmartFilter("charm:1:~:3")
	require.NoError(t, err)
	f.ID = "x"
	assert.Error(t, f.Validate())

	nan := SmartFilter{ID: "n", Dimension: DimensionVision, Cycle: CycleOne, Operator: OpGreater, Value: math.NaN()}
	assert.Error(t, nan.Validate())
	inf := SmartFilter{ID: "i", Dimension: DimensionVision, Cycle: CycleOne, Operator: OpLess, Value: math.Inf(1)}
	assert.Error(t, inf.Validate())
}
