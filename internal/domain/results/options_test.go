package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilterOptions(t *testing.T) {
	a := student("a", "Alice", "9")
	a.Faculty = "Science"
	a.Group = "9A"
	b := student("b", "Bob", "10")
	c := student("c", "Cara", "")
	c.Faculty = "Arts"

	scope := &AccessScope{Roles: []Role{RoleTutor, RoleHeadOfYear}}
	opts := BuildFilterOptions([]StudentRecord{a, b, c}, scope)

	assert.Equal(t, []string{"9", "10"}, opts.YearGroups)
	assert.Equal(t, []string{"Arts", "Science"}, opts.Faculties)
	assert.Equal(t, []string{"9A"}, opts.Groups)
	require.Len(t, opts.Roles, 3)
	assert.Equal(t, RoleFilterAll, opts.Roles[0].Value)
	assert.Equal(t, "tutor", opts.Roles[1].Value)
	assert.Equal(t, "headOfYear", opts.Roles[2].Value)
	assert.Equal(t, PageSizes(), opts.PageSizes)
}

func TestAvailableRoles_SingleRoleHasNoAllEntry(t *testing.T) {
	scope := &AccessScope{Roles: []Role{RoleStaffAdmin, RoleStudent}}
	roles := scope.AvailableRoles()
	require.Len(t, roles, 1)
	assert.Equal(t, RoleOption{Value: "staffAdmin", Label: "Staff Admin (All Students)"}, roles[0])

	assert.Empty(t, BuildFilterOptions(nil, nil).Roles)
}

func TestColumnVisibility_Toggle(t *testing.T) {
	cols := ComputeColumnVisibility(nil)
	assert.False(t, cols["overall_3"])

	cols.Toggle("overall_3")
	assert.True(t, cols["overall_3"])

	cols.Toggle("unknown")
	_, ok := cols["unknown"]
	assert.False(t, ok)
}

func TestBuildStudentChart(t *testing.T) {
	s := withScore(student("a", "Alice", "12"), DimensionVision, CycleOne, 4)
	s = withScore(s, DimensionVision, CycleThree, 7)

	chart := BuildStudentChart(&s)
	require.Len(t, chart.Series, len(AllDimensions()))

	vision := chart.Series[0]
	assert.Equal(t, "Vision", vision.Label)
	assert.Equal(t, []ChartPoint{{Cycle: CycleOne, Value: 4}, {Cycle: CycleThree, Value: 7}}, vision.Points)
	assert.Empty(t, chart.Series[1].Points)
	assert.Equal(t, TrendUp, chart.Trends[DimensionVision])
}

func TestBuildGroupAnalytics(t *testing.T) {
	a := withScore(student("a", "Alice", "12"), DimensionVision, CycleOne, 4)
	a = withScore(a, DimensionEffort, CycleOne, 6)
	b := withScore(student("b", "Bob", "12"), DimensionVision, CycleOne, 5)
	c := withScore(student("c", "Cara", "12"), DimensionVision, CycleOne, 5)

	got := BuildGroupAnalytics([]StudentRecord{a, b, c})

	assert.Equal(t, 3, got.TotalStudents)
	require.Len(t, got.Cycles, 1, "cycles without data are omitted")
	c1 := got.Cycles[0]
	assert.Equal(t, CycleOne, c1.Cycle)
	assert.Equal(t, 3, c1.Students)
	assert.Equal(t, 4.7, c1.Averages[DimensionVision])
	assert.Equal(t, 6.0, c1.Averages[DimensionEffort])
	assert.Equal(t, 0.0, c1.Averages[DimensionOverall])
}

func TestSchemaPresets(t *testing.T) {
	multi, err := Preset("")
	require.NoError(t, err)
	assert.NoError(t, multi.Validate())
	assert.Equal(t, "field_161", multi.Cycles[CycleTwo].Field(DimensionVision))
	assert.Equal(t, "field_145", multi.Connections.ForRole(RoleTutor))
	assert.Equal(t, "", multi.Connections.ForRole(RoleStudent))

	per, err := Preset(PresetPerCycle)
	require.NoError(t, err)
	assert.NoError(t, per.Validate())
	assert.Equal(t, LayoutPerCycle, per.Layout)

	per.CycleField = ""
	assert.Error(t, per.Validate())

	_, err = Preset("v3")
	assert.Error(t, err)
}
