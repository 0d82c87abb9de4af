package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateTrend(t *testing.T) {
	tests := []struct {
		name   string
		cycles map[Cycle]CycleScores
		want   Trend
	}{
		{
			name:   "no data",
			cycles: nil,
			want:   TrendNone,
		},
		{
			name:   "single cycle",
			cycles: map[Cycle]CycleScores{CycleOne: {Vision: NewScore(5)}},
			want:   TrendNone,
		},
		{
			name:   "rising",
			cycles: map[Cycle]CycleScores{CycleOne: {Vision: NewScore(4)}, CycleTwo: {Vision: NewScore(6)}},
			want:   TrendUp,
		},
		{
			name:   "falling",
			cycles: map[Cycle]CycleScores{CycleOne: {Vision: NewScore(8)}, CycleTwo: {Vision: NewScore(6)}},
			want:   TrendDown,
		},
		{
			name:   "flat",
			cycles: map[Cycle]CycleScores{CycleTwo: {Vision: NewScore(6)}, CycleThree: {Vision: NewScore(6)}},
			want:   TrendSame,
		},
		{
			name:   "skips missing middle cycle",
			cycles: map[Cycle]CycleScores{CycleOne: {Vision: NewScore(4)}, CycleThree: {Vision: NewScore(7)}},
			want:   TrendUp,
		},
		{
			name: "uses latest two of three",
			cycles: map[Cycle]CycleScores{
				CycleOne:   {Vision: NewScore(2)},
				CycleTwo:   {Vision: NewScore(9)},
				CycleThree: {Vision: NewScore(7)},
			},
			want: TrendDown,
		},
		{
			name: "null value in a present cycle is skipped",
			cycles: map[Cycle]CycleScores{
				CycleOne:   {Vision: NewScore(3)},
				CycleTwo:   {Effort: NewScore(5)},
				CycleThree: {Vision: NewScore(3)},
			},
			want: TrendSame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateTrend(tt.cycles, DimensionVision))
		})
	}
}

func TestCalculateTrends_CoversEveryDimension(t *testing.T) {
	trends := CalculateTrends(map[Cycle]CycleScores{
		CycleOne: {Overall: NewScore(5)},
		CycleTwo: {Overall: NewScore(4)},
	})

	assert.Len(t, trends, len(AllDimensions()))
	assert.Equal(t, TrendDown, trends[DimensionOverall])
	assert.Equal(t, TrendNone, trends[DimensionVision])
	assert.Equal(t, "↓", trends[DimensionOverall].Symbol())
	assert.Equal(t, "", TrendNone.Symbol())
}

func TestStudentRecord_Roles(t *testing.T) {
	s := NewStudentRecord("r1")
	s.AddRole(RoleTagSubjectTeacher)
	s.AddRole(RoleTagTutor)
	s.AddRole(RoleTagTutor)
	s.AddRole(RoleTag("unknown"))

	assert.Equal(t, []RoleTag{RoleTagTutor, RoleTagSubjectTeacher}, s.Roles)
	assert.True(t, s.HasRole(RoleTagTutor))
	assert.False(t, s.HasRole(RoleTagStaffAdmin))
}

func TestStudentRecord_SetCycle(t *testing.T) {
	s := NewStudentRecord("r1")
	s.SetCycle(CycleTwo, CycleScores{})
	s.SetCycle(Cycle(4), CycleScores{Vision: NewScore(5)})
	assert.Empty(t, s.Cycles)

	s.SetCycle(CycleThree, CycleScores{Vision: NewScore(5)})
	s.SetCycle(CycleOne, CycleScores{Vision: NewScore(3)})
	assert.Equal(t, []Cycle{CycleOne, CycleThree}, s.PopulatedCycles())

	s.RefreshTrends()
	assert.Equal(t, TrendUp, s.Trends[DimensionVision])
}
