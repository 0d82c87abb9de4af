package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

func raw(records ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		out[i] = json.RawMessage(r)
	}
	return out
}

// perCycleMapping stores every cycle in the same score fields and tells them
// apart by a cycle field.
func perCycleMapping() results.SchemaMapping {
	fields := results.ScoreFields{
		Vision: "field_v", Effort: "field_e", Systems: "field_s",
		Practice: "field_p", Attitude: "field_a", Overall: "field_o",
	}
	return results.SchemaMapping{
		Name:       "test_per_cycle",
		Object:     "object_10",
		Layout:     results.LayoutPerCycle,
		CycleField: "field_cycle",
		Student: results.StudentFields{
			Key:   "field_email",
			Name:  "field_name",
			Email: "field_email",
		},
		Cycles: map[results.Cycle]results.ScoreFields{
			results.CycleOne:   fields,
			results.CycleTwo:   fields,
			results.CycleThree: fields,
		},
		Connections: results.ConnectionFields{Tutor: "field_tutor"},
	}
}

func TestNormalize_MultiCycleRecord(t *testing.T) {
	n := New(results.MultiCyclePreset())

	students := n.Normalize(raw(`{
		"id": "rec1",
		"field_187": "Ann Lee",
		"field_187_raw": {"first": "Ann", "last": "Lee"},
		"field_197": "<a href=\"mailto:ann@school.org\">ann@school.org</a>",
		"field_155": "7",
		"field_161": "",
		"field_167": "9",
		"field_439": "",
		"field_145": "abc123",
		"field_429": [],
		"field_144": "12"
	}`))
	require.Len(t, students, 1)
	s := students[0]

	assert.Equal(t, "rec1", s.ID)
	assert.Equal(t, "Ann Lee", s.Name)
	assert.Equal(t, "ann@school.org", s.Email)
	assert.Equal(t, "12", s.YearGroup)
	assert.Equal(t, []results.Cycle{results.CycleOne, results.CycleThree}, s.PopulatedCycles())
	assert.Equal(t, results.NewScore(7), s.Score(results.DimensionVision, results.CycleOne))
	assert.Equal(t, results.NewScore(9), s.Score(results.DimensionVision, results.CycleThree))
	assert.False(t, s.Score(results.DimensionEffort, results.CycleOne).Valid)
	assert.Equal(t, []results.RoleTag{results.RoleTagTutor}, s.Roles)
	assert.Equal(t, results.TrendUp, s.Trends[results.DimensionVision])
	assert.Equal(t, results.TrendNone, s.Trends[results.DimensionOverall])
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(results.MultiCyclePreset())
	input := raw(
		`{"id":"a","field_187":"A","field_155":"4","field_161":"6","field_145":[{"id":"t1"}]}`,
		`{"id":"b","field_187":"B","field_160":8,"field_172":"3","field_2191":"s1"}`,
		`{"id":"a","field_187":"A2","field_167":"5"}`,
	)

	first := n.Normalize(input)
	second := n.Normalize(input)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "A", first[0].Name)
	assert.Len(t, first[0].Cycles, 3)
}

func TestNormalize_PerCycleGrouping(t *testing.T) {
	n := New(perCycleMapping())

	students, report := n.NormalizeWithReport(raw(
		`{"id":"r1","field_email":"Ann@School.org","field_name":"Ann","field_cycle":"Cycle 1","field_o":"4","field_v":"5"}`,
		`{"id":"r2","field_email":"bob@school.org","field_name":"Bob","field_cycle":"Cycle 1","field_o":"6"}`,
		`{"id":"r3","field_email":"<a href=\"mailto:ann@school.org\">ann@school.org</a>","field_cycle":"Cycle 3","field_o":"7","field_tutor":"t1"}`,
		`{"id":"r4","field_email":"","field_cycle":"Cycle 2","field_o":"3"}`,
		`{"id":"r5","field_email":"cat@school.org","field_cycle":"Cycle 9","field_o":"3"}`,
	))

	require.Len(t, students, 4)
	assert.Equal(t, []string{"ann@school.org", "bob@school.org", "r4", "cat@school.org"},
		[]string{students[0].ID, students[1].ID, students[2].ID, students[3].ID})

	ann := students[0]
	assert.Equal(t, "Ann", ann.Name)
	assert.Equal(t, "Ann@School.org", ann.Email)
	assert.Equal(t, []results.Cycle{results.CycleOne, results.CycleThree}, ann.PopulatedCycles())
	assert.Equal(t, results.TrendUp, ann.Trends[results.DimensionOverall])
	assert.Equal(t, []results.RoleTag{results.RoleTagTutor}, ann.Roles)

	// The record with an unknown cycle keeps its identity but no scores.
	assert.Empty(t, students[3].Cycles)

	assert.Equal(t, 5, report.Records)
	assert.Equal(t, 4, report.Students)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 0, report.Conflicts)
}

func TestNormalize_MergeConflicts(t *testing.T) {
	complete := `{"id":"r1","field_email":"ann@school.org","field_cycle":"2","field_v":"5","field_e":"6","field_o":"5"}`
	sparse := `{"id":"r2","field_email":"ann@school.org","field_cycle":"2","field_v":"9"}`
	equal := `{"id":"r3","field_email":"ann@school.org","field_cycle":"2","field_v":"1","field_e":"2","field_o":"3"}`

	t.Run("more complete scores win", func(t *testing.T) {
		students, report := New(perCycleMapping()).NormalizeWithReport(raw(complete, sparse))
		require.Len(t, students, 1)
		assert.Equal(t, results.NewScore(5), students[0].Score(results.DimensionVision, results.CycleTwo))
		assert.Equal(t, 1, report.Conflicts)

		students = New(perCycleMapping()).Normalize(raw(sparse, complete))
		assert.Equal(t, results.NewScore(5), students[0].Score(results.DimensionVision, results.CycleTwo))
	})

	t.Run("ties go to the later record", func(t *testing.T) {
		students := New(perCycleMapping()).Normalize(raw(complete, equal))
		assert.Equal(t, results.NewScore(1), students[0].Score(results.DimensionVision, results.CycleTwo))
	})

	t.Run("legacy merge takes the later record", func(t *testing.T) {
		students := New(perCycleMapping(), WithLegacyMerge(true)).Normalize(raw(complete, sparse))
		assert.Equal(t, results.NewScore(9), students[0].Score(results.DimensionVision, results.CycleTwo))
		assert.False(t, students[0].Score(results.DimensionEffort, results.CycleTwo).Valid)
	})
}

func TestNormalize_SkipsUnusableRecords(t *testing.T) {
	students, report := New(results.MultiCyclePreset()).NormalizeWithReport(raw(`[]`, `"x"`, `{"field_155":"5"}`))
	assert.Empty(t, students)
	assert.Equal(t, 3, report.Skipped)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		json  string
		want  int
		valid bool
	}{
		{`"7"`, 7, true},
		{`" 5 "`, 5, true},
		{`"7/10"`, 7, true},
		{`8`, 8, true},
		{`8.9`, 8, true},
		{`"10"`, 10, true},
		{`""`, 0, false},
		{`"abc"`, 0, false},
		{`"0"`, 0, false},
		{`0`, 0, false},
		{`"11"`, 0, false},
		{`"-3"`, 0, false},
		{`null`, 0, false},
		{`true`, 0, false},
		{`"<span>6</span>"`, 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			got := ParseScore(gjson.Parse(tt.json))
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.want, got.OrZero())
		})
	}
}

func TestParseCycle(t *testing.T) {
	tests := []struct {
		json string
		want results.Cycle
		ok   bool
	}{
		{`"Cycle 2"`, results.CycleTwo, true},
		{`"3"`, results.CycleThree, true},
		{`1`, results.CycleOne, true},
		{`"Cycle 4"`, 4, false},
		{`"none"`, 0, false},
		{`null`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			got, ok := ParseCycle(gjson.Parse(tt.json))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
