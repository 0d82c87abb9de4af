package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

func TestHeader(t *testing.T) {
	h := Header()
	require.Len(t, h, 5+18)
	assert.Equal(t, []string{"Name", "Email", "Group", "Year Group", "Faculty", "V1", "V2", "V3", "E1"}, h[:9])
	assert.Equal(t, "O3", h[len(h)-1])
}

func TestCSVWriter_RoundTrip(t *testing.T) {
	s := results.NewStudentRecord("s1")
	s.Name = `O'Brien, J. "Jo"`
	s.Email = `<a href="mailto:jo@school.org">jo@school.org</a>`
	s.Group = "12A"
	s.YearGroup = "12"
	var c1 results.CycleScores
	c1.Set(results.DimensionVision, results.NewScore(7))
	c1.Set(results.DimensionOverall, results.NewScore(10))
	s.SetCycle(results.CycleOne, c1)

	var buf bytes.Buffer
	n, err := NewCSVWriter().Write(&buf, []results.StudentRecord{*s, *results.NewStudentRecord("s2")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	row := rows[1]
	assert.Equal(t, `O'Brien, J. "Jo"`, row[0])
	assert.Equal(t, "jo@school.org", row[1])
	assert.Equal(t, "12A", row[2])
	assert.Equal(t, "", row[4])
	assert.Equal(t, "7", row[5])
	assert.Equal(t, "", row[6])
	assert.Equal(t, "10", row[len(row)-3])

	for _, cell := range rows[2][5:] {
		assert.Empty(t, cell)
	}
}

func TestCSVWriter_QuotesOnlyWhenNeeded(t *testing.T) {
	s := results.NewStudentRecord("s1")
	s.Name = "Plain Name"
	s.Faculty = `Arts, "Design"`

	var buf bytes.Buffer
	_, err := NewCSVWriter().Write(&buf, []results.StudentRecord{*s})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "\nPlain Name,")
	assert.Contains(t, out, `"Arts, ""Design"""`)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "vespa-results-2026-03-02.csv", Filename("2026-03-02"))
}
