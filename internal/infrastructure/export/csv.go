// Package export renders student results as downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/pkg/knackfield"
)

// ContentType is the MIME type of WriteCSV output.
const ContentType = "text/csv; charset=utf-8"

// Header returns the CSV header: identity columns followed by one column per
// dimension and cycle ("V1", "V2", "V3", "E1", ...).
func Header() []string {
	header := []string{"Name", "Email", "Group", "Year Group", "Faculty"}
	for _, d := range results.AllDimensions() {
		for _, c := range results.AllCycles() {
			header = append(header, d.Letter()+strconv.Itoa(int(c)))
		}
	}
	return header
}

// Row renders one student. Missing scores are empty cells.
func Row(s *results.StudentRecord) []string {
	row := []string{
		s.Name,
		knackfield.StripMarkup(s.Email),
		s.Group,
		s.YearGroup,
		s.Faculty,
	}
	for _, d := range results.AllDimensions() {
		for _, c := range results.AllCycles() {
			row = append(row, s.Score(d, c).String())
		}
	}
	return row
}

// CSVWriter writes students as CSV.
type CSVWriter struct{}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// ContentType returns the MIME type of the output.
func (CSVWriter) ContentType() string { return ContentType }

// Write writes the header and one row per student, in order, and returns the
// number of data rows written.
func (CSVWriter) Write(w io.Writer, students []results.StudentRecord) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for i := range students {
		if err := cw.Write(Row(&students[i])); err != nil {
			return i, fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(students), fmt.Errorf("flush csv: %w", err)
	}
	return len(students), nil
}

// Filename returns the attachment name for an export taken at the given
// date, formatted as YYYY-MM-DD.
func Filename(date string) string {
	return "vespa-results-" + date + ".csv"
}
