package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

// ══════════════════════════════════════════════════════════════════════════════
// RAG TABLE
// ══════════════════════════════════════════════════════════════════════════════

const (
	nameWidth  = 24
	groupWidth = 8
	yearWidth  = 6
	scoreWidth = 3
)

// tablePalette colours score cells by rating.
type tablePalette struct {
	ratings map[results.Rating]*color.Color
	header  *color.Color
	dim     *color.Color
}

func newTablePalette(noColor bool) *tablePalette {
	p := &tablePalette{
		ratings: map[results.Rating]*color.Color{
			results.RatingRed:        color.New(color.FgRed),
			results.RatingAmber:      color.New(color.FgYellow),
			results.RatingLightGreen: color.New(color.FgGreen),
			results.RatingDarkGreen:  color.New(color.FgHiGreen, color.Bold),
			results.RatingNone:       color.New(color.FgHiBlack),
		},
		header: color.New(color.Bold),
		dim:    color.New(color.FgHiBlack),
	}
	if noColor {
		for _, c := range p.ratings {
			c.DisableColor()
		}
		p.header.DisableColor()
		p.dim.DisableColor()
	} else {
		for _, c := range p.ratings {
			c.EnableColor()
		}
		p.header.EnableColor()
		p.dim.EnableColor()
	}
	return p
}

// scoreCell renders a right-aligned score in its RAG colour; a missing score
// is a neutral dash.
func (p *tablePalette) scoreCell(s results.Score) string {
	text := "-"
	if s.Valid {
		text = s.String()
	}
	return p.ratings[results.ClassifyScore(s)].Sprint(padLeft(text, scoreWidth))
}

// tableColumn is one visible score or trend column.
type tableColumn struct {
	dim   results.Dimension
	cycle results.Cycle // zero for the trend column
}

func (c tableColumn) title() string {
	if c.cycle == 0 {
		return " " + c.dim.Letter() + "±"
	}
	return fmt.Sprintf("%s%d", c.dim.Letter(), c.cycle)
}

// visibleColumns lists the score columns the page shows, in display order.
func visibleColumns(cols results.ColumnVisibility) []tableColumn {
	var out []tableColumn
	for _, d := range results.AllDimensions() {
		for _, c := range results.AllCycles() {
			if cols[results.ScoreField(d, c)] {
				out = append(out, tableColumn{dim: d, cycle: c})
			}
		}
		if cols[results.TrendField(d)] {
			out = append(out, tableColumn{dim: d})
		}
	}
	return out
}

// RenderTable writes page as a fixed-width table with one coloured cell per
// visible score and a trend arrow per dimension.
func RenderTable(w io.Writer, page results.Page, noColor bool) error {
	p := newTablePalette(noColor)
	cols := visibleColumns(page.Columns)

	var b strings.Builder

	b.WriteString(p.header.Sprint(padRight("Name", nameWidth) + " " + padRight("Group", groupWidth) + " " + padRight("Year", yearWidth)))
	for _, c := range cols {
		b.WriteString(" ")
		b.WriteString(p.header.Sprint(padLeft(c.title(), scoreWidth)))
	}
	b.WriteString("\n")

	for i := range page.Students {
		s := &page.Students[i]
		b.WriteString(padRight(truncate(s.Name, nameWidth), nameWidth))
		b.WriteString(" ")
		b.WriteString(padRight(truncate(s.Group, groupWidth), groupWidth))
		b.WriteString(" ")
		b.WriteString(padRight(truncate(s.YearGroup, yearWidth), yearWidth))
		for _, c := range cols {
			b.WriteString(" ")
			if c.cycle == 0 {
				b.WriteString(padLeft(s.Trends[c.dim].Symbol(), scoreWidth))
				continue
			}
			b.WriteString(p.scoreCell(s.Score(c.dim, c.cycle)))
		}
		b.WriteString("\n")
	}

	b.WriteString(p.dim.Sprint(summaryLine(page)))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// summaryLine describes the visible range, e.g. "Showing 1-50 of 120 students".
func summaryLine(page results.Page) string {
	if page.TotalFiltered == 0 {
		if page.TotalStudents == 0 {
			return "No students found"
		}
		return fmt.Sprintf("No students match the current filters (%d loaded)", page.TotalStudents)
	}
	line := fmt.Sprintf("Showing %d-%d of %d students", page.From, page.To, page.TotalFiltered)
	if page.TotalFiltered != page.TotalStudents {
		line += fmt.Sprintf(" (filtered from %d)", page.TotalStudents)
	}
	if page.TotalPages > 1 {
		line += fmt.Sprintf(", page %d of %d", page.Page, page.TotalPages)
	}
	return line
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
