// Package normalize maps raw results records onto canonical student records.
// The field layout comes from a SchemaMapping; the pipeline below is the same
// for every layout.
package normalize

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/pkg/knackfield"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLegacyMerge makes the later record win every cycle conflict instead of
// the more complete one.
func WithLegacyMerge(enabled bool) Option {
	return func(n *Normalizer) {
		n.legacyMerge = enabled
	}
}

// WithLogger sets the logger used for data anomalies.
func WithLogger(l *logger.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// Normalizer converts raw records. It holds no state between calls.
type Normalizer struct {
	mapping     results.SchemaMapping
	legacyMerge bool
	logger      *logger.Logger
}

// New creates a Normalizer for mapping.
func New(mapping results.SchemaMapping, opts ...Option) *Normalizer {
	n := &Normalizer{
		mapping: mapping,
		logger:  logger.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(logger.Component("normalize"), logger.Schema(mapping.Name))
	return n
}

// Report summarizes one normalization run.
type Report struct {
	Records   int `json:"records"`
	Students  int `json:"students"`
	Skipped   int `json:"skipped"`
	Merged    int `json:"merged"`
	Conflicts int `json:"conflicts"`
}

// Normalize converts records into students ordered by first appearance.
func (n *Normalizer) Normalize(records []json.RawMessage) []results.StudentRecord {
	students, _ := n.NormalizeWithReport(records)
	return students
}

// NormalizeWithReport is Normalize plus run statistics.
func (n *Normalizer) NormalizeWithReport(records []json.RawMessage) ([]results.StudentRecord, Report) {
	report := Report{Records: len(records)}
	out := make([]*results.StudentRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, raw := range records {
		rec := gjson.ParseBytes(raw)
		if !rec.IsObject() {
			report.Skipped++
			n.logger.Debug("skipping record that is not an object")
			continue
		}

		student, ok := n.readRecord(rec)
		if !ok {
			report.Skipped++
			continue
		}

		if i, seen := index[student.ID]; seen {
			report.Merged++
			report.Conflicts += n.merge(out[i], student)
			continue
		}
		index[student.ID] = len(out)
		out = append(out, student)
	}

	students := make([]results.StudentRecord, len(out))
	for i, s := range out {
		s.RefreshTrends()
		students[i] = *s
	}
	report.Students = len(students)
	return students, report
}

// readRecord maps one raw record. The boolean is false when the record has no
// usable identity.
func (n *Normalizer) readRecord(rec gjson.Result) (*results.StudentRecord, bool) {
	recordID := rec.Get("id").String()
	fields := n.mapping.Student

	key := n.groupingKey(rec)
	if key == "" {
		key = recordID
	}
	if key == "" {
		n.logger.Debug("skipping record without identity")
		return nil, false
	}

	s := results.NewStudentRecord(key)
	s.Name = knackfield.Text(knackfield.GetRaw(rec, fields.Name))
	s.Email = knackfield.Email(knackfield.GetRaw(rec, fields.Email))
	s.Group = knackfield.Text(knackfield.GetRaw(rec, fields.Group))
	s.YearGroup = knackfield.Text(knackfield.GetRaw(rec, fields.YearGroup))
	s.Faculty = knackfield.Text(knackfield.GetRaw(rec, fields.Faculty))

	switch n.mapping.Layout {
	case results.LayoutPerCycle:
		cycle, ok := ParseCycle(knackfield.Get(rec, n.mapping.CycleField))
		if !ok {
			n.logger.Debug("record has no usable cycle number", logger.String("record_id", recordID))
			break
		}
		scoreFields, ok := n.mapping.Cycles[cycle]
		if !ok {
			n.logger.Debug("no score fields mapped for cycle",
				logger.String("record_id", recordID),
				logger.Int("cycle", int(cycle)),
			)
			break
		}
		s.SetCycle(cycle, readScores(rec, scoreFields))

	default:
		for _, cycle := range results.AllCycles() {
			if scoreFields, ok := n.mapping.Cycles[cycle]; ok {
				s.SetCycle(cycle, readScores(rec, scoreFields))
			}
		}
	}

	for _, tag := range results.AllRoleTags() {
		if knackfield.IsPresent(knackfield.GetRaw(rec, n.mapping.Connections.ForTag(tag))) {
			s.AddRole(tag)
		}
	}
	return s, true
}

// groupingKey reads the stable student identifier. Email keys are compared
// case-insensitively.
func (n *Normalizer) groupingKey(rec gjson.Result) string {
	field := n.mapping.Student.Key
	if field == "" {
		return ""
	}
	v := knackfield.GetRaw(rec, field)
	if field == n.mapping.Student.Email {
		return strings.ToLower(knackfield.Email(v))
	}
	return knackfield.Text(v)
}

// merge folds incoming into existing and returns the number of cycle
// conflicts. Identity fields keep the first non-empty value, role tags are
// unioned, and a conflicting cycle keeps the scores with more values; ties go
// to the later record.
func (n *Normalizer) merge(existing, incoming *results.StudentRecord) int {
	fillEmpty(&existing.Name, incoming.Name)
	fillEmpty(&existing.Email, incoming.Email)
	fillEmpty(&existing.Group, incoming.Group)
	fillEmpty(&existing.YearGroup, incoming.YearGroup)
	fillEmpty(&existing.Faculty, incoming.Faculty)

	for _, tag := range incoming.Roles {
		existing.AddRole(tag)
	}

	conflicts := 0
	for _, cycle := range incoming.PopulatedCycles() {
		next := incoming.Cycles[cycle]
		current, ok := existing.Cycles[cycle]
		if !ok {
			existing.SetCycle(cycle, next)
			continue
		}
		if current == next {
			continue
		}
		conflicts++
		if n.legacyMerge || next.Count() >= current.Count() {
			existing.SetCycle(cycle, next)
		}
	}
	if conflicts > 0 {
		n.logger.Debug("merged conflicting cycle scores",
			logger.String("student_id", existing.ID),
			logger.Int("conflicts", conflicts),
		)
	}
	return conflicts
}

func fillEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// VALUE PARSING
// ══════════════════════════════════════════════════════════════════════════════

func readScores(rec gjson.Result, fields results.ScoreFields) results.CycleScores {
	var scores results.CycleScores
	for _, d := range results.AllDimensions() {
		scores.Set(d, ParseScore(knackfield.Get(rec, fields.Field(d))))
	}
	return scores
}

// ParseScore reads a score from a number or from the leading integer of a
// string. Empty, non-numeric and out-of-range values are null, never zero.
func ParseScore(v gjson.Result) results.Score {
	switch v.Type {
	case gjson.Number:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return results.NullScore()
		}
		return results.NewScore(int(math.Trunc(v.Num)))
	case gjson.String:
		n, ok := leadingInt(knackfield.StripMarkup(v.Str))
		if !ok {
			return results.NullScore()
		}
		return results.NewScore(n)
	default:
		return results.NullScore()
	}
}

// ParseCycle reads a cycle number from values such as 2, "2" or "Cycle 2".
func ParseCycle(v gjson.Result) (results.Cycle, bool) {
	var n int
	switch v.Type {
	case gjson.Number:
		n = int(v.Num)
	case gjson.String:
		s := knackfield.StripMarkup(v.Str)
		i := strings.IndexAny(s, "0123456789")
		if i < 0 {
			return 0, false
		}
		var ok bool
		if n, ok = leadingInt(s[i:]); !ok {
			return 0, false
		}
	default:
		return 0, false
	}
	c := results.Cycle(n)
	return c, c.IsValid()
}

// leadingInt parses an optional sign and the digits that follow, ignoring
// leading whitespace and anything after the digits.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		digits++
		if n > math.MaxInt32/10 {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
