package results

import "sort"

// RoleTag marks which staff-connection fields are set on a student's records.
type RoleTag string

const (
	RoleTagStaffAdmin     RoleTag = "staffAdmin"
	RoleTagTutor          RoleTag = "tutor"
	RoleTagHeadOfYear     RoleTag = "headOfYear"
	RoleTagSubjectTeacher RoleTag = "subjectTeacher"
)

// AllRoleTags returns the tags in display order.
func AllRoleTags() []RoleTag {
	return []RoleTag{RoleTagStaffAdmin, RoleTagTutor, RoleTagHeadOfYear, RoleTagSubjectTeacher}
}

func (t RoleTag) order() int {
	for i, tag := range AllRoleTags() {
		if tag == t {
			return i
		}
	}
	return len(AllRoleTags())
}

// IsValid reports whether t is a known tag.
func (t RoleTag) IsValid() bool {
	return t.order() < len(AllRoleTags())
}

// StudentRecord is the canonical per-student entity built from one or more
// raw records. Trends are derived from Cycles and must be refreshed after
// any change to Cycles.
type StudentRecord struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Email     string                `json:"email"`
	Group     string                `json:"group"`
	YearGroup string                `json:"year_group"`
	Faculty   string                `json:"faculty"`
	Cycles    map[Cycle]CycleScores `json:"cycles"`
	Roles     []RoleTag             `json:"roles"`
	Trends    map[Dimension]Trend   `json:"trends"`
}

// NewStudentRecord creates an empty record with initialized maps.
func NewStudentRecord(id string) *StudentRecord {
	return &StudentRecord{
		ID:     id,
		Cycles: make(map[Cycle]CycleScores),
		Roles:  []RoleTag{},
		Trends: CalculateTrends(nil),
	}
}

// Score returns the score for a dimension in a cycle, null when absent.
func (s *StudentRecord) Score(d Dimension, c Cycle) Score {
	scores, ok := s.Cycles[c]
	if !ok {
		return Score{}
	}
	return scores.Get(d)
}

// SetCycle stores scores for a cycle. Empty scores are not stored.
func (s *StudentRecord) SetCycle(c Cycle, scores CycleScores) {
	if !c.IsValid() || scores.IsEmpty() {
		return
	}
	if s.Cycles == nil {
		s.Cycles = make(map[Cycle]CycleScores)
	}
	s.Cycles[c] = scores
}

// PopulatedCycles returns the cycles that have data, ascending.
func (s *StudentRecord) PopulatedCycles() []Cycle {
	out := make([]Cycle, 0, len(s.Cycles))
	for _, c := range AllCycles() {
		if _, ok := s.Cycles[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// HasRole reports whether the tag is set.
func (s *StudentRecord) HasRole(tag RoleTag) bool {
	for _, r := range s.Roles {
		if r == tag {
			return true
		}
	}
	return false
}

// AddRole sets a tag, keeping Roles unique and ordered.
func (s *StudentRecord) AddRole(tag RoleTag) {
	if !tag.IsValid() || s.HasRole(tag) {
		return
	}
	s.Roles = append(s.Roles, tag)
	sort.Slice(s.Roles, func(i, j int) bool {
		return s.Roles[i].order() < s.Roles[j].order()
	})
}

// RefreshTrends recomputes Trends from Cycles.
func (s *StudentRecord) RefreshTrends() {
	s.Trends = CalculateTrends(s.Cycles)
}

// identityValue returns the identity field used by sort and text filters.
func (s *StudentRecord) identityValue(field string) string {
	switch field {
	case SortFieldName:
		return s.Name
	case SortFieldEmail:
		return s.Email
	case SortFieldGroup:
		return s.Group
	case SortFieldYearGroup:
		return s.YearGroup
	case SortFieldFaculty:
		return s.Faculty
	default:
		return ""
	}
}
