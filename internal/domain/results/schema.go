package results

import (
	"errors"
	"fmt"
	"strings"
)

// Layout describes how cycles are laid out across raw records.
type Layout string

const (
	// LayoutMultiCycle stores all three cycles of a student in one record.
	LayoutMultiCycle Layout = "multi_cycle"
	// LayoutPerCycle stores one cycle per record, identified by a cycle field.
	LayoutPerCycle Layout = "per_cycle"
)

// ScoreFields names the six score fields of one cycle.
type ScoreFields struct {
	Vision   string `yaml:"vision" json:"vision"`
	Effort   string `yaml:"effort" json:"effort"`
	Systems  string `yaml:"systems" json:"systems"`
	Practice string `yaml:"practice" json:"practice"`
	Attitude string `yaml:"attitude" json:"attitude"`
	Overall  string `yaml:"overall" json:"overall"`
}

// Field returns the field name for a dimension.
func (f ScoreFields) Field(d Dimension) string {
	switch d {
	case DimensionVision:
		return f.Vision
	case DimensionEffort:
		return f.Effort
	case DimensionSystems:
		return f.Systems
	case DimensionPractice:
		return f.Practice
	case DimensionAttitude:
		return f.Attitude
	case DimensionOverall:
		return f.Overall
	default:
		return ""
	}
}

// StudentFields names the identity fields of a results record.
type StudentFields struct {
	// Key is the stable student identifier used for grouping. When empty,
	// or empty on a record, the record's own id is used.
	Key       string `yaml:"key" json:"key"`
	Name      string `yaml:"name" json:"name"`
	Email     string `yaml:"email" json:"email"`
	Group     string `yaml:"group" json:"group"`
	YearGroup string `yaml:"year_group" json:"year_group"`
	Faculty   string `yaml:"faculty" json:"faculty"`
}

// ConnectionFields names the establishment and staff connection fields.
type ConnectionFields struct {
	Establishment  string `yaml:"establishment" json:"establishment"`
	StaffAdmin     string `yaml:"staff_admin" json:"staff_admin"`
	Tutor          string `yaml:"tutor" json:"tutor"`
	HeadOfYear     string `yaml:"head_of_year" json:"head_of_year"`
	SubjectTeacher string `yaml:"subject_teacher" json:"subject_teacher"`
}

// ForTag returns the connection field that flags a role tag.
func (c ConnectionFields) ForTag(tag RoleTag) string {
	switch tag {
	case RoleTagStaffAdmin:
		return c.StaffAdmin
	case RoleTagTutor:
		return c.Tutor
	case RoleTagHeadOfYear:
		return c.HeadOfYear
	case RoleTagSubjectTeacher:
		return c.SubjectTeacher
	default:
		return ""
	}
}

// ForRole returns the connection field joined against a role's staff record.
func (c ConnectionFields) ForRole(r Role) string {
	tag, ok := r.Tag()
	if !ok {
		return ""
	}
	return c.ForTag(tag)
}

// SchemaMapping is the field-to-meaning configuration of the results object.
// Normalization logic is written once against this value; schema drift is a
// data change.
type SchemaMapping struct {
	Name        string                `yaml:"name" json:"name"`
	Object      string                `yaml:"object" json:"object"`
	Layout      Layout                `yaml:"layout" json:"layout"`
	CycleField  string                `yaml:"cycle_field" json:"cycle_field,omitempty"`
	Student     StudentFields         `yaml:"student" json:"student"`
	Cycles      map[Cycle]ScoreFields `yaml:"cycles" json:"cycles"`
	Connections ConnectionFields      `yaml:"connections" json:"connections"`
}

// Validate checks that the mapping can drive the normalizer.
func (m SchemaMapping) Validate() error {
	var errs []string

	if m.Object == "" {
		errs = append(errs, "object is required")
	}
	switch m.Layout {
	case LayoutMultiCycle:
	case LayoutPerCycle:
		if m.CycleField == "" {
			errs = append(errs, "cycle_field is required for per_cycle layout")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown layout %q", m.Layout))
	}

	if len(m.Cycles) == 0 {
		errs = append(errs, "at least one cycle field group is required")
	}
	for c, fields := range m.Cycles {
		if !c.IsValid() {
			errs = append(errs, fmt.Sprintf("cycle %d out of range", c))
			continue
		}
		for _, d := range AllDimensions() {
			if fields.Field(d) == "" {
				errs = append(errs, fmt.Sprintf("cycle %d: %s field is required", c, d))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New("schema mapping: " + strings.Join(errs, "; "))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

const (
	PresetMultiCycle = "multi_cycle"
	PresetPerCycle   = "per_cycle"
)

func defaultConnections() ConnectionFields {
	return ConnectionFields{
		Establishment:  "field_133",
		StaffAdmin:     "field_439",
		Tutor:          "field_145",
		HeadOfYear:     "field_429",
		SubjectTeacher: "field_2191",
	}
}

// MultiCyclePreset is the current layout: one record per student holding all
// three cycles in fixed field groups.
func MultiCyclePreset() SchemaMapping {
	return SchemaMapping{
		Name:   PresetMultiCycle,
		Object: "object_10",
		Layout: LayoutMultiCycle,
		Student: StudentFields{
			Name:      "field_187",
			Email:     "field_197",
			Group:     "field_223",
			YearGroup: "field_144",
			Faculty:   "field_782",
		},
		Cycles: map[Cycle]ScoreFields{
			CycleOne:   {Vision: "field_155", Effort: "field_156", Systems: "field_157", Practice: "field_158", Attitude: "field_159", Overall: "field_160"},
			CycleTwo:   {Vision: "field_161", Effort: "field_162", Systems: "field_163", Practice: "field_164", Attitude: "field_165", Overall: "field_166"},
			CycleThree: {Vision: "field_167", Effort: "field_168", Systems: "field_169", Practice: "field_170", Attitude: "field_171", Overall: "field_172"},
		},
		Connections: defaultConnections(),
	}
}

// PerCyclePreset is the historical layout: one record per student per cycle,
// grouped by student email.
func PerCyclePreset() SchemaMapping {
	return SchemaMapping{
		Name:       PresetPerCycle,
		Object:     "object_10",
		Layout:     LayoutPerCycle,
		CycleField: "field_846",
		Student: StudentFields{
			Key:       "field_166",
			Name:      "field_187",
			Email:     "field_166",
			Group:     "field_223",
			YearGroup: "field_144",
			Faculty:   "field_782",
		},
		Cycles: map[Cycle]ScoreFields{
			CycleOne:   {Vision: "field_171", Effort: "field_172", Systems: "field_173", Practice: "field_174", Attitude: "field_175", Overall: "field_160"},
			CycleTwo:   {Vision: "field_161", Effort: "field_162", Systems: "field_163", Practice: "field_164", Attitude: "field_165", Overall: "field_166"},
			CycleThree: {Vision: "field_167", Effort: "field_168", Systems: "field_169", Practice: "field_170", Attitude: "field_171", Overall: "field_172"},
		},
		Connections: defaultConnections(),
	}
}

// Preset returns a built-in mapping by name.
func Preset(name string) (SchemaMapping, error) {
	switch name {
	case "", PresetMultiCycle:
		return MultiCyclePreset(), nil
	case PresetPerCycle:
		return PerCyclePreset(), nil
	default:
		return SchemaMapping{}, fmt.Errorf("unknown schema preset %q", name)
	}
}
