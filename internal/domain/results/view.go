package results

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// SMART FILTERS
// ══════════════════════════════════════════════════════════════════════════════

// Operator is a numeric comparison used by smart filters.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
)

// IsValid reports whether o is a supported operator.
func (o Operator) IsValid() bool {
	switch o {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual:
		return true
	}
	return false
}

// Compare evaluates "score o threshold".
func (o Operator) Compare(score, threshold float64) bool {
	switch o {
	case OpGreater:
		return score > threshold
	case OpGreaterEqual:
		return score >= threshold
	case OpLess:
		return score < threshold
	case OpLessEqual:
		return score <= threshold
	case OpEqual:
		return score == threshold
	default:
		return false
	}
}

// SmartFilter is a user-defined predicate on one dimension of one cycle.
type SmartFilter struct {
	ID        string    `json:"id"`
	Dimension Dimension `json:"dimension"`
	Cycle     Cycle     `json:"cycle"`
	Operator  Operator  `json:"operator"`
	Value     float64   `json:"value"`
}

// Validate checks the filter fields.
func (f SmartFilter) Validate() error {
	if f.ID == "" {
		return errors.New("smart filter id is required")
	}
	if !f.Dimension.IsValid() {
		return fmt.Errorf("smart filter: unknown dimension %q", f.Dimension)
	}
	if !f.Cycle.IsValid() {
		return fmt.Errorf("smart filter: cycle %d out of range", f.Cycle)
	}
	if !f.Operator.IsValid() {
		return fmt.Errorf("smart filter: unknown operator %q", f.Operator)
	}
	if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
		return fmt.Errorf("smart filter: value must be a finite number")
	}
	return nil
}

// ParseSmartFilter reads the compact form "dimension:cycle:operator:value",
// e.g. "vision:1:>=:6". The returned filter has no ID.
func ParseSmartFilter(raw string) (SmartFilter, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 4 {
		return SmartFilter{}, fmt.Errorf("smart filter %q: want dimension:cycle:operator:value", raw)
	}
	cycle, err := strconv.Atoi(parts[1])
	if err != nil {
		return SmartFilter{}, fmt.Errorf("smart filter %q: bad cycle", raw)
	}
	value, err := strconv.ParseFloat(parts[3], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return SmartFilter{}, fmt.Errorf("smart filter %q: bad value", raw)
	}
	return SmartFilter{
		Dimension: Dimension(strings.ToLower(parts[0])),
		Cycle:     Cycle(cycle),
		Operator:  Operator(parts[2]),
		Value:     value,
	}, nil
}

// Key is the compact form of f without its ID.
func (f SmartFilter) Key() string {
	return fmt.Sprintf("%s:%d:%s:%g", f.Dimension, f.Cycle, f.Operator, f.Value)
}

// Matches reports whether s passes the filter. A missing score never passes.
func (f SmartFilter) Matches(s *StudentRecord) bool {
	v, ok := s.Score(f.Dimension, f.Cycle).Int()
	if !ok {
		return false
	}
	return f.Operator.Compare(float64(v), f.Value)
}

// ══════════════════════════════════════════════════════════════════════════════
// SORTING
// ══════════════════════════════════════════════════════════════════════════════

// Identity sort fields. Score fields use the form "<dimension>_<cycle>".
const (
	SortFieldName      = "name"
	SortFieldEmail     = "email"
	SortFieldGroup     = "group"
	SortFieldYearGroup = "yearGroup"
	SortFieldFaculty   = "faculty"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortState is the active sort field and direction.
type SortState struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// ScoreField returns the sort/column key for a dimension and cycle, e.g. "vision_1".
func ScoreField(d Dimension, c Cycle) string {
	return fmt.Sprintf("%s_%d", d, c)
}

// TrendField returns the column key of a dimension's trend, e.g. "vision_trend".
func TrendField(d Dimension) string {
	return string(d) + "_trend"
}

// ParseScoreField splits "<dimension>_<cycle>".
func ParseScoreField(field string) (Dimension, Cycle, bool) {
	dim, cycle, found := strings.Cut(field, "_")
	if !found {
		return "", 0, false
	}
	d := Dimension(dim)
	n, err := strconv.Atoi(cycle)
	if err != nil || !d.IsValid() || !Cycle(n).IsValid() {
		return "", 0, false
	}
	return d, Cycle(n), true
}

// ValidSortField reports whether field can be sorted on.
func ValidSortField(field string) bool {
	switch field {
	case SortFieldName, SortFieldEmail, SortFieldGroup, SortFieldYearGroup, SortFieldFaculty:
		return true
	}
	_, _, ok := ParseScoreField(field)
	return ok
}

// SortStudents orders students in place. Missing values rank lowest:
// an empty string for identity fields and 0 for scores. Ties keep input order.
func SortStudents(students []StudentRecord, st SortState) {
	field := st.Field
	if field == "" {
		field = SortFieldName
	}
	desc := st.Direction == SortDesc

	if dim, cycle, ok := ParseScoreField(field); ok {
		sort.SliceStable(students, func(i, j int) bool {
			a := students[i].Score(dim, cycle).OrZero()
			b := students[j].Score(dim, cycle).OrZero()
			if desc {
				return a > b
			}
			return a < b
		})
		return
	}

	sort.SliceStable(students, func(i, j int) bool {
		a := strings.ToLower(students[i].identityValue(field))
		b := strings.ToLower(students[j].identityValue(field))
		if desc {
			return a > b
		}
		return a < b
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PAGINATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	// PageSizeAll shows every filtered student on one page.
	PageSizeAll = 0
	// DefaultPageSize is the initial page size.
	DefaultPageSize = 50
)

// PageSizes returns the selectable page sizes.
func PageSizes() []int {
	return []int{10, 25, 50, 100, 200, PageSizeAll}
}

// ValidPageSize reports whether n is a selectable page size.
func ValidPageSize(n int) bool {
	for _, size := range PageSizes() {
		if size == n {
			return true
		}
	}
	return false
}

// Page is one slice of the filtered, sorted student list.
type Page struct {
	Students      []StudentRecord  `json:"students"`
	TotalFiltered int              `json:"total_filtered"`
	TotalStudents int              `json:"total_students"`
	Page          int              `json:"page"`
	PageSize      int              `json:"page_size"`
	TotalPages    int              `json:"total_pages"`
	From          int              `json:"from"`
	To            int              `json:"to"`
	Columns       ColumnVisibility `json:"columns"`
}

// TotalPages returns the number of pages; always at least 1.
func TotalPages(total, pageSize int) int {
	if pageSize <= PageSizeAll || total == 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// ClampPage keeps page within 1..TotalPages.
func ClampPage(page, total, pageSize int) int {
	last := TotalPages(total, pageSize)
	if page < 1 {
		return 1
	}
	if page > last {
		return last
	}
	return page
}

// Paginate slices students for the requested page, clamping out-of-range pages.
func Paginate(students []StudentRecord, pageSize, page int) Page {
	total := len(students)
	page = ClampPage(page, total, pageSize)

	p := Page{
		TotalFiltered: total,
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    TotalPages(total, pageSize),
	}

	start, end := 0, total
	if pageSize > PageSizeAll {
		start = (page - 1) * pageSize
		end = start + pageSize
		if end > total {
			end = total
		}
	}

	p.Students = students[start:end]
	if total > 0 {
		p.From = start + 1
		p.To = end
	}
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW STATE
// ══════════════════════════════════════════════════════════════════════════════

// FilterAll is the selector value meaning "no restriction".
const FilterAll = "all"

// ViewState is the full set of user-chosen filters, sort and page.
type ViewState struct {
	Role         string        `json:"role"`
	Search       string        `json:"search"`
	YearGroup    string        `json:"year_group"`
	Faculty      string        `json:"faculty"`
	Group        string        `json:"group"`
	SmartFilters []SmartFilter `json:"smart_filters"`
	Sort         SortState     `json:"sort"`
	PageSize     int           `json:"page_size"`
	Page         int           `json:"page"`
}

// DefaultViewState returns the initial view: everything, sorted by name.
func DefaultViewState() ViewState {
	return ViewState{
		Role:      RoleFilterAll,
		YearGroup: FilterAll,
		Faculty:   FilterAll,
		Group:     FilterAll,
		Sort:      SortState{Field: SortFieldName, Direction: SortAsc},
		PageSize:  DefaultPageSize,
		Page:      1,
	}
}

// sameFilters reports whether two states select the same students.
func (v ViewState) sameFilters(o ViewState) bool {
	if v.Role != o.Role || v.Search != o.Search || v.YearGroup != o.YearGroup ||
		v.Faculty != o.Faculty || v.Group != o.Group || len(v.SmartFilters) != len(o.SmartFilters) {
		return false
	}
	for i := range v.SmartFilters {
		if v.SmartFilters[i] != o.SmartFilters[i] {
			return false
		}
	}
	return true
}

func isAll(v string) bool {
	return v == "" || v == FilterAll
}

// Matches reports whether s passes every filter category.
func (v ViewState) Matches(s *StudentRecord) bool {
	if !isAll(v.Role) && !s.HasRole(RoleTag(v.Role)) {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(v.Search)); q != "" {
		if !strings.Contains(strings.ToLower(s.Name), q) &&
			!strings.Contains(strings.ToLower(s.Email), q) &&
			!strings.Contains(strings.ToLower(s.Group), q) {
			return false
		}
	}

	if !isAll(v.YearGroup) && s.YearGroup != v.YearGroup {
		return false
	}
	if !isAll(v.Faculty) && s.Faculty != v.Faculty {
		return false
	}
	if !isAll(v.Group) && s.Group != v.Group {
		return false
	}

	for _, f := range v.SmartFilters {
		if !f.Matches(s) {
			return false
		}
	}
	return true
}

// FilterStudents returns the students matching v, preserving order.
// The input slice is never modified.
func FilterStudents(all []StudentRecord, v ViewState) []StudentRecord {
	out := make([]StudentRecord, 0, len(all))
	for i := range all {
		if v.Matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// Apply recomputes the visible page from the unfiltered set.
func Apply(all []StudentRecord, v ViewState) Page {
	filtered := FilterStudents(all, v)
	SortStudents(filtered, v.Sort)

	page := Paginate(filtered, v.PageSize, v.Page)
	page.TotalStudents = len(all)
	page.Columns = ComputeColumnVisibility(filtered)
	return page
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW CONTROLLER
// ══════════════════════════════════════════════════════════════════════════════

// View owns a ViewState and applies the interaction rules: any filter change
// resets the page to 1, toggling the active sort field flips its direction and
// switching field resets to ascending. A View is not safe for concurrent use.
type View struct {
	state ViewState
}

// NewView creates a view in its default state.
func NewView() *View {
	return &View{state: DefaultViewState()}
}

// State returns a copy of the current state.
func (v *View) State() ViewState {
	st := v.state
	st.SmartFilters = append([]SmartFilter(nil), v.state.SmartFilters...)
	return st
}

// SetRole selects a role tag or RoleFilterAll.
func (v *View) SetRole(role string) {
	v.state.Role = role
	v.state.Page = 1
}

// SetSearch sets the free-text search.
func (v *View) SetSearch(q string) {
	v.state.Search = q
	v.state.Page = 1
}

// SetYearGroup selects a year group or FilterAll.
func (v *View) SetYearGroup(yg string) {
	v.state.YearGroup = yg
	v.state.Page = 1
}

// SetFaculty selects a faculty or FilterAll.
func (v *View) SetFaculty(f string) {
	v.state.Faculty = f
	v.state.Page = 1
}

// SetGroup selects a group or FilterAll.
func (v *View) SetGroup(g string) {
	v.state.Group = g
	v.state.Page = 1
}

// AddSmartFilter appends a predicate row.
func (v *View) AddSmartFilter(f SmartFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	v.state.SmartFilters = append(v.state.SmartFilters, f)
	v.state.Page = 1
	return nil
}

// RemoveSmartFilter deletes the predicate with the given id.
func (v *View) RemoveSmartFilter(id string) bool {
	for i, f := range v.state.SmartFilters {
		if f.ID == id {
			v.state.SmartFilters = append(v.state.SmartFilters[:i:i], v.state.SmartFilters[i+1:]...)
			v.state.Page = 1
			return true
		}
	}
	return false
}

// ClearFilters restores every filter to its default, keeping sort and page size.
func (v *View) ClearFilters() {
	def := DefaultViewState()
	def.Sort = v.state.Sort
	def.PageSize = v.state.PageSize
	v.state = def
}

// ToggleSort handles a click on a sortable column header.
func (v *View) ToggleSort(field string) error {
	if !ValidSortField(field) {
		return fmt.Errorf("cannot sort by %q", field)
	}
	if v.state.Sort.Field == field {
		if v.state.Sort.Direction == SortAsc {
			v.state.Sort.Direction = SortDesc
		} else {
			v.state.Sort.Direction = SortAsc
		}
		return nil
	}
	v.state.Sort = SortState{Field: field, Direction: SortAsc}
	return nil
}

// SetPageSize changes the page size and returns to the first page.
func (v *View) SetPageSize(n int) error {
	if !ValidPageSize(n) {
		return fmt.Errorf("unsupported page size %d", n)
	}
	v.state.PageSize = n
	v.state.Page = 1
	return nil
}

// SetPage moves to a page; Apply clamps it to the valid range.
func (v *View) SetPage(n int) {
	v.state.Page = n
}

// Update replaces the whole state at once. If any filter differs from the
// current state the page is reset to 1.
func (v *View) Update(next ViewState) error {
	if next.Sort.Field != "" && !ValidSortField(next.Sort.Field) {
		return fmt.Errorf("cannot sort by %q", next.Sort.Field)
	}
	if !ValidPageSize(next.PageSize) {
		return fmt.Errorf("unsupported page size %d", next.PageSize)
	}
	for _, f := range next.SmartFilters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	if !v.state.sameFilters(next) || next.PageSize != v.state.PageSize {
		next.Page = 1
	}
	v.state = next
	return nil
}

// Apply computes the visible page and stores the clamped page index.
func (v *View) Apply(all []StudentRecord) Page {
	page := Apply(all, v.state)
	v.state.Page = page.Page
	return page
}
