package results

import (
	"strings"
	"time"
)

// Role is a staff role name as assigned by the host platform.
type Role string

const (
	RoleStaffAdmin     Role = "Staff Admin"
	RoleTutor          Role = "Tutor"
	RoleHeadOfYear     Role = "Head of Year"
	RoleSubjectTeacher Role = "Subject Teacher"
	RoleStudent        Role = "Student"
)

// KnownRoles returns the roles the viewer understands.
func KnownRoles() []Role {
	return []Role{RoleStaffAdmin, RoleTutor, RoleHeadOfYear, RoleSubjectTeacher, RoleStudent}
}

// StaffLookupRoles are the roles resolved to an individual staff record id.
func StaffLookupRoles() []Role {
	return []Role{RoleTutor, RoleHeadOfYear, RoleSubjectTeacher}
}

// ParseRole matches s against the known roles, ignoring case and extra spaces.
func ParseRole(s string) (Role, bool) {
	normalized := strings.Join(strings.Fields(s), " ")
	for _, r := range KnownRoles() {
		if strings.EqualFold(normalized, string(r)) {
			return r, true
		}
	}
	return "", false
}

// Tag returns the student role tag that corresponds to r.
func (r Role) Tag() (RoleTag, bool) {
	switch r {
	case RoleStaffAdmin:
		return RoleTagStaffAdmin, true
	case RoleTutor:
		return RoleTagTutor, true
	case RoleHeadOfYear:
		return RoleTagHeadOfYear, true
	case RoleSubjectTeacher:
		return RoleTagSubjectTeacher, true
	default:
		return "", false
	}
}

// NeedsStaffRecord reports whether r is scoped by an individual staff record.
func (r Role) NeedsStaffRecord() bool {
	return r == RoleTutor || r == RoleHeadOfYear || r == RoleSubjectTeacher
}

// AccessScope is the resolved visibility of one viewer.
type AccessScope struct {
	ViewerEmail     string          `json:"viewer_email"`
	Roles           []Role          `json:"roles"`
	EstablishmentID string          `json:"establishment_id,omitempty"`
	StaffRecordIDs  map[Role]string `json:"staff_record_ids,omitempty"`
	ResolvedAt      time.Time       `json:"resolved_at"`
}

// HasRole reports whether the scope includes r.
func (s *AccessScope) HasRole(r Role) bool {
	for _, role := range s.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the viewer is a Staff Admin.
func (s *AccessScope) IsAdmin() bool {
	return s.HasRole(RoleStaffAdmin)
}

// RoleOption is an entry of the role selector.
type RoleOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// RoleFilterAll selects students of every role the viewer holds.
const RoleFilterAll = "all"

// AvailableRoles lists the selector entries for the viewer's staff roles.
// An "all" entry leads the list when more than one role is available.
func (s *AccessScope) AvailableRoles() []RoleOption {
	labels := map[Role]string{
		RoleStaffAdmin:     "Staff Admin (All Students)",
		RoleTutor:          "Tutor",
		RoleHeadOfYear:     "Head of Year",
		RoleSubjectTeacher: "Subject Teacher",
	}

	var options []RoleOption
	for _, r := range []Role{RoleStaffAdmin, RoleTutor, RoleHeadOfYear, RoleSubjectTeacher} {
		if !s.HasRole(r) {
			continue
		}
		tag, _ := r.Tag()
		options = append(options, RoleOption{Value: string(tag), Label: labels[r]})
	}

	if len(options) > 1 {
		options = append([]RoleOption{{Value: RoleFilterAll, Label: "All My Students"}}, options...)
	}
	return options
}
