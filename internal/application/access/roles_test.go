package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

func TestParseRoles(t *testing.T) {
	const estID = "5f1a2b3c4d5e6f7a8b9c0d1e"

	tests := []struct {
		name          string
		raw           any
		want          []results.Role
		unknown       []string
		establishment string
	}{
		{
			name: "comma separated string",
			raw:  "Tutor, Head of Year",
			want: []results.Role{results.RoleTutor, results.RoleHeadOfYear},
		},
		{
			name:    "string slice with unknown role",
			raw:     []string{"Staff Admin", "Librarian"},
			want:    []results.Role{results.RoleStaffAdmin},
			unknown: []string{"Librarian"},
		},
		{
			name: "generic slice with identifier objects",
			raw:  []any{"subject teacher", map[string]any{"identifier": "Tutor"}},
			want: []results.Role{results.RoleTutor, results.RoleSubjectTeacher},
		},
		{
			name: "markup with spans",
			raw:  `<span class="profile_7">Tutor</span><br /><span class="profile_5">Staff Admin</span>`,
			want: []results.Role{results.RoleStaffAdmin, results.RoleTutor},
		},
		{
			name:          "markup carrying an establishment id",
			raw:           `<span class="` + estID + `">Head of Year</span>`,
			want:          []results.Role{results.RoleHeadOfYear},
			establishment: estID,
		},
		{
			name: "json array string",
			raw:  `["Tutor","Tutor"]`,
			want: []results.Role{results.RoleTutor},
		},
		{
			name: "raw json",
			raw:  json.RawMessage(`[{"id":"p1","identifier":"Staff Admin"}]`),
			want: []results.Role{results.RoleStaffAdmin},
		},
		{
			name: "gjson value",
			raw:  gjson.Parse(`"Student"`),
			want: []results.Role{results.RoleStudent},
		},
		{
			name: "nil",
			raw:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRoles(tt.raw)
			assert.Equal(t, tt.want, got.Roles)
			assert.Equal(t, tt.unknown, got.Unknown)
			assert.Equal(t, tt.establishment, got.EstablishmentID)
		})
	}
}

func TestIsEmptyRaw(t *testing.T) {
	assert.True(t, isEmptyRaw(nil))
	assert.True(t, isEmptyRaw("  "))
	assert.True(t, isEmptyRaw([]string{}))
	assert.True(t, isEmptyRaw(json.RawMessage(`[]`)))
	assert.False(t, isEmptyRaw("Tutor"))
	assert.False(t, isEmptyRaw([]any{"Tutor"}))
}
