package access

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

// fakeFinder serves one canned record (or error) per object.
type fakeFinder struct {
	mu      sync.Mutex
	records map[string]string
	errs    map[string]error
	calls   []string
	filters map[string]results.Predicate
}

func newFakeFinder() *fakeFinder {
	return &fakeFinder{
		records: make(map[string]string),
		errs:    make(map[string]error),
		filters: make(map[string]results.Predicate),
	}
}

func (f *fakeFinder) FindFirst(_ context.Context, object string, filter results.Predicate) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, object)
	f.filters[object] = filter

	if err := f.errs[object]; err != nil {
		return nil, false, err
	}
	rec, ok := f.records[object]
	if !ok {
		return nil, false, nil
	}
	return []byte(rec), true, nil
}

func (f *fakeFinder) called(object string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == object {
			return true
		}
	}
	return false
}

func TestResolver_StaffAdmin(t *testing.T) {
	finder := newFakeFinder()
	finder.records["object_5"] = `{"id":"sa1","field_133":"","field_133_raw":[{"id":"est-1","identifier":"Test School"}]}`

	r := NewResolver(finder, DefaultDirectory(), nil)
	scope, err := r.Resolve(context.Background(), Viewer{Email: "admin@school.org", RawRoles: "Staff Admin"})
	require.NoError(t, err)

	assert.Equal(t, []results.Role{results.RoleStaffAdmin}, scope.Roles)
	assert.Equal(t, "est-1", scope.EstablishmentID)
	assert.Empty(t, scope.StaffRecordIDs)
	assert.False(t, scope.ResolvedAt.IsZero())
	assert.False(t, finder.called("object_3"))

	assert.Equal(t,
		results.Group(results.MatchAnd, results.Leaf("field_86", results.OperatorIs, "admin@school.org")),
		finder.filters["object_5"])
}

func TestResolver_StaffAdminWithoutEstablishment(t *testing.T) {
	t.Run("no record", func(t *testing.T) {
		r := NewResolver(newFakeFinder(), DefaultDirectory(), nil)
		_, err := r.Resolve(context.Background(), Viewer{Email: "admin@school.org", RawRoles: "Staff Admin"})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrEstablishmentUnresolved)
		assert.True(t, shared.IsForbidden(err))
	})

	t.Run("empty connection", func(t *testing.T) {
		finder := newFakeFinder()
		finder.records["object_5"] = `{"id":"sa1","field_133":[]}`
		r := NewResolver(finder, DefaultDirectory(), nil)
		_, err := r.Resolve(context.Background(), Viewer{Email: "admin@school.org", RawRoles: "Staff Admin"})
		assert.ErrorIs(t, err, shared.ErrEstablishmentUnresolved)
	})
}

func TestResolver_StaffRoles(t *testing.T) {
	finder := newFakeFinder()
	finder.records["object_7"] = `{"id":"tutor-1"}`
	finder.records["object_78"] = `{"id":"st-1"}`

	r := NewResolver(finder, DefaultDirectory(), nil)
	scope, err := r.Resolve(context.Background(), Viewer{
		Email:    "teacher@school.org",
		RawRoles: []string{"Tutor", "Head of Year", "Subject Teacher"},
	})
	require.NoError(t, err)

	// Head of Year has no record and is dropped.
	assert.Equal(t, []results.Role{results.RoleTutor, results.RoleSubjectTeacher}, scope.Roles)
	assert.Equal(t, map[results.Role]string{
		results.RoleTutor:          "tutor-1",
		results.RoleSubjectTeacher: "st-1",
	}, scope.StaffRecordIDs)
	assert.True(t, finder.called("object_18"))
}

func TestResolver_TransportErrorIsFatal(t *testing.T) {
	finder := newFakeFinder()
	finder.records["object_7"] = `{"id":"tutor-1"}`
	finder.errs["object_18"] = shared.WrapError("knack", "FetchPage", shared.ErrTransport, "failed", errors.New("boom"))

	r := NewResolver(finder, DefaultDirectory(), nil)
	_, err := r.Resolve(context.Background(), Viewer{Email: "t@school.org", RawRoles: "Tutor, Head of Year"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrTransport)
}

func TestResolver_ProfileFallback(t *testing.T) {
	finder := newFakeFinder()
	finder.records["object_3"] = `{
		"id": "p1",
		"field_73": "<span class=\"profile_7\">Tutor</span><br /><span class=\"profile_x\">Librarian</span>",
		"field_122": "<span class=\"5f1a2b3c4d5e6f7a8b9c0d1e\">Test School</span>"
	}`
	finder.records["object_7"] = `{"id":"tutor-1"}`

	r := NewResolver(finder, DefaultDirectory(), nil)
	scope, err := r.Resolve(context.Background(), Viewer{Email: "t@school.org"})
	require.NoError(t, err)

	assert.Equal(t, []results.Role{results.RoleTutor}, scope.Roles)
	assert.Equal(t, "5f1a2b3c4d5e6f7a8b9c0d1e", scope.EstablishmentID)
	assert.Equal(t, "tutor-1", scope.StaffRecordIDs[results.RoleTutor])
}

func TestResolver_NoRoles(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"unknown roles only", "Librarian"},
		{"student only", "Student"},
		{"no profile", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(newFakeFinder(), DefaultDirectory(), nil)
			_, err := r.Resolve(context.Background(), Viewer{Email: "x@school.org", RawRoles: tt.raw})
			assert.ErrorIs(t, err, shared.ErrNoRoles)
		})
	}
}

func TestResolver_MissingIdentity(t *testing.T) {
	r := NewResolver(newFakeFinder(), DefaultDirectory(), nil)
	_, err := r.Resolve(context.Background(), Viewer{Email: " ", RawRoles: "Tutor"})
	assert.ErrorIs(t, err, shared.ErrMissingIdentity)
}
