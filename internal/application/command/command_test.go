package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/application/access"
	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

type fakeLoader struct {
	snap      *session.Snapshot
	err       error
	refreshed bool
}

func (f *fakeLoader) Load(context.Context, access.Viewer) (*session.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeLoader) Refresh(context.Context, access.Viewer) (*session.Snapshot, error) {
	f.refreshed = true
	return f.snap, f.err
}

func TestLoadResults(t *testing.T) {
	loader := &fakeLoader{snap: &session.Snapshot{
		ID: "snap-1",
		Scope: &results.AccessScope{
			Roles:           []results.Role{results.RoleTutor, results.RoleHeadOfYear},
			EstablishmentID: "est1",
		},
		Students: make([]results.StudentRecord, 3),
		Pages:    2,
	}}
	h := NewLoadResultsHandler(loader)

	res, err := h.Handle(context.Background(), LoadResultsCommand{Viewer: access.Viewer{Email: "t@school.org"}})
	require.NoError(t, err)
	assert.Equal(t, "snap-1", res.SessionID)
	assert.Equal(t, 3, res.Students)
	assert.Equal(t, "est1", res.Establishment)
	assert.Len(t, res.AvailableRoles, 3)
	assert.False(t, loader.refreshed)

	_, err = h.Handle(context.Background(), LoadResultsCommand{Viewer: access.Viewer{Email: "t@school.org"}, Refresh: true})
	require.NoError(t, err)
	assert.True(t, loader.refreshed)

	_, err = h.Handle(context.Background(), LoadResultsCommand{})
	assert.ErrorIs(t, err, shared.ErrMissingIdentity)

	loader.err = shared.ErrFetchInProgress
	_, err = h.Handle(context.Background(), LoadResultsCommand{Viewer: access.Viewer{Email: "t@school.org"}})
	assert.ErrorIs(t, err, shared.ErrFetchInProgress)
}

type fakeStore struct {
	snap *session.Snapshot
	view *results.View
}

func (f *fakeStore) WithView(_ string, fn func(*session.Snapshot, *results.View) error) error {
	if f.snap == nil {
		return shared.ErrSessionNotLoaded
	}
	return fn(f.snap, f.view)
}

// nameWriter writes one student name per line.
type nameWriter struct{}

func (nameWriter) Write(w io.Writer, students []results.StudentRecord) (int, error) {
	for _, s := range students {
		if _, err := io.WriteString(w, s.Name+"\n"); err != nil {
			return 0, err
		}
	}
	return len(students), nil
}

type memoryAudit struct {
	entries []results.ExportAudit
	err     error
}

func (m *memoryAudit) Record(_ context.Context, e results.ExportAudit) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryAudit) Recent(context.Context, string, int) ([]results.ExportAudit, error) {
	return m.entries, nil
}

type gate map[string]bool

func (g gate) Enabled(feature, _ string) bool { return g[feature] }

func exportStore() *fakeStore {
	mk := func(id, name, year string) results.StudentRecord {
		s := results.NewStudentRecord(id)
		s.Name, s.YearGroup = name, year
		return *s
	}
	students := []results.StudentRecord{mk("1", "Cara", "12"), mk("2", "Abe", "10"), mk("3", "Ben", "12")}
	return &fakeStore{
		snap: &session.Snapshot{ID: "snap", Scope: &results.AccessScope{EstablishmentID: "est1"}, Students: students},
		view: results.NewView(),
	}
}

func TestExportResults(t *testing.T) {
	store := exportStore()
	// Page size 10 with page 2 requested must still export everything.
	store.view.SetPage(2)
	audit := &memoryAudit{}
	features := gate{config.FeatureExportCSV: true, config.FeatureExportAudit: true}
	h := NewExportResultsHandler(store, nameWriter{}, audit, features, logger.Default())
	h.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	st := results.DefaultViewState()
	st.YearGroup = "12"
	st.PageSize = 10

	var buf bytes.Buffer
	res, err := h.Handle(context.Background(), ExportResultsCommand{ViewerEmail: "T@school.org", State: &st}, &buf)
	require.NoError(t, err)

	assert.Equal(t, "Ben\nCara\n", buf.String())
	assert.Equal(t, 2, res.Rows)
	require.Len(t, audit.entries, 1)

	entry := audit.entries[0]
	assert.Equal(t, res.AuditID, entry.ID)
	assert.Equal(t, logger.HashIdentity("t@school.org"), entry.ViewerHash)
	assert.Equal(t, "est1", entry.EstablishmentID)
	assert.Equal(t, "12", entry.Filters.YearGroup)
	assert.NotContains(t, entry.ViewerHash, "school")
}

func TestExportResults_AuditFailureKeepsExport(t *testing.T) {
	audit := &memoryAudit{err: errors.New("db down")}
	h := NewExportResultsHandler(exportStore(), nameWriter{}, audit, nil, nil)

	var buf bytes.Buffer
	res, err := h.Handle(context.Background(), ExportResultsCommand{ViewerEmail: "t@school.org"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Empty(t, res.AuditID)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestExportResults_Disabled(t *testing.T) {
	h := NewExportResultsHandler(exportStore(), nameWriter{}, nil, gate{}, nil)
	_, err := h.Handle(context.Background(), ExportResultsCommand{ViewerEmail: "t@school.org"}, io.Discard)
	assert.ErrorIs(t, err, shared.ErrFeatureDisabled)
}

func TestExportResults_NotLoaded(t *testing.T) {
	h := NewExportResultsHandler(&fakeStore{}, nameWriter{}, nil, nil, nil)
	_, err := h.Handle(context.Background(), ExportResultsCommand{ViewerEmail: "t@school.org"}, io.Discard)
	assert.ErrorIs(t, err, shared.ErrSessionNotLoaded)
}
