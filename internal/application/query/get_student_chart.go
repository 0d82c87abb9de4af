package query

import (
	"context"
	"errors"

	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

// GetStudentChartQuery asks for one student's progress chart.
type GetStudentChartQuery struct {
	ViewerEmail string
	StudentID   string
}

// Validate checks the query.
func (q GetStudentChartQuery) Validate() error {
	if err := requireViewer(q.ViewerEmail); err != nil {
		return err
	}
	if q.StudentID == "" {
		return errors.New("get_student_chart: student_id is required")
	}
	return nil
}

// GetStudentChartHandler handles GetStudentChartQuery.
type GetStudentChartHandler struct {
	store SessionStore
}

// NewGetStudentChartHandler creates a new handler.
func NewGetStudentChartHandler(store SessionStore) *GetStudentChartHandler {
	return &GetStudentChartHandler{store: store}
}

// Handle looks the student up in the viewer's loaded set only, so a viewer
// can never chart a student outside their scope.
func (h *GetStudentChartHandler) Handle(_ context.Context, q GetStudentChartQuery) (*results.StudentChart, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var chart *results.StudentChart
	err := h.store.WithView(q.ViewerEmail, func(snap *session.Snapshot, _ *results.View) error {
		for i := range snap.Students {
			if snap.Students[i].ID == q.StudentID {
				c := results.BuildStudentChart(&snap.Students[i])
				chart = &c
				return nil
			}
		}
		return shared.ErrStudentNotFound
	})
	if err != nil {
		return nil, err
	}
	return chart, nil
}
