package query

import (
	"context"

	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

// GetColumnsQuery asks for the default column visibility.
type GetColumnsQuery struct {
	ViewerEmail string
}

// Validate checks the query.
func (q GetColumnsQuery) Validate() error {
	return requireViewer(q.ViewerEmail)
}

// GetColumnsHandler handles GetColumnsQuery.
type GetColumnsHandler struct {
	store SessionStore
}

// NewGetColumnsHandler creates a new handler.
func NewGetColumnsHandler(store SessionStore) *GetColumnsHandler {
	return &GetColumnsHandler{store: store}
}

// Handle computes visibility over every loaded student.
func (h *GetColumnsHandler) Handle(_ context.Context, q GetColumnsQuery) (results.ColumnVisibility, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var cols results.ColumnVisibility
	err := h.store.WithView(q.ViewerEmail, func(snap *session.Snapshot, _ *results.View) error {
		cols = results.ComputeColumnVisibility(snap.Students)
		return nil
	})
	return cols, err
}
