package query

import (
	"context"

	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

// GetFilterOptionsQuery asks for the selector values of the loaded set.
type GetFilterOptionsQuery struct {
	ViewerEmail string
}

// Validate checks the query.
func (q GetFilterOptionsQuery) Validate() error {
	return requireViewer(q.ViewerEmail)
}

// GetFilterOptionsHandler handles GetFilterOptionsQuery.
type GetFilterOptionsHandler struct {
	store SessionStore
}

// NewGetFilterOptionsHandler creates a new handler.
func NewGetFilterOptionsHandler(store SessionStore) *GetFilterOptionsHandler {
	return &GetFilterOptionsHandler{store: store}
}

// Handle returns options built from the whole loaded set, not the filtered one.
func (h *GetFilterOptionsHandler) Handle(_ context.Context, q GetFilterOptionsQuery) (*results.FilterOptions, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var opts results.FilterOptions
	err := h.store.WithView(q.ViewerEmail, func(snap *session.Snapshot, _ *results.View) error {
		opts = results.BuildFilterOptions(snap.Students, snap.Scope)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &opts, nil
}
