package query

import (
	"context"
	"time"

	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RESULTS PAGE QUERY
// Filters, sorts and paginates the viewer's loaded students.
// ══════════════════════════════════════════════════════════════════════════════

// GetResultsPageQuery asks for the visible page.
type GetResultsPageQuery struct {
	ViewerEmail string

	// State replaces the stored view before the page is computed. nil keeps
	// the stored view, which is how a client re-renders without changes.
	State *results.ViewState
}

// Validate checks the query.
func (q GetResultsPageQuery) Validate() error {
	return requireViewer(q.ViewerEmail)
}

// ResultsPageResult is the visible page plus the effective view state.
type ResultsPageResult struct {
	SessionID string            `json:"session_id"`
	Page      results.Page      `json:"page"`
	State     results.ViewState `json:"state"`
	Truncated bool              `json:"truncated"`
	LoadedAt  time.Time         `json:"loaded_at"`
}

// GetResultsPageHandler handles GetResultsPageQuery.
type GetResultsPageHandler struct {
	store SessionStore
}

// NewGetResultsPageHandler creates a new handler.
func NewGetResultsPageHandler(store SessionStore) *GetResultsPageHandler {
	return &GetResultsPageHandler{store: store}
}

// Handle executes the query.
func (h *GetResultsPageHandler) Handle(_ context.Context, q GetResultsPageQuery) (*ResultsPageResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var result *ResultsPageResult
	err := h.store.WithView(q.ViewerEmail, func(snap *session.Snapshot, view *results.View) error {
		if err := applyState(view, q.State); err != nil {
			return err
		}
		page := view.Apply(snap.Students)
		result = &ResultsPageResult{
			SessionID: snap.ID,
			Page:      page,
			State:     view.State(),
			Truncated: snap.Truncated,
			LoadedAt:  snap.LoadedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
