package query

import (
	"context"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROUP ANALYTICS QUERY
// Per-cycle averages of the currently filtered students.
// ══════════════════════════════════════════════════════════════════════════════

// GetGroupAnalyticsQuery asks for group averages.
type GetGroupAnalyticsQuery struct {
	ViewerEmail string
	// State, when set, replaces the stored view first.
	State *results.ViewState
}

// Validate checks the query.
func (q GetGroupAnalyticsQuery) Validate() error {
	return requireViewer(q.ViewerEmail)
}

// GetGroupAnalyticsHandler handles GetGroupAnalyticsQuery.
type GetGroupAnalyticsHandler struct {
	store    SessionStore
	features FeatureGate
}

// NewGetGroupAnalyticsHandler creates a new handler. features may be nil.
func NewGetGroupAnalyticsHandler(store SessionStore, features FeatureGate) *GetGroupAnalyticsHandler {
	return &GetGroupAnalyticsHandler{store: store, features: features}
}

// Handle averages over the filtered set, ignoring pagination.
func (h *GetGroupAnalyticsHandler) Handle(_ context.Context, q GetGroupAnalyticsQuery) (*results.GroupAnalytics, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if h.features != nil && !h.features.Enabled(config.FeatureGroupAnalytics, q.ViewerEmail) {
		return nil, shared.ErrFeatureDisabled
	}

	var out results.GroupAnalytics
	err := h.store.WithView(q.ViewerEmail, func(snap *session.Snapshot, view *results.View) error {
		if err := applyState(view, q.State); err != nil {
			return err
		}
		out = results.BuildGroupAnalytics(results.FilterStudents(snap.Students, view.State()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
