// Package query contains read operations over a viewer's loaded results.
// Queries never reach the remote API; they only read the session.
package query

import (
	"strings"

	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

// SessionStore gives serialized access to a viewer's snapshot and view.
type SessionStore interface {
	WithView(email string, fn func(*session.Snapshot, *results.View) error) error
}

// FeatureGate evaluates feature flags per viewer.
type FeatureGate interface {
	Enabled(feature, viewerEmail string) bool
}

func requireViewer(email string) error {
	if strings.TrimSpace(email) == "" {
		return shared.ErrMissingIdentity
	}
	return nil
}

// applyState replaces the view state when next is set.
func applyState(view *results.View, next *results.ViewState) error {
	if next == nil {
		return nil
	}
	if err := view.Update(*next); err != nil {
		return shared.WrapError("results", "UpdateView", shared.ErrInvalidView, err.Error(), err)
	}
	return nil
}
