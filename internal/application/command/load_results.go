// Package command contains operations that change a viewer's session.
package command

import (
	"context"
	"time"

	"github.com/vespa-hub/vespa-results/internal/application/access"
	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOAD RESULTS COMMAND
// Runs the resolve, fetch and normalize pipeline for a viewer. With Refresh
// set the cached scope is dropped first, which is the retry path after an
// access or transport failure.
// ══════════════════════════════════════════════════════════════════════════════

// Loader runs the session pipeline.
type Loader interface {
	Load(ctx context.Context, v access.Viewer) (*session.Snapshot, error)
	Refresh(ctx context.Context, v access.Viewer) (*session.Snapshot, error)
}

// LoadResultsCommand identifies the viewer to load for.
type LoadResultsCommand struct {
	Viewer  access.Viewer
	Refresh bool
}

// Validate validates the command.
func (c LoadResultsCommand) Validate() error {
	return c.Viewer.Validate()
}

// LoadResultsResult summarizes a completed load.
type LoadResultsResult struct {
	SessionID      string               `json:"session_id"`
	Roles          []results.Role       `json:"roles"`
	AvailableRoles []results.RoleOption `json:"available_roles"`
	Establishment  string               `json:"establishment_id,omitempty"`
	Students       int                  `json:"students"`
	Records        int                  `json:"records"`
	Skipped        int                  `json:"skipped"`
	Pages          int                  `json:"pages"`
	Truncated      bool                 `json:"truncated"`
	LoadedAt       time.Time            `json:"loaded_at"`
	ExpiresAt      time.Time            `json:"expires_at"`
}

// LoadResultsHandler handles LoadResultsCommand.
type LoadResultsHandler struct {
	loader Loader
}

// NewLoadResultsHandler creates a new LoadResultsHandler.
func NewLoadResultsHandler(loader Loader) *LoadResultsHandler {
	return &LoadResultsHandler{loader: loader}
}

// Handle executes the command.
func (h *LoadResultsHandler) Handle(ctx context.Context, cmd LoadResultsCommand) (*LoadResultsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		snap *session.Snapshot
		err  error
	)
	if cmd.Refresh {
		snap, err = h.loader.Refresh(ctx, cmd.Viewer)
	} else {
		snap, err = h.loader.Load(ctx, cmd.Viewer)
	}
	if err != nil {
		return nil, err
	}

	res := &LoadResultsResult{
		SessionID: snap.ID,
		Students:  len(snap.Students),
		Records:   snap.Report.Records,
		Skipped:   snap.Report.Skipped,
		Pages:     snap.Pages,
		Truncated: snap.Truncated,
		LoadedAt:  snap.LoadedAt,
		ExpiresAt: snap.ExpiresAt,
	}
	if snap.Scope != nil {
		res.Roles = snap.Scope.Roles
		res.AvailableRoles = snap.Scope.AvailableRoles()
		res.Establishment = snap.Scope.EstablishmentID
	}
	return res, nil
}
