package command

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/application/session"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT RESULTS COMMAND
// Writes every filtered student (ignoring pagination) in the order of the
// current sort, then records an audit entry.
// ══════════════════════════════════════════════════════════════════════════════

// SessionStore gives serialized access to a viewer's snapshot and view.
type SessionStore interface {
	WithView(email string, fn func(*session.Snapshot, *results.View) error) error
}

// RowWriter renders students to w and returns the rows written.
type RowWriter interface {
	Write(w io.Writer, students []results.StudentRecord) (int, error)
}

// FeatureGate evaluates feature flags per viewer.
type FeatureGate interface {
	Enabled(feature, viewerEmail string) bool
}

// ExportResultsCommand asks for an export of the current view.
type ExportResultsCommand struct {
	ViewerEmail string
	// State, when set, replaces the stored view first.
	State *results.ViewState
}

// Validate validates the command.
func (c ExportResultsCommand) Validate() error {
	if c.ViewerEmail == "" {
		return shared.ErrMissingIdentity
	}
	return nil
}

// ExportResultsResult describes a written export.
type ExportResultsResult struct {
	AuditID    string    `json:"audit_id,omitempty"`
	Rows       int       `json:"rows"`
	ExportedAt time.Time `json:"exported_at"`
}

// ExportResultsHandler handles ExportResultsCommand.
type ExportResultsHandler struct {
	store    SessionStore
	writer   RowWriter
	audit    results.ExportAuditRepository // optional
	features FeatureGate                   // optional
	logger   *logger.Logger
	now      func() time.Time
}

// NewExportResultsHandler creates a new ExportResultsHandler. audit and
// features may be nil.
func NewExportResultsHandler(
	store SessionStore,
	writer RowWriter,
	audit results.ExportAuditRepository,
	features FeatureGate,
	log *logger.Logger,
) *ExportResultsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ExportResultsHandler{
		store:    store,
		writer:   writer,
		audit:    audit,
		features: features,
		logger:   log.With(logger.Component("export")),
		now:      time.Now,
	}
}

func (h *ExportResultsHandler) enabled(feature, email string) bool {
	return h.features == nil || h.features.Enabled(feature, email)
}

// Handle writes the export to w. An audit failure is logged and does not
// fail an export that has already been written.
func (h *ExportResultsHandler) Handle(ctx context.Context, cmd ExportResultsCommand, w io.Writer) (*ExportResultsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !h.enabled(config.FeatureExportCSV, cmd.ViewerEmail) {
		return nil, shared.ErrFeatureDisabled
	}

	var (
		rows          int
		state         results.ViewState
		establishment string
	)
	err := h.store.WithView(cmd.ViewerEmail, func(snap *session.Snapshot, view *results.View) error {
		if cmd.State != nil {
			if err := view.Update(*cmd.State); err != nil {
				return shared.WrapError("results", "UpdateView", shared.ErrInvalidView, err.Error(), err)
			}
		}
		state = view.State()
		if snap.Scope != nil {
			establishment = snap.Scope.EstablishmentID
		}

		filtered := results.FilterStudents(snap.Students, state)
		results.SortStudents(filtered, state.Sort)

		var werr error
		rows, werr = h.writer.Write(w, filtered)
		return werr
	})
	if err != nil {
		return nil, err
	}

	res := &ExportResultsResult{Rows: rows, ExportedAt: h.now().UTC()}
	h.logger.Info("results exported", logger.Viewer(cmd.ViewerEmail), logger.ExportRows(rows))

	if h.audit == nil || !h.enabled(config.FeatureExportAudit, cmd.ViewerEmail) {
		return res, nil
	}

	entry := results.ExportAudit{
		ID:              uuid.NewString(),
		ViewerHash:      logger.HashIdentity(cmd.ViewerEmail),
		EstablishmentID: establishment,
		RowCount:        rows,
		Filters:         state,
		ExportedAt:      res.ExportedAt,
	}
	if err := h.audit.Record(ctx, entry); err != nil {
		h.logger.Warn("export audit failed", logger.Viewer(cmd.ViewerEmail), logger.Err(err))
		return res, nil
	}
	res.AuditID = entry.ID
	return res, nil
}
