package results

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT AUDIT
// ══════════════════════════════════════════════════════════════════════════════

// ExportAudit records that a viewer downloaded a CSV. It never holds student
// data or the viewer's email in clear.
type ExportAudit struct {
	ID              string    `json:"id"`
	ViewerHash      string    `json:"viewer_hash"`
	EstablishmentID string    `json:"establishment_id,omitempty"`
	RowCount        int       `json:"row_count"`
	Filters         ViewState `json:"filters"`
	ExportedAt      time.Time `json:"exported_at"`
}

// ExportAuditRepository persists export audit entries.
// Implementations live in the infrastructure layer.
type ExportAuditRepository interface {
	// Record stores one entry.
	Record(ctx context.Context, entry ExportAudit) error

	// Recent returns the newest entries for an establishment, newest first.
	// An empty establishment lists every entry.
	Recent(ctx context.Context, establishmentID string, limit int) ([]ExportAudit, error)
}
