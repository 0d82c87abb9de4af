package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/pkg/retry"
)

// ExportAuditRepository implements results.ExportAuditRepository.
type ExportAuditRepository struct {
	db      Querier
	retrier *retry.Retrier
}

// NewExportAuditRepository creates a repository over db.
func NewExportAuditRepository(db Querier) *ExportAuditRepository {
	return &ExportAuditRepository{
		db:      db,
		retrier: retry.DatabaseRetrier(),
	}
}

var _ results.ExportAuditRepository = (*ExportAuditRepository)(nil)

const insertExportAudit = `
INSERT INTO export_audit (id, viewer_hash, establishment_id, row_count, filters, exported_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// Record stores one entry. Transient connection errors are retried.
func (r *ExportAuditRepository) Record(ctx context.Context, e results.ExportAudit) error {
	filters, err := json.Marshal(e.Filters)
	if err != nil {
		return fmt.Errorf("marshal export filters: %w", err)
	}

	err = r.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, insertExportAudit,
			e.ID, e.ViewerHash, e.EstablishmentID, e.RowCount, filters, e.ExportedAt)
		if IsTransient(err) {
			return retry.Retryable(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("record export audit: %w", err)
	}
	return nil
}

const selectRecentExportAudit = `
SELECT id, viewer_hash, establishment_id, row_count, filters, exported_at
FROM export_audit
WHERE $1 = '' OR establishment_id = $1
ORDER BY exported_at DESC
LIMIT $2`

// Recent returns the newest entries, newest first.
func (r *ExportAuditRepository) Recent(ctx context.Context, establishmentID string, limit int) ([]results.ExportAudit, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, selectRecentExportAudit, establishmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query export audit: %w", err)
	}
	defer rows.Close()

	var out []results.ExportAudit
	for rows.Next() {
		var (
			e       results.ExportAudit
			filters []byte
		)
		if err := rows.Scan(&e.ID, &e.ViewerHash, &e.EstablishmentID, &e.RowCount, &filters, &e.ExportedAt); err != nil {
			return nil, fmt.Errorf("scan export audit: %w", err)
		}
		if len(filters) > 0 {
			if err := json.Unmarshal(filters, &e.Filters); err != nil {
				return nil, fmt.Errorf("decode export filters: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// NO-OP RECORDER
// ══════════════════════════════════════════════════════════════════════════════

// NopExportAudit discards entries; used when no database is configured.
type NopExportAudit struct{}

// Record implements results.ExportAuditRepository.
func (NopExportAudit) Record(context.Context, results.ExportAudit) error { return nil }

// Recent implements results.ExportAuditRepository.
func (NopExportAudit) Recent(context.Context, string, int) ([]results.ExportAudit, error) {
	return nil, nil
}
