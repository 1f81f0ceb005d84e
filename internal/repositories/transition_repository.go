package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"loanops/internal/models"
)

// ErrStageChanged means the lead left the expected stage before the move committed.
var ErrStageChanged = errors.New("lead stage changed concurrently")

const transitionColumns = `id, tenant_id, lead_id, from_stage_id, to_stage_id, entered_at,
	user_id, overridden, override_reason, failed_checks`

type TransitionRepository struct {
	db *sql.DB
}

func NewTransitionRepository(db *sql.DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

// MoveLead sets the lead's stage and appends the transition in one transaction.
// The update only applies while the lead is still in t.FromStageID.
func (r *TransitionRepository) MoveLead(ctx context.Context, t *models.StageTransition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE leads
		SET current_stage_id = $1, last_modified = $2
		WHERE id = $3 AND tenant_id = $4 AND current_stage_id IS NOT DISTINCT FROM $5
	`, t.ToStageID, t.EnteredAt, t.LeadID, t.TenantID, t.FromStageID)
	if err != nil {
		return fmt.Errorf("update lead stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStageChanged
	}

	failed := pq.StringArray(t.FailedChecks)
	if failed == nil {
		failed = pq.StringArray{}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stage_transitions (`+transitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.TenantID, t.LeadID, t.FromStageID, t.ToStageID, t.EnteredAt,
		t.UserID, t.Overridden, t.OverrideReason, failed); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return tx.Commit()
}

func (r *TransitionRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.StageTransition, error) {
	return r.list(ctx, `SELECT `+transitionColumns+` FROM stage_transitions
		WHERE tenant_id = $1 ORDER BY lead_id, entered_at`, tenantID)
}

func (r *TransitionRepository) ListByLead(ctx context.Context, tenantID, leadID string) ([]models.StageTransition, error) {
	return r.list(ctx, `SELECT `+transitionColumns+` FROM stage_transitions
		WHERE tenant_id = $1 AND lead_id = $2 ORDER BY entered_at`, tenantID, leadID)
}

func (r *TransitionRepository) list(ctx context.Context, q string, args ...interface{}) ([]models.StageTransition, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	out := []models.StageTransition{}
	for rows.Next() {
		var t models.StageTransition
		var failed pq.StringArray
		if err := rows.Scan(&t.ID, &t.TenantID, &t.LeadID, &t.FromStageID, &t.ToStageID, &t.EnteredAt,
			&t.UserID, &t.Overridden, &t.OverrideReason, &failed); err != nil {
			return nil, err
		}
		t.FailedChecks = []string(failed)
		out = append(out, t)
	}
	return out, rows.Err()
}
