package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"loanops/internal/models"
)

const stageColumns = `id, tenant_id, name, description, stage_order, color,
	is_initial_state, is_final_state, allowed_transitions, sla_hours`

type PipelineRepository struct {
	db *sql.DB
}

func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

func scanStage(row rowScanner) (*models.PipelineStage, error) {
	var s models.PipelineStage
	var allowed pq.Int64Array
	if err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Description, &s.Order, &s.Color,
		&s.IsInitialState, &s.IsFinalState, &allowed, &s.SLAHours); err != nil {
		return nil, err
	}
	s.AllowedTransitions = []int64(allowed)
	if s.AllowedTransitions == nil {
		s.AllowedTransitions = []int64{}
	}
	return &s, nil
}

func (r *PipelineRepository) ListStages(ctx context.Context, tenantID string) ([]models.PipelineStage, error) {
	q := `SELECT ` + stageColumns + ` FROM pipeline_stages WHERE tenant_id = $1 ORDER BY stage_order, id`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	out := []models.PipelineStage{}
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetStage returns sql.ErrNoRows when the stage is not in the tenant.
func (r *PipelineRepository) GetStage(ctx context.Context, tenantID string, id int64) (*models.PipelineStage, error) {
	q := `SELECT ` + stageColumns + ` FROM pipeline_stages WHERE id = $1 AND tenant_id = $2`
	return scanStage(r.db.QueryRowContext(ctx, q, id, tenantID))
}

// InitialStage returns nil when the tenant has none configured.
func (r *PipelineRepository) InitialStage(ctx context.Context, tenantID string) (*models.PipelineStage, error) {
	q := `SELECT ` + stageColumns + ` FROM pipeline_stages WHERE tenant_id = $1 AND is_initial_state LIMIT 1`
	s, err := scanStage(r.db.QueryRowContext(ctx, q, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// CountStages counts how many of ids belong to the tenant.
func (r *PipelineRepository) CountStages(ctx context.Context, tenantID string, ids []int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pipeline_stages WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, pq.Array(ids)).Scan(&n)
	return n, err
}

// SaveStage inserts (ID == 0) or updates a stage. Marking it initial clears
// the flag on every other stage of the tenant in the same transaction.
func (r *PipelineRepository) SaveStage(ctx context.Context, s *models.PipelineStage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if s.IsInitialState {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pipeline_stages SET is_initial_state = FALSE WHERE tenant_id = $1 AND id <> $2 AND is_initial_state`,
			s.TenantID, s.ID); err != nil {
			return fmt.Errorf("clear initial stage: %w", err)
		}
	}

	allowed := pq.Int64Array(s.AllowedTransitions)
	if allowed == nil {
		allowed = pq.Int64Array{}
	}

	if s.ID == 0 {
		const q = `
			INSERT INTO pipeline_stages (tenant_id, name, description, stage_order, color,
				is_initial_state, is_final_state, allowed_transitions, sla_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, q, s.TenantID, s.Name, s.Description, s.Order, s.Color,
			s.IsInitialState, s.IsFinalState, allowed, s.SLAHours).Scan(&s.ID); err != nil {
			return fmt.Errorf("insert stage: %w", err)
		}
	} else {
		const q = `
			UPDATE pipeline_stages
			SET name=$1, description=$2, stage_order=$3, color=$4, is_initial_state=$5,
			    is_final_state=$6, allowed_transitions=$7, sla_hours=$8
			WHERE id=$9 AND tenant_id=$10
		`
		res, err := tx.ExecContext(ctx, q, s.Name, s.Description, s.Order, s.Color, s.IsInitialState,
			s.IsFinalState, allowed, s.SLAHours, s.ID, s.TenantID)
		if err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
	}
	return tx.Commit()
}
