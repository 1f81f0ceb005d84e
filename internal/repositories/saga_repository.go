package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"loanops/internal/models"
)

type SagaRepository struct {
	db *sql.DB
}

func NewSagaRepository(db *sql.DB) *SagaRepository {
	return &SagaRepository{db: db}
}

func (r *SagaRepository) Create(ctx context.Context, s *models.SubmissionSaga) error {
	const q = `
		INSERT INTO ussd_submission_sagas (id, tenant_id, application_id, state, lead_id, lead_created,
			fineract_loan_id, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.ExecContext(ctx, q, s.ID, s.TenantID, s.ApplicationID, string(s.State), s.LeadID,
		s.LeadCreated, s.FineractLoanID, s.LastError, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("create saga: %w", err)
	}
	return nil
}

// Save persists the saga's current state.
func (r *SagaRepository) Save(ctx context.Context, s *models.SubmissionSaga) error {
	const q = `
		UPDATE ussd_submission_sagas
		SET state=$1, lead_id=$2, lead_created=$3, fineract_loan_id=$4, last_error=$5, updated_at=$6
		WHERE id=$7
	`
	if _, err := r.db.ExecContext(ctx, q, string(s.State), s.LeadID, s.LeadCreated, s.FineractLoanID,
		s.LastError, s.UpdatedAt, s.ID); err != nil {
		return fmt.Errorf("save saga: %w", err)
	}
	return nil
}

func (r *SagaRepository) ListByApplication(ctx context.Context, tenantID string, applicationID int64) ([]models.SubmissionSaga, error) {
	const q = `
		SELECT id, tenant_id, application_id, state, lead_id, lead_created, fineract_loan_id,
		       last_error, created_at, updated_at
		FROM ussd_submission_sagas
		WHERE tenant_id = $1 AND application_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, q, tenantID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list sagas: %w", err)
	}
	defer rows.Close()

	out := []models.SubmissionSaga{}
	for rows.Next() {
		var s models.SubmissionSaga
		var state string
		if err := rows.Scan(&s.ID, &s.TenantID, &s.ApplicationID, &state, &s.LeadID, &s.LeadCreated,
			&s.FineractLoanID, &s.LastError, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.State = models.SagaState(state)
		out = append(out, s)
	}
	return out, rows.Err()
}
