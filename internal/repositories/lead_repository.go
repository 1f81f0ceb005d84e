package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"loanops/internal/models"
)

const leadColumns = `
	id, tenant_id, firstname, middlename, lastname, mobile_no, email_address,
	date_of_birth, gender, national_id, external_id,
	office_id, legal_form_id, client_type_id, client_classification_id,
	monthly_income, monthly_expenses, credit_score, requested_amount,
	loan_product_id, loan_term_months, documents_verified,
	status, current_step, current_stage_id, closed_reason, user_id,
	fineract_client_id, fineract_loan_id, created_at, last_modified`

// Column is one column/value pair of a sparse update.
type Column struct {
	Name  string
	Value interface{}
}

type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// IsForeignKeyViolation reports a postgres FK error on the given constraint
// column (any FK when column is empty).
func IsForeignKeyViolation(err error, column string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23503" {
		return false
	}
	if column == "" {
		return true
	}
	return strings.Contains(pqErr.Constraint, column) || strings.Contains(pqErr.Detail, column)
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	l := &models.Lead{}
	var status string
	err := row.Scan(
		&l.ID, &l.TenantID, &l.FirstName, &l.MiddleName, &l.LastName, &l.MobileNo, &l.EmailAddress,
		&l.DateOfBirth, &l.Gender, &l.NationalID, &l.ExternalID,
		&l.OfficeID, &l.LegalFormID, &l.ClientTypeID, &l.ClientClassificationID,
		&l.MonthlyIncome, &l.MonthlyExpenses, &l.CreditScore, &l.RequestedAmount,
		&l.LoanProductID, &l.LoanTermMonths, &l.DocumentsVerified,
		&status, &l.CurrentStep, &l.CurrentStageID, &l.ClosedReason, &l.UserID,
		&l.FineractClientID, &l.FineractLoanID, &l.CreatedAt, &l.LastModified,
	)
	if err != nil {
		return nil, err
	}
	l.Status = models.LeadStatus(status)
	return l, nil
}

func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	query := `INSERT INTO leads (` + leadColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
		        $21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31)`
	_, err := r.db.ExecContext(ctx, query,
		lead.ID, lead.TenantID, lead.FirstName, lead.MiddleName, lead.LastName, lead.MobileNo, lead.EmailAddress,
		lead.DateOfBirth, lead.Gender, lead.NationalID, lead.ExternalID,
		lead.OfficeID, lead.LegalFormID, lead.ClientTypeID, lead.ClientClassificationID,
		lead.MonthlyIncome, lead.MonthlyExpenses, lead.CreditScore, lead.RequestedAmount,
		lead.LoanProductID, lead.LoanTermMonths, lead.DocumentsVerified,
		string(lead.Status), lead.CurrentStep, lead.CurrentStageID, lead.ClosedReason, lead.UserID,
		lead.FineractClientID, lead.FineractLoanID, lead.CreatedAt, lead.LastModified,
	)
	return err
}

// GetByID returns sql.ErrNoRows when the lead is not in the tenant.
func (r *LeadRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND tenant_id = $2`
	return scanLead(r.db.QueryRowContext(ctx, query, id, tenantID))
}

// UpdateColumns writes only the given columns plus last_modified.
func (r *LeadRepository) UpdateColumns(ctx context.Context, tenantID, id string, cols []Column, now time.Time) (int64, error) {
	sets := make([]string, 0, len(cols)+1)
	args := make([]interface{}, 0, len(cols)+3)
	i := 1
	for _, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Name, i))
		args = append(args, c.Value)
		i++
	}
	sets = append(sets, fmt.Sprintf("last_modified = $%d", i))
	args = append(args, now)
	i++

	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d AND tenant_id = $%d",
		strings.Join(sets, ", "), i, i+1)
	args = append(args, id, tenantID)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, tenantID, id string, status models.LeadStatus, closedReason *string, now time.Time) error {
	const query = `
		UPDATE leads
		SET status = $1, closed_reason = COALESCE($2, closed_reason), last_modified = $3
		WHERE id = $4 AND tenant_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, string(status), closedReason, now, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *LeadRepository) SetFineractIDs(ctx context.Context, tenantID, id string, clientID, loanID *int64, now time.Time) error {
	const query = `
		UPDATE leads
		SET fineract_client_id = COALESCE($1, fineract_client_id),
		    fineract_loan_id = COALESCE($2, fineract_loan_id),
		    last_modified = $3
		WHERE id = $4 AND tenant_id = $5
	`
	_, err := r.db.ExecContext(ctx, query, clientID, loanID, now, id, tenantID)
	return err
}

func (r *LeadRepository) FindByNationalIDOrPhone(ctx context.Context, tenantID, nationalID, phone string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads
		WHERE tenant_id = $1 AND status <> 'CLOSED'
		  AND ((national_id <> '' AND national_id = $2) OR (mobile_no <> '' AND mobile_no = $3))
		ORDER BY created_at DESC
		LIMIT 1`
	l, err := scanLead(r.db.QueryRowContext(ctx, query, tenantID, nationalID, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (r *LeadRepository) List(ctx context.Context, tenantID string, f models.LeadFilter) ([]models.Lead, int, error) {
	sortBy := f.SortBy
	allowed := map[string]bool{"created_at": true, "last_modified": true, "status": true, "lastname": true}
	if !allowed[sortBy] {
		sortBy = "last_modified"
	}
	order := strings.ToLower(f.Order)
	if order != "asc" && order != "desc" {
		order = "desc"
	}

	where := " WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	i := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, string(f.Status))
		i++
	}
	if f.StageID > 0 {
		where += fmt.Sprintf(" AND current_stage_id = $%d", i)
		args = append(args, f.StageID)
		i++
	}
	if f.OwnerID > 0 {
		where += fmt.Sprintf(" AND user_id = $%d", i)
		args = append(args, f.OwnerID)
		i++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += fmt.Sprintf(" AND (firstname ILIKE $%d OR lastname ILIKE $%d OR mobile_no ILIKE $%d OR national_id ILIKE $%d)", i, i, i, i)
		args = append(args, "%"+s+"%")
		i++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + leadColumns + " FROM leads" + where +
		fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d", sortBy, order, i, i+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

// StageAssignments returns current_stage_id of every open lead, nil when unassigned.
func (r *LeadRepository) StageAssignments(ctx context.Context, tenantID string) ([]*int64, error) {
	const query = `SELECT current_stage_id FROM leads WHERE tenant_id = $1 AND status <> 'CLOSED'`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*int64
	for rows.Next() {
		var id *int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
