package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"loanops/internal/models"
)

const ussdColumns = `id, tenant_id, firstname, lastname, phone_number, national_id,
	loan_product_id, product_name, requested_amount, term_months, payout_method,
	mobile_money_provider, mobile_money_number, bank_name, bank_account_number, bank_branch,
	cash_pickup_location, status, notes, lead_id, fineract_loan_id, created_at, updated_at`

type UssdRepository struct {
	db *sql.DB
}

func NewUssdRepository(db *sql.DB) *UssdRepository {
	return &UssdRepository{db: db}
}

func scanUssd(row rowScanner) (*models.UssdLoanApplication, error) {
	var a models.UssdLoanApplication
	var payout, status string
	if err := row.Scan(&a.ID, &a.TenantID, &a.FirstName, &a.LastName, &a.PhoneNumber, &a.NationalID,
		&a.LoanProductID, &a.ProductName, &a.RequestedAmount, &a.TermMonths, &payout,
		&a.MobileMoneyProvider, &a.MobileMoneyNumber, &a.BankName, &a.BankAccountNumber, &a.BankBranch,
		&a.CashPickupLocation, &status, &a.Notes, &a.LeadID, &a.FineractLoanID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PayoutMethod = models.PayoutMethod(payout)
	a.Status = models.UssdStatus(status)
	return &a, nil
}

// GetByID returns sql.ErrNoRows when the application is not in the tenant.
func (r *UssdRepository) GetByID(ctx context.Context, tenantID string, id int64) (*models.UssdLoanApplication, error) {
	q := `SELECT ` + ussdColumns + ` FROM ussd_loan_applications WHERE id = $1 AND tenant_id = $2`
	return scanUssd(r.db.QueryRowContext(ctx, q, id, tenantID))
}

func (r *UssdRepository) List(ctx context.Context, tenantID string, f models.UssdFilter) ([]models.UssdLoanApplication, int, error) {
	where := " WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	i := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, string(f.Status))
		i++
	}
	if f.Phone != "" {
		where += fmt.Sprintf(" AND phone_number = $%d", i)
		args = append(args, f.Phone)
		i++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", i)
		args = append(args, *f.From)
		i++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND created_at < $%d", i)
		args = append(args, *f.To)
		i++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ussd_loan_applications"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ussd applications: %w", err)
	}

	q := "SELECT " + ussdColumns + " FROM ussd_loan_applications" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ussd applications: %w", err)
	}
	defer rows.Close()

	out := []models.UssdLoanApplication{}
	for rows.Next() {
		a, err := scanUssd(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// UpdateStatus applies the change only while the row is still in from, so two
// concurrent requests cannot both pass the transition check.
func (r *UssdRepository) UpdateStatus(ctx context.Context, tenantID string, id int64, from, to models.UssdStatus, notes string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ussd_loan_applications
		SET status = $1, notes = CASE WHEN $2 = '' THEN notes ELSE $2 END, updated_at = $3
		WHERE id = $4 AND tenant_id = $5 AND status = $6
	`, string(to), notes, now, id, tenantID, string(from))
	if err != nil {
		return false, fmt.Errorf("update ussd status: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *UssdRepository) LinkLead(ctx context.Context, tenantID string, id int64, leadID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ussd_loan_applications SET lead_id = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4
	`, leadID, now, id, tenantID)
	return err
}

func (r *UssdRepository) LinkLoan(ctx context.Context, tenantID string, id int64, loanID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ussd_loan_applications SET fineract_loan_id = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4
	`, loanID, now, id, tenantID)
	return err
}
