package repositories

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanops/internal/models"
)

var leadColumnNames = []string{
	"id", "tenant_id", "firstname", "middlename", "lastname", "mobile_no", "email_address",
	"date_of_birth", "gender", "national_id", "external_id",
	"office_id", "legal_form_id", "client_type_id", "client_classification_id",
	"monthly_income", "monthly_expenses", "credit_score", "requested_amount",
	"loan_product_id", "loan_term_months", "documents_verified",
	"status", "current_step", "current_stage_id", "closed_reason", "user_id",
	"fineract_client_id", "fineract_loan_id", "created_at", "last_modified",
}

func leadRow(id, first, last string, status models.LeadStatus, stage interface{}) []driver.Value {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, "t1", first, "", last, "+254712345678", "",
		nil, "", "", "",
		int64(1), int64(0), int64(0), int64(0),
		[]byte("1000.00"), []byte("400.00"), int64(650), []byte("5000.00"),
		int64(3), int64(12), true,
		string(status), int64(2), stage, nil, int64(9),
		nil, nil, now, now,
	}
}

func TestLeadRepository_UpdateColumnsIsSparse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE leads SET lastname = $1, last_modified = $2 WHERE id = $3 AND tenant_id = $4`)).
		WithArgs("Doe", sqlmock.AnyArg(), "lead-1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewLeadRepository(db)
	n, err := repo.UpdateColumns(context.Background(), "t1", "lead-1",
		[]Column{{Name: "lastname", Value: "Doe"}}, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_GetByIDScansNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs("lead-1", "t1").
		WillReturnRows(sqlmock.NewRows(leadColumnNames).
			AddRow(leadRow("lead-1", "Jane", "Doe", models.LeadStatusDraft, int64(4))...))

	lead, err := NewLeadRepository(db).GetByID(context.Background(), "t1", "lead-1")
	require.NoError(t, err)

	assert.Equal(t, "Jane", lead.FirstName)
	assert.Equal(t, models.LeadStatusDraft, lead.Status)
	require.NotNil(t, lead.CurrentStageID)
	assert.Equal(t, int64(4), *lead.CurrentStageID)
	assert.Nil(t, lead.ClosedReason)
	assert.Nil(t, lead.DateOfBirth)
	assert.Equal(t, "5000", lead.RequestedAmount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_ListAppliesFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COUNT(*) FROM leads WHERE tenant_id = $1 AND status = $2 AND (firstname ILIKE $3`)).
		WithArgs("t1", "DRAFT", "%jan%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY lastname asc LIMIT \$4 OFFSET \$5`).
		WithArgs("t1", "DRAFT", "%jan%", 20, 40).
		WillReturnRows(sqlmock.NewRows(leadColumnNames).
			AddRow(leadRow("lead-1", "Jane", "Doe", models.LeadStatusDraft, nil)...))

	leads, total, err := NewLeadRepository(db).List(context.Background(), "t1", models.LeadFilter{
		Status: models.LeadStatusDraft,
		Search: "jan",
		SortBy: "lastname",
		Order:  "ASC",
		Limit:  20,
		Offset: 40,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, leads, 1)
	assert.Nil(t, leads[0].CurrentStageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_StageAssignments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT current_stage_id FROM leads`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"current_stage_id"}).AddRow(int64(1)).AddRow(nil))

	got, err := NewLeadRepository(db).StageAssignments(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), *got[0])
	assert.Nil(t, got[1])
}

func TestIsForeignKeyViolation(t *testing.T) {
	fk := &pq.Error{Code: "23503", Constraint: "leads_user_id_fkey"}

	assert.True(t, IsForeignKeyViolation(fk, "user_id"))
	assert.True(t, IsForeignKeyViolation(fk, ""))
	assert.False(t, IsForeignKeyViolation(fk, "current_stage_id"))
	assert.False(t, IsForeignKeyViolation(&pq.Error{Code: "23505"}, ""))
	assert.False(t, IsForeignKeyViolation(errors.New("boom"), ""))
}
