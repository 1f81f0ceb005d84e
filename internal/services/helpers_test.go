package services

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"loanops/internal/models"
	"loanops/internal/reqctx"
)

const testLeadID = "8b1f6c1e-3c0a-4c53-9a62-3f4a0d9f2a10"

var testScope = reqctx.Scope{TenantID: "t1", UserID: 9, RoleID: 1}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var leadColumnNames = []string{
	"id", "tenant_id", "firstname", "middlename", "lastname", "mobile_no", "email_address",
	"date_of_birth", "gender", "national_id", "external_id",
	"office_id", "legal_form_id", "client_type_id", "client_classification_id",
	"monthly_income", "monthly_expenses", "credit_score", "requested_amount",
	"loan_product_id", "loan_term_months", "documents_verified",
	"status", "current_step", "current_stage_id", "closed_reason", "user_id",
	"fineract_client_id", "fineract_loan_id", "created_at", "last_modified",
}

type leadFixture struct {
	first, last string
	status      models.LeadStatus
	stage       interface{}
	income      string
	expenses    string
	score       int64
	verified    bool
	clientID    interface{}
	dob         interface{}
}

func defaultLead() leadFixture {
	return leadFixture{
		first: "Jane", last: "Doe", status: models.LeadProspect,
		income: "1000.00", expenses: "400.00", score: 650, verified: true,
	}
}

func (f leadFixture) row(id string) []driver.Value {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, "t1", f.first, "", f.last, "+254712345678", "jane@example.com",
		f.dob, "F", "12345678", "",
		int64(1), int64(1), int64(0), int64(0),
		[]byte(f.income), []byte(f.expenses), f.score, []byte("5000.00"),
		int64(3), int64(12), f.verified,
		string(f.status), int64(2), f.stage, nil, int64(9),
		f.clientID, nil, created, created,
	}
}

// passingLead clears every blocking check.
func passingLead(stage interface{}) leadFixture {
	f := defaultLead()
	f.dob = time.Date(1990, 2, 1, 0, 0, 0, 0, time.UTC)
	f.stage = stage
	return f
}

func leadRows(id string, f leadFixture) *sqlmock.Rows {
	return sqlmock.NewRows(leadColumnNames).AddRow(f.row(id)...)
}

const leadByIDQuery = `SELECT .* FROM leads WHERE id = \$1 AND tenant_id = \$2`

var stageColumnNames = []string{
	"id", "tenant_id", "name", "description", "stage_order", "color",
	"is_initial_state", "is_final_state", "allowed_transitions", "sla_hours",
}

func stageRow(id int64, name string, initial bool, allowed string, sla int64) []driver.Value {
	return []driver.Value{id, "t1", name, "", id, "#888", initial, false, []byte(allowed), sla}
}

const stageByIDQuery = `SELECT .* FROM pipeline_stages WHERE id = \$1 AND tenant_id = \$2`

var familyColumnNames = []string{
	"id", "lead_id", "firstname", "lastname", "relationship", "mobile_no", "age", "is_dependent", "created_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}
