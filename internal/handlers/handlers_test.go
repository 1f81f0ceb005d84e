package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanops/internal/config"
	"loanops/internal/gateway"
	"loanops/internal/logger"
	"loanops/internal/middleware"
	"loanops/internal/pdf"
	"loanops/internal/repositories"
	"loanops/internal/reqctx"
	"loanops/internal/services"
)

var testScope = reqctx.Scope{TenantID: "t1", UserID: 9, RoleID: 10}

type fixture struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
}

// newFixture wires real services over sqlmock, miniredis and a fake core-banking server.
func newFixture(t *testing.T, fineract http.HandlerFunc) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	if fineract == nil {
		fineract = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }
	}
	srv := httptest.NewServer(fineract)
	t.Cleanup(srv.Close)

	log := logger.NewNoOpLogger()
	gw := gateway.NewClient(config.FineractConfig{BaseURL: srv.URL, DefaultTenant: "default", Timeout: 5 * time.Second}, nil, 0, log)
	h := buildHandlers(db, rdb, gw, log)

	r := gin.New()
	r.POST("/login", h.Auth.Login)
	r.POST("/password/forgot", h.Auth.ForgotPassword)
	api := r.Group("/", withScope())
	api.POST("/leads/autosave", h.Lead.AutoSave)
	api.PUT("/leads/:id/autosave", h.Lead.AutoSave)
	api.GET("/leads/:id", h.Lead.GetByID)
	api.POST("/accounting/journal-entries", h.Accounting.CreateEntry)
	api.GET("/reports/:name/run", h.Report.Run)
	api.POST("/ussd/applications/:id/status", h.Ussd.UpdateStatus)
	r.GET("/unscoped", h.Lead.List)

	return &fixture{router: r, mock: mock}
}

type testHandlers struct {
	Auth       *AuthHandler
	Lead       *LeadHandler
	Accounting *AccountingHandler
	Report     *ReportHandler
	Ussd       *UssdHandler
}

func buildHandlers(db *sql.DB, rdb *redis.Client, gw *gateway.Client, log logger.Logger) testHandlers {
	leadRepo := repositories.NewLeadRepository(db)
	familyRepo := repositories.NewFamilyMemberRepository(db)
	leads := services.NewLeadService(leadRepo, familyRepo, "KE", log)
	validation := services.NewValidationService(leadRepo, familyRepo, config.ValidationConfig{CreditScoreThreshold: 600, MaxDebtToIncome: 0.5}, log)
	pipeline := services.NewPipelineService(repositories.NewPipelineRepository(db), repositories.NewTransitionRepository(db), leadRepo, validation, log)
	ussd := services.NewUssdService(repositories.NewUssdRepository(db), repositories.NewSagaRepository(db), leads, gw, nil,
		nil, nil, time.Second, "KE", log)

	users := repositories.NewUserRepository(db)
	authCfg := config.AuthConfig{JWTSecret: "x", TokenTTL: time.Hour, ResetTTL: time.Hour}
	resets := services.NewPasswordResetService(users, repositories.NewPasswordResetRepository(db), nil, authCfg, log)

	return testHandlers{
		Auth:       NewAuthHandler(services.NewAuthService(users, rdb, authCfg, log), resets),
		Lead:       NewLeadHandler(leads, validation, pipeline, pdf.NewDocumentGenerator("", "")),
		Accounting: NewAccountingHandler(services.NewJournalService(gw, log)),
		Report:     NewReportHandler(services.NewReportService(gw, pipeline)),
		Ussd:       NewUssdHandler(ussd),
	}
}

func withScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetScope(c, testScope)
		c.Next()
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAutoSave_CreatesLead(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.ExpectExec("INSERT INTO leads").WillReturnResult(sqlmock.NewResult(0, 1))

	w := f.do(http.MethodPost, "/leads/autosave", `{"firstname":"Jane"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["leadId"])
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAutoSave_UnknownLeadIsFailureResult(t *testing.T) {
	f := newFixture(t, nil)
	id := "8b1f6c1e-3c0a-4c53-9a62-3f4a0d9f2a10"
	f.mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(id, "t1").WillReturnError(sql.ErrNoRows)

	w := f.do(http.MethodPut, "/leads/"+id+"/autosave", `{"lastname":"Doe"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"lead not found"}`, w.Body.String())
}

func TestAutoSave_MalformedBody(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/leads/autosave", `{"firstname":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestGetLead_BadIDIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/leads/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
}

func TestCreateJournalEntry_UnbalancedIs400WithDetails(t *testing.T) {
	called := false
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	w := f.do(http.MethodPost, "/accounting/journal-entries", `{
		"officeId": 1, "currencyCode": "KES", "transactionDate": "2026-03-10",
		"debits": [{"glAccountId": 10, "amount": "500.00"}],
		"credits": [{"glAccountId": 20, "amount": "499.99"}]
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Debit and credit amounts must be equal.", body["error"])
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "500", details["debits"])
	assert.Equal(t, "499.99", details["credits"])
	assert.False(t, called)
}

func TestRunReport_ForwardsOnlyRParams(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runreports/Active Loans", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("R_officeId"))
		assert.Empty(t, r.URL.Query().Get("other"))
		_, _ = w.Write([]byte(`{"columnHeaders":[],"data":[]}`))
	})
	w := f.do(http.MethodGet, "/reports/Active%20Loans/run?R_officeId=1&other=x", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUssdStatus_InvalidTransitionIs409(t *testing.T) {
	f := newFixture(t, nil)
	cols := []string{
		"id", "tenant_id", "firstname", "lastname", "phone_number", "national_id", "loan_product_id",
		"product_name", "requested_amount", "term_months", "payout_method",
		"mobile_money_provider", "mobile_money_number", "bank_name", "bank_account_number", "bank_branch",
		"cash_pickup_location", "status", "notes", "lead_id", "fineract_loan_id", "created_at", "updated_at",
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f.mock.ExpectQuery(`SELECT .* FROM ussd_loan_applications WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(int64(42), "t1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(42), "t1", "Amina", "Otieno", "+254712345678", "30111222", int64(3),
			"Starter", []byte("15000.00"), int64(6), "MOBILE_MONEY",
			"M-Pesa", "+254712345678", nil, nil, nil,
			nil, "CREATED", "", nil, nil, now, now,
		))

	w := f.do(http.MethodPost, "/ussd/applications/42/status", `{"status":"DISBURSED"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INVALID_TRANSITION", body["code"])
	assert.Equal(t, "transition from CREATED to DISBURSED is not allowed", body["error"])
}

func TestUssdStatus_BadID(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/ussd/applications/abc/status", `{"status":"APPROVED"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_UnknownUserIs401(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.ExpectQuery(`SELECT .* FROM staff_users`).WillReturnRows(sqlmock.NewRows(
		[]string{"id", "tenant_id", "email", "full_name", "password_hash", "role_id", "active"}))

	w := f.do(http.MethodPost, "/login", `{"email":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode(t, w)["error"])
}

func TestMissingScopeIs401(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "/unscoped", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotPassword_UnknownEmailIs202(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.ExpectQuery(`SELECT .* FROM staff_users`).WillReturnRows(sqlmock.NewRows(
		[]string{"id", "tenant_id", "email", "full_name", "password_hash", "role_id", "active"}))

	w := f.do(http.MethodPost, "/password/forgot", `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestForgotPassword_BadEmailIs400(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/password/forgot", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
