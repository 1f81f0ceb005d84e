package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanops/internal/apperr"
	"loanops/internal/config"
	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/reqctx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, rdb *redis.Client) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.FineractConfig{
		BaseURL:       srv.URL + "/api/v1",
		Username:      "mifos",
		Password:      "password",
		DefaultTenant: "default",
		Timeout:       5 * time.Second,
	}, rdb, time.Minute, logger.NewNoOpLogger())
}

func TestClient_SendsTenantAndBasicAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "mifos", user)
		assert.Equal(t, "password", pass)
		assert.Equal(t, "tenant-a", r.Header.Get(tenantHeader))
		assert.Equal(t, "/api/v1/offices", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":1,"name":"Head Office"}]`))
	}, nil)

	offices, err := client.ListOffices(context.Background(), reqctx.Scope{TenantID: "tenant-a"})

	require.NoError(t, err)
	require.Len(t, offices, 1)
	assert.Equal(t, "Head Office", offices[0].Name)
}

func TestClient_FallsBackToDefaultTenant(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "default", r.Header.Get(tenantHeader))
		_, _ = w.Write([]byte(`[]`))
	}, nil)

	_, err := client.ListPaymentTypes(context.Background(), reqctx.Scope{})
	assert.NoError(t, err)
}

func TestClient_SurfacesUpstreamMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{
			"defaultUserMessage": "Validation errors exist.",
			"errors": [{"defaultUserMessage": "The parameter officeId is mandatory.", "parameterName": "officeId"}]
		}`))
	}, nil)

	_, err := client.CreateJournalEntry(context.Background(), reqctx.Scope{TenantID: "t1"}, models.JournalEntryRequest{})

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.CodeRemote, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "The parameter officeId is mandatory.", appErr.Message)
}

func TestClient_CachesReferenceDataPerTenant(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`[{"id":4,"name":"Cash","isCashPayment":true}]`))
	}, rdb)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		types, err := client.ListPaymentTypes(ctx, reqctx.Scope{TenantID: "t1"})
		require.NoError(t, err)
		assert.Equal(t, "Cash", types[0].Name)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, mr.Exists("fineract:t1:/paymenttypes"))

	_, err = client.ListPaymentTypes(ctx, reqctx.Scope{TenantID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	require.NoError(t, client.Invalidate(ctx, reqctx.Scope{TenantID: "t1"}, "/paymenttypes"))
	assert.False(t, mr.Exists("fineract:t1:/paymenttypes"))
}

func TestClient_CacheFailureFallsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"Head Office"}]`))
	}, rdb)

	offices, err := client.ListOffices(context.Background(), reqctx.Scope{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, offices, 1)
}

func TestClient_CreateJournalEntryPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "yyyy-MM-dd", got["dateFormat"])
		assert.Equal(t, "en", got["locale"])
		assert.Equal(t, "2026-03-01", got["transactionDate"])
		assert.Len(t, got["debits"], 1)
		_, _ = w.Write([]byte(`{"officeId":1,"transactionId":"L123"}`))
	}, nil)

	res, err := client.CreateJournalEntry(context.Background(), reqctx.Scope{TenantID: "t1"}, models.JournalEntryRequest{
		OfficeID:        1,
		CurrencyCode:    "KES",
		TransactionDate: "2026-03-01",
		Debits:          []models.JournalLine{{GLAccountID: 10, Amount: decimal.NewFromInt(500)}},
		Credits:         []models.JournalLine{{GLAccountID: 20, Amount: decimal.NewFromInt(500)}},
	})

	require.NoError(t, err)
	assert.Equal(t, "L123", res.TransactionID)
}

func TestClient_RunReportForwardsOnlyReportParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runreports/Active Loans - Summary", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("R_officeId"))
		assert.Equal(t, "", r.URL.Query().Get("tenantIdentifier"))
		assert.Equal(t, "true", r.URL.Query().Get("genericResultSet"))
		_, _ = w.Write([]byte(`{"columnHeaders":[{"columnName":"office"}],"data":[{"row":["Head Office"]}]}`))
	}, nil)

	rs, err := client.RunReport(context.Background(), reqctx.Scope{TenantID: "t1"}, "Active Loans - Summary",
		map[string]string{"R_officeId": "1", "tenantIdentifier": "other"})

	require.NoError(t, err)
	require.Len(t, rs.Data, 1)
	assert.Equal(t, "office", rs.ColumnHeaders[0].ColumnName)
}

func TestClient_UnreachableIsRemoteError(t *testing.T) {
	client := NewClient(config.FineractConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		nil, 0, logger.NewNoOpLogger())

	_, err := client.ListOffices(context.Background(), reqctx.Scope{TenantID: "t1"})
	assert.True(t, errors.Is(err, apperr.ErrRemote))
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
}

func TestClient_LoanTemplateAndSubmit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /api/v1/loans/template":
			assert.Equal(t, "individual", r.URL.Query().Get("templateType"))
			assert.Equal(t, "7", r.URL.Query().Get("clientId"))
			assert.Equal(t, "3", r.URL.Query().Get("productId"))
			_, _ = w.Write([]byte(`{"loanProductId":3,"loanProductName":"Starter","principal":15000,"numberOfRepayments":6}`))
		case "POST /api/v1/loans":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "individual", body["loanType"])
			assert.Equal(t, "en", body["locale"])
			assert.Equal(t, "lead-1", body["externalId"])
			_, _ = w.Write([]byte(`{"loanId":55,"resourceId":55}`))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}, nil)
	scope := reqctx.Scope{TenantID: "t1"}

	tpl, err := client.GetLoanTemplate(context.Background(), scope, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, "Starter", tpl.LoanProductName)
	assert.True(t, tpl.Principal.Equal(decimal.NewFromInt(15000)))

	res, err := client.SubmitLoanApplication(context.Background(), scope, models.LoanApplication{ClientID: 7, ProductID: 3, ExternalID: "lead-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(55), res.LoanID)
}
