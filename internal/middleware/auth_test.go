package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanops/internal/authz"
)

const testSecret = "mw-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(testSecret), ReadOnlyGuard())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/leads", func(c *gin.Context) {
		s, _ := ScopeFrom(c)
		c.JSON(http.StatusOK, gin.H{"tenant": s.TenantID})
	})
	r.POST("/leads", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.POST("/users", RequireRoles(authz.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r
}

func bearer(t *testing.T, role int) string {
	t.Helper()
	tok, err := authz.SignToken([]byte(testSecret), authz.Claims{UserID: 3, RoleID: role, TenantID: "t1"}, time.Now(), time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"public path", http.MethodGet, "/healthz", "", http.StatusOK},
		{"no header", http.MethodGet, "/leads", "", http.StatusUnauthorized},
		{"bad scheme", http.MethodGet, "/leads", "Basic abc", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/leads", "Bearer nope", http.StatusUnauthorized},
		{"officer reads", http.MethodGet, "/leads", bearer(t, authz.RoleLoanOfficer), http.StatusOK},
		{"officer writes", http.MethodPost, "/leads", bearer(t, authz.RoleLoanOfficer), http.StatusCreated},
		{"auditor reads", http.MethodGet, "/leads", bearer(t, authz.RoleAuditor), http.StatusOK},
		{"auditor cannot write", http.MethodPost, "/leads", bearer(t, authz.RoleAuditor), http.StatusForbidden},
		{"officer cannot admin", http.MethodPost, "/users", bearer(t, authz.RoleLoanOfficer), http.StatusForbidden},
		{"admin can admin", http.MethodPost, "/users", bearer(t, authz.RoleAdmin), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthMiddleware_SetsTenant(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/leads", nil)
	req.Header.Set("Authorization", bearer(t, authz.RoleLoanOfficer))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"tenant":"t1"}`, w.Body.String())
}
