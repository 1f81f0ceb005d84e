package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"loanops/internal/apperr"
	"loanops/internal/authz"
	"loanops/internal/reqctx"
)

const scopeKey = "scope"

// public endpoints that need no token
func isPublicPath(path string) bool {
	switch path {
	case "/login", "/refresh", "/logout", "/password/forgot", "/password/reset", "/healthz", "/metrics":
		return true
	}
	return false
}

// AuthMiddleware verifies the bearer token and stores the request scope.
func AuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortWith(c, apperr.Unauthorized("Missing or invalid Authorization header"))
			return
		}

		claims, err := authz.ParseToken(key, strings.TrimSpace(parts[1]))
		if err != nil {
			abortWith(c, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		c.Set(scopeKey, reqctx.Scope{TenantID: claims.TenantID, UserID: claims.UserID, RoleID: claims.RoleID})
		c.Next()
	}
}

// ScopeFrom returns the scope set by AuthMiddleware.
func ScopeFrom(c *gin.Context) (reqctx.Scope, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return reqctx.Scope{}, false
	}
	s, ok := v.(reqctx.Scope)
	return s, ok
}

// SetScope is for tests and internal callers that bypass token parsing.
func SetScope(c *gin.Context, s reqctx.Scope) {
	c.Set(scopeKey, s)
}
