package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"loanops/internal/apperr"
	"loanops/internal/authz"
)

func abortWith(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": err.Message, "code": err.Code})
}

// RequireRoles lets the request through only for the listed role IDs.
func RequireRoles(allowed ...int) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := ScopeFrom(c)
		if !ok {
			abortWith(c, apperr.Unauthorized("no scope in context"))
			return
		}
		if !slices.Contains(allowed, scope.RoleID) {
			abortWith(c, apperr.Forbidden(authz.Name(scope.RoleID)+" may not access this resource"))
			return
		}
		c.Next()
	}
}

// ReadOnlyGuard rejects writes from read-only roles.
func ReadOnlyGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, _ := ScopeFrom(c)
		if !authz.IsReadOnly(scope.RoleID) {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			abortWith(c, apperr.Forbidden("read-only role"))
		}
	}
}
