package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"loanops/internal/apperr"
	"loanops/internal/middleware"
	"loanops/internal/reqctx"
)

type errorBody struct {
	Error   string                 `json:"error"`
	Code    apperr.Code            `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError answers with the status the error maps to.
func respondError(c *gin.Context, err error) {
	body := errorBody{Error: apperr.Message(err)}
	var e *apperr.Error
	if errors.As(err, &e) {
		body.Code = e.Code
		body.Details = e.Details
	}
	c.JSON(apperr.HTTPStatus(err), body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: msg, Code: apperr.CodeValidation})
}

// scopeOf aborts with 401 when the auth middleware did not run.
func scopeOf(c *gin.Context) (reqctx.Scope, bool) {
	s, ok := middleware.ScopeFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: apperr.CodeUnauthorized})
	}
	return s, ok
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt tolerates garbage and falls back to def.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryInt64(c *gin.Context, key string) int64 {
	v, _ := strconv.ParseInt(c.Query(key), 10, 64)
	return v
}

func queryBool(c *gin.Context, key string) *bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return nil
	}
	return &v
}

func queryDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		badRequest(c, key+" must be YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}

type page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
