package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"loanops/internal/services"
)

type ReportHandler struct {
	Service *services.ReportService
}

func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{Service: service}
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	data, err := h.Service.Dashboard(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *ReportHandler) List(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	out, err := h.Service.ListReports(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) Parameters(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	out, err := h.Service.Parameters(c.Request.Context(), scope, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) ParameterOptions(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	out, err := h.Service.ParameterOptions(c.Request.Context(), scope, c.Param("param"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Run forwards R_-prefixed query parameters to the report.
func (h *ReportHandler) Run(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	params := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if strings.HasPrefix(k, "R_") && len(v) > 0 {
			params[k] = v[0]
		}
	}
	out, err := h.Service.Run(c.Request.Context(), scope, c.Param("name"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
