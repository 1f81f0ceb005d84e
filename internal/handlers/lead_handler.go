package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loanops/internal/export"
	"loanops/internal/models"
	"loanops/internal/pdf"
	"loanops/internal/reqctx"
	"loanops/internal/services"
)

const maxExportRows = 500

type LeadHandler struct {
	Service    *services.LeadService
	Validation *services.ValidationService
	Pipeline   *services.PipelineService
	PDF        pdf.Generator
}

func NewLeadHandler(service *services.LeadService, validation *services.ValidationService, pipeline *services.PipelineService, gen pdf.Generator) *LeadHandler {
	return &LeadHandler{Service: service, Validation: validation, Pipeline: pipeline, PDF: gen}
}

// AutoSave always answers 200 with the {success, leadId | error} shape, except
// for a body that is not JSON at all.
//
// @Summary      Save onboarding fields, creating the lead on first call
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        draft   body      object  true   "Any subset of lead fields"
// @Param        leadId  query     string  false  "Existing lead"
// @Success      200     {object}  models.AutoSaveResult
// @Failure      400     {object}  models.AutoSaveResult
// @Router       /leads/autosave [post]
func (h *LeadHandler) AutoSave(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var draft models.LeadDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, models.AutoSaveResult{Success: false, Error: "invalid JSON body"})
		return
	}
	leadID := c.Param("id")
	if leadID == "" {
		leadID = c.Query("leadId")
	}
	c.JSON(http.StatusOK, h.Service.AutoSaveField(c.Request.Context(), scope, draft, leadID))
}

func (h *LeadHandler) GetByID(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	lead, err := h.Service.GetLeadByID(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func leadFilter(c *gin.Context) models.LeadFilter {
	return models.LeadFilter{
		Status:  models.LeadStatus(c.Query("status")),
		StageID: queryInt64(c, "stageId"),
		OwnerID: queryInt64(c, "ownerId"),
		Search:  c.Query("q"),
		SortBy:  c.DefaultQuery("sortBy", "last_modified"),
		Order:   c.DefaultQuery("order", "desc"),
		Limit:   queryInt(c, "limit", 100),
		Offset:  queryInt(c, "offset", 0),
	}
}

func (h *LeadHandler) List(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	f := leadFilter(c)
	leads, total, err := h.Service.List(c.Request.Context(), scope, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page[models.Lead]{Items: leads, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// ExportXLSX downloads the filtered table view, capped at maxExportRows.
func (h *LeadHandler) ExportXLSX(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	f := leadFilter(c)
	f.Limit, f.Offset = maxExportRows, 0
	leads, _, err := h.Service.List(c.Request.Context(), scope, f)
	if err != nil {
		respondError(c, err)
		return
	}
	names, err := h.stageNames(c, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.LeadsXLSX(&buf, leads, names); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("leads_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, export.XLSXType, buf.Bytes())
}

func (h *LeadHandler) SummaryPDF(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	lead, err := h.Service.GetLeadByID(ctx, scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := h.Validation.EvaluateLead(ctx, lead)
	if err != nil {
		respondError(c, err)
		return
	}
	names, err := h.stageNames(c, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	data := pdf.LeadSummaryData{Lead: lead, Validation: report, GeneratedAt: time.Now()}
	if lead.CurrentStageID != nil {
		data.StageName = names[*lead.CurrentStageID]
	}
	var buf bytes.Buffer
	if err := h.PDF.LeadSummary(&buf, data); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="lead_`+lead.ID+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *LeadHandler) stageNames(c *gin.Context, scope reqctx.Scope) (map[int64]string, error) {
	stages, err := h.Pipeline.ListStages(c.Request.Context(), scope)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(stages))
	for _, st := range stages {
		names[st.ID] = st.Name
	}
	return names, nil
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *LeadHandler) Cancel(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	lead, err := h.Service.CancelProspect(c.Request.Context(), scope, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) Convert(c *gin.Context) {
	h.statusChange(c, h.Service.MarkLeadAsConverted)
}

func (h *LeadHandler) Submit(c *gin.Context) {
	h.statusChange(c, h.Service.SubmitLead)
}

func (h *LeadHandler) SaveDraft(c *gin.Context) {
	h.statusChange(c, h.Service.SaveAsDraft)
}

type statusFunc func(ctx context.Context, scope reqctx.Scope, id string) (*models.Lead, error)

func (h *LeadHandler) statusChange(c *gin.Context, fn statusFunc) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	lead, err := fn(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}
