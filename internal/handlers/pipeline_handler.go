package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loanops/internal/models"
	"loanops/internal/services"
)

type PipelineHandler struct {
	Service    *services.PipelineService
	Validation *services.ValidationService
}

func NewPipelineHandler(service *services.PipelineService, validation *services.ValidationService) *PipelineHandler {
	return &PipelineHandler{Service: service, Validation: validation}
}

func (h *PipelineHandler) ListStages(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	stages, err := h.Service.ListStages(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

func (h *PipelineHandler) CreateStage(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var stage models.PipelineStage
	if err := c.ShouldBindJSON(&stage); err != nil {
		badRequest(c, err.Error())
		return
	}
	created, err := h.Service.CreateStage(c.Request.Context(), scope, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *PipelineHandler) UpdateStage(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "stageId")
	if !ok {
		return
	}
	var stage models.PipelineStage
	if err := c.ShouldBindJSON(&stage); err != nil {
		badRequest(c, err.Error())
		return
	}
	updated, err := h.Service.UpdateStage(c.Request.Context(), scope, id, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *PipelineHandler) Funnel(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	funnel, err := h.Service.Funnel(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, funnel)
}

func (h *PipelineHandler) Metrics(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	metrics, err := h.Service.StageMetrics(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *PipelineHandler) Timeline(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	entries, err := h.Service.LeadTimeline(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.TimelineEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// MoveStage answers 422 with details.failedChecks when validation blocks the move.
// @Summary      Move a lead to another pipeline stage
// @Tags         Pipeline
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                   true  "Lead ID"
// @Param        body  body      models.MoveStageRequest  true  "Target stage"
// @Success      200   {object}  object
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Failure      422   {object}  errorBody
// @Router       /leads/{id}/stage [post]
func (h *PipelineHandler) MoveStage(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req models.MoveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	tr, err := h.Service.MoveStage(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (h *PipelineHandler) Validations(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	report, err := h.Validation.GetValidations(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
