package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"loanops/internal/apperr"
	"loanops/internal/models"
	"loanops/internal/services"
)

type UssdHandler struct {
	Service *services.UssdService
}

func NewUssdHandler(service *services.UssdService) *UssdHandler {
	return &UssdHandler{Service: service}
}

func (h *UssdHandler) List(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	f := models.UssdFilter{
		Status: models.UssdStatus(c.Query("status")),
		Phone:  c.Query("phone"),
		From:   from,
		To:     to,
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	apps, total, err := h.Service.List(c.Request.Context(), scope, f)
	if err != nil {
		respondError(c, err)
		return
	}
	if apps == nil {
		apps = []models.UssdLoanApplication{}
	}
	c.JSON(http.StatusOK, page[models.UssdLoanApplication]{Items: apps, Total: total, Limit: f.Limit, Offset: f.Offset})
}

func (h *UssdHandler) Get(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	app, err := h.Service.Get(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// UpdateStatus returns the saga record alongside the error when a submission
// stops part way.
// @Summary      Change the status of a USSD application
// @Tags         USSD
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                       true  "Application ID"
// @Param        body  body      models.UssdStatusRequest  true  "New status and saga options"
// @Success      200   {object}  object
// @Failure      409   {object}  errorBody
// @Failure      502   {object}  object
// @Router       /ussd/applications/{id}/status [post]
func (h *UssdHandler) UpdateStatus(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req models.UssdStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.Service.UpdateStatus(c.Request.Context(), scope, id, req)
	if err != nil {
		var e *apperr.Error
		if errors.As(err, &e) && e.Code == apperr.CodePartialFailure && res != nil {
			c.JSON(apperr.HTTPStatus(err), gin.H{
				"error":   e.Message,
				"code":    e.Code,
				"details": e.Details,
				"saga":    res.Saga,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *UssdHandler) Promote(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	app, err := h.Service.PromoteToLead(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *UssdHandler) Sagas(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	sagas, err := h.Service.ListSagas(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if sagas == nil {
		sagas = []models.SubmissionSaga{}
	}
	c.JSON(http.StatusOK, sagas)
}
