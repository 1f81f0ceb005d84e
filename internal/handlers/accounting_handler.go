package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loanops/internal/models"
	"loanops/internal/services"
)

// AccountingHandler proxies reference data and journal entries.
type AccountingHandler struct {
	Service *services.JournalService
}

func NewAccountingHandler(service *services.JournalService) *AccountingHandler {
	return &AccountingHandler{Service: service}
}

func (h *AccountingHandler) Offices(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	out, err := h.Service.Offices(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AccountingHandler) Currencies(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	out, err := h.Service.Currencies(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AccountingHandler) PaymentTypes(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	out, err := h.Service.PaymentTypes(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AccountingHandler) GLAccounts(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	f := models.GLAccountFilter{
		Type:                 c.Query("type"),
		Usage:                c.Query("usage"),
		ManualEntriesAllowed: queryBool(c, "manualEntriesAllowed"),
		Disabled:             queryBool(c, "disabled"),
	}
	out, err := h.Service.GLAccounts(c.Request.Context(), scope, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AccountingHandler) Rules(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	out, err := h.Service.ListAccountingRules(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      Post a balanced journal entry
// @Tags         Accounting
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        entry  body      models.JournalEntryRequest  true  "Entry"
// @Success      201    {object}  object
// @Failure      400    {object}  errorBody
// @Failure      502    {object}  errorBody
// @Router       /accounting/journal-entries [post]
func (h *AccountingHandler) CreateEntry(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req models.JournalEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.Service.Create(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AccountingHandler) FrequentPosting(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req models.FrequentPostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.Service.PostFromRule(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AccountingHandler) SearchEntries(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	f := models.JournalEntryFilter{
		Offset:        queryInt(c, "offset", 0),
		Limit:         queryInt(c, "limit", 20),
		OfficeID:      queryInt64(c, "officeId"),
		GLAccountID:   queryInt64(c, "glAccountId"),
		FromDate:      c.Query("fromDate"),
		ToDate:        c.Query("toDate"),
		TransactionID: c.Query("transactionId"),
		ManualOnly:    c.Query("manualOnly") == "true",
	}
	out, err := h.Service.Search(c.Request.Context(), scope, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type reverseRequest struct {
	Comments string `json:"comments"`
}

func (h *AccountingHandler) ReverseEntry(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req reverseRequest
	_ = c.ShouldBindJSON(&req)
	res, err := h.Service.Reverse(c.Request.Context(), scope, c.Param("transactionId"), req.Comments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AccountingHandler) LoanTemplate(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	productID := queryInt64(c, "productId")
	if productID <= 0 {
		badRequest(c, "productId is required")
		return
	}
	out, err := h.Service.LoanTemplate(c.Request.Context(), scope, queryInt64(c, "clientId"), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
