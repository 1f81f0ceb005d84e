package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loanops/internal/models"
)

func (h *LeadHandler) ListFamily(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	members, err := h.Service.ListFamilyMembers(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if members == nil {
		members = []models.FamilyMember{}
	}
	c.JSON(http.StatusOK, members)
}

func (h *LeadHandler) AddFamily(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var m models.FamilyMember
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, err.Error())
		return
	}
	created, err := h.Service.AddFamilyMember(c.Request.Context(), scope, c.Param("id"), m)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *LeadHandler) UpdateFamily(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var m models.FamilyMember
	if err := c.ShouldBindJSON(&m); err != nil {
		badRequest(c, err.Error())
		return
	}
	m.ID = c.Param("memberId")
	updated, err := h.Service.UpdateFamilyMember(c.Request.Context(), scope, c.Param("id"), m)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *LeadHandler) DeleteFamily(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteFamilyMember(c.Request.Context(), scope, c.Param("id"), c.Param("memberId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
