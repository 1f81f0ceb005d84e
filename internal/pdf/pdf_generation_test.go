package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanops/internal/models"
)

func TestLeadSummary_RendersWithCoreFont(t *testing.T) {
	reason := "duplicate application"
	lead := &models.Lead{
		ID:              "8b1f6c1e-3c0a-4c53-9a62-3f4a0d9f2a10",
		FirstName:       "Amina",
		LastName:        "Otieno",
		MobileNo:        "+254712345678",
		Status:          models.LeadClosed,
		ClosedReason:    &reason,
		RequestedAmount: decimal.RequireFromString("15000"),
		MonthlyIncome:   decimal.RequireFromString("40000"),
		FamilyMembers: []models.FamilyMember{
			{FirstName: "Baraka", Relationship: "child", Age: 6, IsDependent: true},
		},
	}
	report := &models.ValidationReport{
		Validations: []models.ValidationCheck{{ID: "credit_score", Name: "Credit score", Status: models.CheckFailed, Message: "below 600"}},
		Summary:     models.ValidationSummary{Total: 1, Failed: 1},
	}

	var buf bytes.Buffer
	g := NewDocumentGenerator("", "")
	err := g.LeadSummary(&buf, LeadSummaryData{
		Lead:        lead,
		StageName:   "Review",
		Validation:  report,
		GeneratedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		GeneratedBy: "Grace Wanjiku",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestLeadSummary_MissingFontFallsBack(t *testing.T) {
	var buf bytes.Buffer
	g := NewDocumentGenerator("/nonexistent/DejaVuSans.ttf", "acme")
	require.NoError(t, g.LeadSummary(&buf, LeadSummaryData{Lead: &models.Lead{ID: "x", FirstName: "A"}}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestLeadSummary_NilLead(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, NewDocumentGenerator("", "").LeadSummary(&buf, LeadSummaryData{}))
}
