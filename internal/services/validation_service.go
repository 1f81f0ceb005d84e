package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loanops/internal/apperr"
	"loanops/internal/config"
	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/repositories"
	"loanops/internal/reqctx"
	"loanops/internal/utils"
)

// Check IDs. These are persisted in stage_transitions.failed_checks.
const (
	CheckRequiredFields    = "required_fields"
	CheckContactDetails    = "contact_details"
	CheckDocumentsVerified = "documents_verified"
	CheckBudgetInfo        = "budget_info"
	CheckDebtToIncome      = "debt_to_income"
	CheckCreditScore       = "credit_score"
	CheckHousehold         = "household"
)

type ValidationService struct {
	Leads  *repositories.LeadRepository
	Family *repositories.FamilyMemberRepository
	cfg    config.ValidationConfig
	log    logger.Logger
}

func NewValidationService(leads *repositories.LeadRepository, family *repositories.FamilyMemberRepository, cfg config.ValidationConfig, log logger.Logger) *ValidationService {
	return &ValidationService{
		Leads:  leads,
		Family: family,
		cfg:    cfg,
		log:    log.WithFields(map[string]interface{}{"module": "validation"}),
	}
}

// GetValidations evaluates every check against the stored lead.
func (s *ValidationService) GetValidations(ctx context.Context, scope reqctx.Scope, leadID string) (*models.ValidationReport, error) {
	if _, err := uuid.Parse(leadID); err != nil {
		return nil, apperr.NotFound("lead")
	}
	lead, err := s.Leads.GetByID(ctx, scope.TenantID, leadID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("lead")
		}
		s.log.Error("load lead for validation failed", map[string]interface{}{"lead_id": leadID, "error": err.Error()})
		return nil, apperr.Persistence("load lead", err)
	}
	return s.EvaluateLead(ctx, lead)
}

// EvaluateLead runs the checks for an already loaded lead.
func (s *ValidationService) EvaluateLead(ctx context.Context, lead *models.Lead) (*models.ValidationReport, error) {
	family, err := s.Family.ListByLead(ctx, lead.ID)
	if err != nil {
		s.log.Error("load family members failed", map[string]interface{}{"lead_id": lead.ID, "error": err.Error()})
		return nil, apperr.Persistence("load family members", err)
	}
	report := Evaluate(lead, family, s.cfg)
	return &report, nil
}

// Evaluate runs the fixed checks. Checks are independent of each other.
func Evaluate(lead *models.Lead, family []models.FamilyMember, cfg config.ValidationConfig) models.ValidationReport {
	checks := []models.ValidationCheck{
		checkRequired(lead),
		checkContact(lead, cfg.DefaultRegion),
		checkDocuments(lead),
		checkBudget(lead),
		checkDebtToIncome(lead, cfg.MaxDebtToIncome),
		checkCreditScore(lead, cfg.CreditScoreThreshold),
		checkHousehold(family),
	}
	return models.ValidationReport{
		LeadID:      lead.ID,
		Validations: checks,
		Summary:     summarize(checks),
	}
}

func summarize(checks []models.ValidationCheck) models.ValidationSummary {
	sum := models.ValidationSummary{Total: len(checks)}
	for _, c := range checks {
		switch c.Status {
		case models.CheckPassed:
			sum.Passed++
		case models.CheckWarning:
			sum.Warnings++
		case models.CheckFailed:
			sum.Failed++
		}
	}
	if sum.Total > 0 {
		sum.PassedPercentage = round2(float64(sum.Passed) * 100 / float64(sum.Total))
	}
	sum.CanProceed = sum.Failed == 0
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func passed(id, name string) models.ValidationCheck {
	return models.ValidationCheck{ID: id, Name: name, Status: models.CheckPassed, Severity: models.SeverityInfo}
}

func checkRequired(l *models.Lead) models.ValidationCheck {
	var missing []string
	if strings.TrimSpace(l.FirstName) == "" {
		missing = append(missing, "first name")
	}
	if strings.TrimSpace(l.LastName) == "" {
		missing = append(missing, "last name")
	}
	if strings.TrimSpace(l.MobileNo) == "" {
		missing = append(missing, "mobile number")
	}
	if l.DateOfBirth == nil {
		missing = append(missing, "date of birth")
	}
	if strings.TrimSpace(l.NationalID) == "" {
		missing = append(missing, "national ID")
	}
	if l.OfficeID <= 0 {
		missing = append(missing, "office")
	}
	if len(missing) == 0 {
		return passed(CheckRequiredFields, "Required fields")
	}
	return models.ValidationCheck{
		ID:              CheckRequiredFields,
		Name:            "Required fields",
		Status:          models.CheckFailed,
		Severity:        models.SeverityError,
		Message:         "Missing: " + strings.Join(missing, ", "),
		SuggestedAction: "Complete the personal details step",
	}
}

func checkContact(l *models.Lead, region string) models.ValidationCheck {
	var problems []string
	if l.MobileNo != "" && !utils.ValidPhone(l.MobileNo, region) {
		problems = append(problems, "mobile number is not a valid phone number")
	}
	if l.EmailAddress != "" && validate.Var(l.EmailAddress, "email") != nil {
		problems = append(problems, "email address is malformed")
	}
	if len(problems) == 0 {
		return passed(CheckContactDetails, "Contact details")
	}
	return models.ValidationCheck{
		ID:              CheckContactDetails,
		Name:            "Contact details",
		Status:          models.CheckWarning,
		Severity:        models.SeverityWarning,
		Message:         strings.Join(problems, "; "),
		SuggestedAction: "Confirm contact details with the applicant",
	}
}

func checkDocuments(l *models.Lead) models.ValidationCheck {
	if l.DocumentsVerified {
		return passed(CheckDocumentsVerified, "Document verification")
	}
	return models.ValidationCheck{
		ID:              CheckDocumentsVerified,
		Name:            "Document verification",
		Status:          models.CheckFailed,
		Severity:        models.SeverityError,
		Message:         "Identity documents have not been verified",
		SuggestedAction: "Verify the applicant's documents",
	}
}

func checkBudget(l *models.Lead) models.ValidationCheck {
	if l.MonthlyIncome.IsPositive() {
		return passed(CheckBudgetInfo, "Budget information")
	}
	return models.ValidationCheck{
		ID:              CheckBudgetInfo,
		Name:            "Budget information",
		Status:          models.CheckWarning,
		Severity:        models.SeverityWarning,
		Message:         "Monthly income has not been captured",
		SuggestedAction: "Fill in the budget step",
	}
}

func checkDebtToIncome(l *models.Lead, max float64) models.ValidationCheck {
	name := "Debt-to-income ratio"
	if !l.MonthlyIncome.IsPositive() {
		return models.ValidationCheck{
			ID:       CheckDebtToIncome,
			Name:     name,
			Status:   models.CheckWarning,
			Severity: models.SeverityWarning,
			Message:  "Ratio cannot be computed without income",
		}
	}
	ratio := l.MonthlyExpenses.Div(l.MonthlyIncome)
	if ratio.LessThanOrEqual(decimal.NewFromFloat(max)) {
		c := passed(CheckDebtToIncome, name)
		c.Message = fmt.Sprintf("Ratio %s", ratio.StringFixed(2))
		return c
	}
	return models.ValidationCheck{
		ID:              CheckDebtToIncome,
		Name:            name,
		Status:          models.CheckWarning,
		Severity:        models.SeverityWarning,
		Message:         fmt.Sprintf("Ratio %s exceeds %.2f", ratio.StringFixed(2), max),
		SuggestedAction: "Review expenses or reduce the requested amount",
	}
}

func checkCreditScore(l *models.Lead, threshold int) models.ValidationCheck {
	name := "Credit score"
	switch {
	case l.CreditScore <= 0:
		return models.ValidationCheck{
			ID:              CheckCreditScore,
			Name:            name,
			Status:          models.CheckWarning,
			Severity:        models.SeverityWarning,
			Message:         "Credit score has not been fetched",
			SuggestedAction: "Run a credit bureau check",
		}
	case l.CreditScore < threshold:
		return models.ValidationCheck{
			ID:              CheckCreditScore,
			Name:            name,
			Status:          models.CheckFailed,
			Severity:        models.SeverityError,
			Message:         fmt.Sprintf("Score %d is below the minimum of %d", l.CreditScore, threshold),
			SuggestedAction: "Escalate to a branch manager",
		}
	default:
		return passed(CheckCreditScore, name)
	}
}

func checkHousehold(family []models.FamilyMember) models.ValidationCheck {
	if len(family) > 0 {
		c := passed(CheckHousehold, "Household")
		c.Message = fmt.Sprintf("%d family member(s) recorded", len(family))
		return c
	}
	return models.ValidationCheck{
		ID:              CheckHousehold,
		Name:            "Household",
		Status:          models.CheckWarning,
		Severity:        models.SeverityInfo,
		Message:         "No family members recorded",
		SuggestedAction: "Add household members if any",
	}
}
