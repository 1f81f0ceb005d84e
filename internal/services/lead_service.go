package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loanops/internal/apperr"
	"loanops/internal/logger"
	"loanops/internal/metrics"
	"loanops/internal/models"
	"loanops/internal/repositories"
	"loanops/internal/reqctx"
	"loanops/internal/utils"
)

const dobLayout = "2006-01-02"

type LeadService struct {
	Repo       *repositories.LeadRepository
	FamilyRepo *repositories.FamilyMemberRepository
	log        logger.Logger
	region     string
	now        func() time.Time
	newID      func() string
}

func NewLeadService(leadRepo *repositories.LeadRepository, familyRepo *repositories.FamilyMemberRepository, region string, log logger.Logger) *LeadService {
	return &LeadService{
		Repo:       leadRepo,
		FamilyRepo: familyRepo,
		log:        log.WithFields(map[string]interface{}{"module": "leads"}),
		region:     region,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.NewString() },
	}
}

// AutoSaveField persists a partial onboarding form. Without leadID it creates
// a PROSPECT lead; with one it overwrites only the fields present in draft.
// Failures are logged and reported in the result, never returned.
func (s *LeadService) AutoSaveField(ctx context.Context, scope reqctx.Scope, draft models.LeadDraft, leadID string) models.AutoSaveResult {
	var (
		id  string
		err error
	)
	op := "update"
	if strings.TrimSpace(leadID) == "" {
		op = "create"
		id, err = s.createFromDraft(ctx, scope, draft)
	} else {
		id = leadID
		err = s.updateFromDraft(ctx, scope, leadID, draft)
	}

	if err != nil {
		metrics.AutoSaveTotal.WithLabelValues(op, "failure").Inc()
		s.log.Error("auto-save failed", map[string]interface{}{
			"operation": op, "tenant": scope.TenantID, "lead_id": leadID, "error": err.Error(),
		})
		return models.AutoSaveResult{Success: false, Error: apperr.Message(err)}
	}
	metrics.AutoSaveTotal.WithLabelValues(op, "success").Inc()
	return models.AutoSaveResult{Success: true, LeadID: id}
}

func (s *LeadService) createFromDraft(ctx context.Context, scope reqctx.Scope, draft models.LeadDraft) (string, error) {
	lead := s.NewLead(scope)
	if err := s.applyDraft(lead, draft); err != nil {
		return "", err
	}

	if err := s.CreateLead(ctx, scope, lead); err != nil {
		return "", err
	}
	return lead.ID, nil
}

// CreateLead inserts a prepared lead. An owner that no longer exists is
// dropped and the insert retried once.
func (s *LeadService) CreateLead(ctx context.Context, scope reqctx.Scope, lead *models.Lead) error {
	err := s.Repo.Create(ctx, lead)
	if err != nil && lead.UserID != nil && repositories.IsForeignKeyViolation(err, "user_id") {
		s.log.Warn("owner not resolvable, saving lead without owner", map[string]interface{}{
			"tenant": scope.TenantID, "user_id": *lead.UserID,
		})
		lead.UserID = nil
		err = s.Repo.Create(ctx, lead)
	}
	if err != nil {
		return apperr.Persistence("create lead", err)
	}
	return nil
}

// NewLead returns an empty PROSPECT lead owned by the scope's user.
func (s *LeadService) NewLead(scope reqctx.Scope) *models.Lead {
	now := s.now()
	return &models.Lead{
		ID:           s.newID(),
		TenantID:     scope.TenantID,
		Status:       models.LeadProspect,
		UserID:       scope.UserRef(),
		CreatedAt:    now,
		LastModified: now,
	}
}

func (s *LeadService) updateFromDraft(ctx context.Context, scope reqctx.Scope, leadID string, draft models.LeadDraft) error {
	current, err := s.load(ctx, scope, leadID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return apperr.Conflict("lead is " + strings.ToLower(string(current.Status)) + " and can no longer be edited")
	}

	cols, err := s.draftColumns(draft)
	if err != nil {
		return err
	}
	n, err := s.Repo.UpdateColumns(ctx, scope.TenantID, leadID, cols, s.now())
	if err != nil {
		return apperr.Persistence("update lead", err)
	}
	if n == 0 {
		return apperr.NotFound("lead")
	}
	return nil
}

func (s *LeadService) applyDraft(l *models.Lead, d models.LeadDraft) error {
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setStr(&l.FirstName, d.FirstName)
	setStr(&l.MiddleName, d.MiddleName)
	setStr(&l.LastName, d.LastName)
	setStr(&l.EmailAddress, d.EmailAddress)
	setStr(&l.Gender, d.Gender)
	setStr(&l.NationalID, d.NationalID)
	setStr(&l.ExternalID, d.ExternalID)
	if d.MobileNo != nil {
		l.MobileNo = utils.NormalizePhone(*d.MobileNo, s.region)
	}
	if d.DateOfBirth != nil {
		dob, err := parseDOB(*d.DateOfBirth)
		if err != nil {
			return err
		}
		l.DateOfBirth = dob
	}
	setInt64 := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	setInt64(&l.OfficeID, d.OfficeID)
	setInt64(&l.LegalFormID, d.LegalFormID)
	setInt64(&l.ClientTypeID, d.ClientTypeID)
	setInt64(&l.ClientClassificationID, d.ClientClassificationID)
	setInt64(&l.LoanProductID, d.LoanProductID)
	setDec := func(dst *decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = *v
		}
	}
	setDec(&l.MonthlyIncome, d.MonthlyIncome)
	setDec(&l.MonthlyExpenses, d.MonthlyExpenses)
	setDec(&l.RequestedAmount, d.RequestedAmount)
	if d.CreditScore != nil {
		l.CreditScore = *d.CreditScore
	}
	if d.LoanTermMonths != nil {
		l.LoanTermMonths = *d.LoanTermMonths
	}
	if d.DocumentsVerified != nil {
		l.DocumentsVerified = *d.DocumentsVerified
	}
	if d.CurrentStep != nil {
		l.CurrentStep = *d.CurrentStep
	}
	return nil
}

// draftColumns lists the columns a sparse update touches, in a stable order.
func (s *LeadService) draftColumns(d models.LeadDraft) ([]repositories.Column, error) {
	var cols []repositories.Column
	add := func(name string, v interface{}) {
		cols = append(cols, repositories.Column{Name: name, Value: v})
	}
	str := func(name string, v *string) {
		if v != nil {
			add(name, strings.TrimSpace(*v))
		}
	}
	str("firstname", d.FirstName)
	str("middlename", d.MiddleName)
	str("lastname", d.LastName)
	if d.MobileNo != nil {
		add("mobile_no", utils.NormalizePhone(*d.MobileNo, s.region))
	}
	str("email_address", d.EmailAddress)
	if d.DateOfBirth != nil {
		dob, err := parseDOB(*d.DateOfBirth)
		if err != nil {
			return nil, err
		}
		add("date_of_birth", dob)
	}
	str("gender", d.Gender)
	str("national_id", d.NationalID)
	str("external_id", d.ExternalID)
	if d.OfficeID != nil {
		add("office_id", *d.OfficeID)
	}
	if d.LegalFormID != nil {
		add("legal_form_id", *d.LegalFormID)
	}
	if d.ClientTypeID != nil {
		add("client_type_id", *d.ClientTypeID)
	}
	if d.ClientClassificationID != nil {
		add("client_classification_id", *d.ClientClassificationID)
	}
	if d.MonthlyIncome != nil {
		add("monthly_income", *d.MonthlyIncome)
	}
	if d.MonthlyExpenses != nil {
		add("monthly_expenses", *d.MonthlyExpenses)
	}
	if d.CreditScore != nil {
		add("credit_score", *d.CreditScore)
	}
	if d.RequestedAmount != nil {
		add("requested_amount", *d.RequestedAmount)
	}
	if d.LoanProductID != nil {
		add("loan_product_id", *d.LoanProductID)
	}
	if d.LoanTermMonths != nil {
		add("loan_term_months", *d.LoanTermMonths)
	}
	if d.DocumentsVerified != nil {
		add("documents_verified", *d.DocumentsVerified)
	}
	if d.CurrentStep != nil {
		add("current_step", *d.CurrentStep)
	}
	return cols, nil
}

func parseDOB(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dobLayout, v)
	if err != nil {
		return nil, apperr.Validation("dateOfBirth must be YYYY-MM-DD")
	}
	return &t, nil
}

func (s *LeadService) load(ctx context.Context, scope reqctx.Scope, id string) (*models.Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("lead")
	}
	lead, err := s.Repo.GetByID(ctx, scope.TenantID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("lead")
	}
	if err != nil {
		return nil, apperr.Persistence("load lead", err)
	}
	return lead, nil
}

// GetLeadByID returns the lead with its family members.
func (s *LeadService) GetLeadByID(ctx context.Context, scope reqctx.Scope, id string) (*models.Lead, error) {
	lead, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	members, err := s.FamilyRepo.ListByLead(ctx, id)
	if err != nil {
		return nil, apperr.Persistence("load family members", err)
	}
	lead.FamilyMembers = members
	return lead, nil
}

func (s *LeadService) List(ctx context.Context, scope reqctx.Scope, f models.LeadFilter) ([]models.Lead, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	leads, total, err := s.Repo.List(ctx, scope.TenantID, f)
	if err != nil {
		s.log.Error("list leads failed", map[string]interface{}{"tenant": scope.TenantID, "error": err.Error()})
		return nil, 0, apperr.Persistence("list leads", err)
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	return leads, total, nil
}

func (s *LeadService) changeStatus(ctx context.Context, scope reqctx.Scope, id string, to models.LeadStatus, reason *string) (*models.Lead, error) {
	lead, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.TransitionLead(ctx, scope, lead, to, reason); err != nil {
		return nil, err
	}
	return lead, nil
}

// TransitionLead moves an already loaded lead to another status. Every lead
// status change goes through here so LeadTransitions is the only rule set.
func (s *LeadService) TransitionLead(ctx context.Context, scope reqctx.Scope, lead *models.Lead, to models.LeadStatus, reason *string) error {
	if !canTransition(lead.Status, to, LeadTransitions) {
		return apperr.InvalidTransition(string(lead.Status), string(to))
	}
	now := s.now()
	if err := s.Repo.UpdateStatus(ctx, scope.TenantID, lead.ID, to, reason, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("lead")
		}
		s.log.Error("lead status update failed", map[string]interface{}{
			"tenant": scope.TenantID, "lead_id": lead.ID, "to": to, "error": err.Error(),
		})
		return apperr.Persistence("update lead status", err)
	}
	lead.Status = to
	lead.LastModified = now
	if reason != nil {
		lead.ClosedReason = reason
	}
	s.log.Info("lead status changed", map[string]interface{}{
		"tenant": scope.TenantID, "lead_id": lead.ID, "to": to, "user_id": scope.UserID,
	})
	return nil
}

// CancelProspect closes a lead and records why.
func (s *LeadService) CancelProspect(ctx context.Context, scope reqctx.Scope, id, reason string) (*models.Lead, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reason is required to close a lead")
	}
	return s.changeStatus(ctx, scope, id, models.LeadClosed, &reason)
}

func (s *LeadService) MarkLeadAsConverted(ctx context.Context, scope reqctx.Scope, id string) (*models.Lead, error) {
	return s.changeStatus(ctx, scope, id, models.LeadConverted, nil)
}

func (s *LeadService) SaveAsDraft(ctx context.Context, scope reqctx.Scope, id string) (*models.Lead, error) {
	return s.changeStatus(ctx, scope, id, models.LeadStatusDraft, nil)
}

func (s *LeadService) SubmitLead(ctx context.Context, scope reqctx.Scope, id string) (*models.Lead, error) {
	return s.changeStatus(ctx, scope, id, models.LeadSubmitted, nil)
}

func (s *LeadService) AddFamilyMember(ctx context.Context, scope reqctx.Scope, leadID string, m models.FamilyMember) (*models.FamilyMember, error) {
	if _, err := s.load(ctx, scope, leadID); err != nil {
		return nil, err
	}
	m.ID = s.newID()
	m.LeadID = leadID
	m.MobileNo = utils.NormalizePhone(m.MobileNo, s.region)
	m.CreatedAt = s.now()
	if err := s.FamilyRepo.Create(ctx, &m); err != nil {
		return nil, apperr.Persistence("add family member", err)
	}
	return &m, nil
}

func (s *LeadService) UpdateFamilyMember(ctx context.Context, scope reqctx.Scope, leadID string, m models.FamilyMember) (*models.FamilyMember, error) {
	if _, err := s.load(ctx, scope, leadID); err != nil {
		return nil, err
	}
	m.LeadID = leadID
	m.MobileNo = utils.NormalizePhone(m.MobileNo, s.region)
	if err := s.FamilyRepo.Update(ctx, &m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("family member")
		}
		return nil, apperr.Persistence("update family member", err)
	}
	return &m, nil
}

func (s *LeadService) ListFamilyMembers(ctx context.Context, scope reqctx.Scope, leadID string) ([]models.FamilyMember, error) {
	if _, err := s.load(ctx, scope, leadID); err != nil {
		return nil, err
	}
	members, err := s.FamilyRepo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, apperr.Persistence("list family members", err)
	}
	return members, nil
}

func (s *LeadService) DeleteFamilyMember(ctx context.Context, scope reqctx.Scope, leadID, memberID string) error {
	if _, err := s.load(ctx, scope, leadID); err != nil {
		return err
	}
	if err := s.FamilyRepo.Delete(ctx, leadID, memberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("family member")
		}
		return apperr.Persistence("delete family member", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
