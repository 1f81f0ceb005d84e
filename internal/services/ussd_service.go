package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"loanops/internal/apperr"
	"loanops/internal/gateway"
	"loanops/internal/logger"
	"loanops/internal/metrics"
	"loanops/internal/models"
	"loanops/internal/repositories"
	"loanops/internal/reqctx"
	"loanops/internal/utils"
)

const (
	// Fineract's head office; used when the lead carries no office.
	headOfficeID = 1
	// loanTermFrequencyType / repaymentFrequencyType enum value for months
	frequencyMonths = 2
)

var ussdTracer = otel.Tracer("loanops/ussd")

type UssdService struct {
	Apps     *repositories.UssdRepository
	Sagas    *repositories.SagaRepository
	Leads    *LeadService
	Fineract *gateway.Client
	Locker   *redislock.Client
	SMS      *SMSService
	Email    EmailService

	lockTTL time.Duration
	region  string
	log     logger.Logger
	now     func() time.Time
	newID   func() string
}

// NewUssdService wires the status engine. locker may be nil, in which case
// submissions run without the per-application lock.
func NewUssdService(
	apps *repositories.UssdRepository,
	sagas *repositories.SagaRepository,
	leads *LeadService,
	fineract *gateway.Client,
	locker *redislock.Client,
	sms *SMSService,
	email EmailService,
	lockTTL time.Duration,
	region string,
	log logger.Logger,
) *UssdService {
	return &UssdService{
		Apps:     apps,
		Sagas:    sagas,
		Leads:    leads,
		Fineract: fineract,
		Locker:   locker,
		SMS:      sms,
		Email:    email,
		lockTTL:  lockTTL,
		region:   region,
		log:      log.WithFields(map[string]interface{}{"module": "ussd"}),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

func (s *UssdService) List(ctx context.Context, scope reqctx.Scope, f models.UssdFilter) ([]models.UssdLoanApplication, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Phone != "" {
		f.Phone = utils.NormalizePhone(f.Phone, s.region)
	}
	apps, total, err := s.Apps.List(ctx, scope.TenantID, f)
	if err != nil {
		s.log.Error("list ussd applications failed", map[string]interface{}{"tenant": scope.TenantID, "error": err.Error()})
		return nil, 0, apperr.Persistence("list ussd applications", err)
	}
	return apps, total, nil
}

func (s *UssdService) Get(ctx context.Context, scope reqctx.Scope, id int64) (*models.UssdLoanApplication, error) {
	app, err := s.Apps.GetByID(ctx, scope.TenantID, id)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("ussd application")
		}
		return nil, apperr.Persistence("load ussd application", err)
	}
	return app, nil
}

// ListSagas lists the submission attempts of an application, newest first.
func (s *UssdService) ListSagas(ctx context.Context, scope reqctx.Scope, id int64) ([]models.SubmissionSaga, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}
	out, err := s.Sagas.ListByApplication(ctx, scope.TenantID, id)
	if err != nil {
		return nil, apperr.Persistence("list sagas", err)
	}
	return out, nil
}

// UpdateStatus moves an application along the fixed status table. Moving to
// SUBMITTED with CreateLead or SubmitLoan runs the submission saga first and
// only changes the status when the saga completes.
func (s *UssdService) UpdateStatus(ctx context.Context, scope reqctx.Scope, id int64, req models.UssdStatusRequest) (*models.UssdUpdateResult, error) {
	app, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(app.Status, req.Status, UssdTransitions) {
		return nil, apperr.InvalidTransition(string(app.Status), string(req.Status))
	}

	if req.Status == models.UssdSubmitted && (req.CreateLead || req.SubmitLoan) {
		var result *models.UssdUpdateResult
		err := s.withLock(ctx, id, func() error {
			var err error
			result, err = s.submit(ctx, scope, id, req)
			return err
		})
		if err != nil {
			return result, err
		}
		s.SMS.NotifyStatus(ctx, result.Application)
		return result, nil
	}

	if err := s.applyStatus(ctx, scope, app, req.Status, req.Notes); err != nil {
		return nil, err
	}
	s.SMS.NotifyStatus(ctx, app)
	return &models.UssdUpdateResult{Application: app}, nil
}

func (s *UssdService) applyStatus(ctx context.Context, scope reqctx.Scope, app *models.UssdLoanApplication, to models.UssdStatus, notes string) error {
	now := s.now()
	ok, err := s.Apps.UpdateStatus(ctx, scope.TenantID, app.ID, app.Status, to, strings.TrimSpace(notes), now)
	if err != nil {
		s.log.Error("ussd status update failed", map[string]interface{}{
			"tenant": scope.TenantID, "application_id": app.ID, "to": to, "error": err.Error(),
		})
		return apperr.Persistence("update ussd status", err)
	}
	if !ok {
		return apperr.Conflict("application status changed meanwhile, reload and retry")
	}
	s.log.Info("ussd status changed", map[string]interface{}{
		"tenant": scope.TenantID, "application_id": app.ID, "from": app.Status, "to": to, "user_id": scope.UserID,
	})
	app.Status = to
	app.UpdatedAt = now
	if n := strings.TrimSpace(notes); n != "" {
		app.Notes = n
	}
	return nil
}

func lockKey(id int64) string {
	return "ussd:submit:" + strconv.FormatInt(id, 10)
}

// withLock runs fn holding the application's submission lock. A lock held
// elsewhere is a conflict; an unreachable redis only skips the lock.
func (s *UssdService) withLock(ctx context.Context, id int64, fn func() error) error {
	if s.Locker == nil {
		return fn()
	}
	lock, err := s.Locker.Obtain(ctx, lockKey(id), s.lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return apperr.Conflict("a submission for this application is already in progress")
	}
	if err != nil {
		s.log.Warn("submission lock unavailable, continuing without it", map[string]interface{}{
			"application_id": id, "error": err.Error(),
		})
		return fn()
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			s.log.Warn("release submission lock failed", map[string]interface{}{"application_id": id, "error": err.Error()})
		}
	}()
	return fn()
}

func (s *UssdService) saveSaga(ctx context.Context, saga *models.SubmissionSaga) {
	saga.UpdatedAt = s.now()
	if err := s.Sagas.Save(ctx, saga); err != nil {
		s.log.Error("save saga failed", map[string]interface{}{"saga_id": saga.ID, "state": saga.State, "error": err.Error()})
	}
}

func (s *UssdService) submit(ctx context.Context, scope reqctx.Scope, id int64, req models.UssdStatusRequest) (*models.UssdUpdateResult, error) {
	ctx, span := ussdTracer.Start(ctx, "ussd.submission_saga")
	defer span.End()
	span.SetAttributes(attribute.String("tenant", scope.TenantID), attribute.Int64("application_id", id))

	// re-read under the lock; a parallel submission may have finished
	app, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(app.Status, models.UssdSubmitted, UssdTransitions) {
		return nil, apperr.InvalidTransition(string(app.Status), string(models.UssdSubmitted))
	}

	now := s.now()
	saga := &models.SubmissionSaga{
		ID:            s.newID(),
		TenantID:      scope.TenantID,
		ApplicationID: app.ID,
		State:         models.SagaStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Sagas.Create(ctx, saga); err != nil {
		return nil, apperr.Persistence("start submission", err)
	}
	result := &models.UssdUpdateResult{Application: app, Saga: saga}

	fail := func(state models.SagaState, cause error) (*models.UssdUpdateResult, error) {
		msg := apperr.Message(cause)
		if msg == "internal error" {
			msg = cause.Error()
		}
		saga.State = state
		saga.LastError = &msg
		s.saveSaga(ctx, saga)
		metrics.SagaOutcomesTotal.WithLabelValues(string(state)).Inc()
		span.SetStatus(codes.Error, msg)
		s.log.Error("ussd submission did not complete", map[string]interface{}{
			"tenant": scope.TenantID, "application_id": app.ID, "saga_id": saga.ID, "state": state, "error": msg,
		})
		if s.Email != nil {
			if err := s.Email.SendSagaFailureAlert(app, saga); err != nil {
				s.log.Warn("saga alert failed", map[string]interface{}{"saga_id": saga.ID, "error": err.Error()})
			}
		}
		return result, apperr.PartialFailure(
			fmt.Sprintf("loan submission failed: %s", msg),
			map[string]interface{}{"sagaId": saga.ID, "state": state},
			cause,
		)
	}

	lead, created, err := s.ensureLead(ctx, scope, app)
	if err != nil {
		return fail(models.SagaFailed, err)
	}
	saga.LeadID = &lead.ID
	saga.LeadCreated = created
	saga.State = models.SagaLeadCreated
	s.saveSaga(ctx, saga)

	if req.SubmitLoan {
		loanID, err := s.submitLoan(ctx, scope, app, lead)
		if err != nil {
			return fail(s.compensate(ctx, scope, saga, lead), err)
		}
		saga.FineractLoanID = &loanID
		saga.State = models.SagaLoanSubmitted
		s.saveSaga(ctx, saga)
	}

	if err := s.applyStatus(ctx, scope, app, models.UssdSubmitted, req.Notes); err != nil {
		return fail(models.SagaFailed, err)
	}

	saga.State = models.SagaCompleted
	saga.LastError = nil
	s.saveSaga(ctx, saga)
	metrics.SagaOutcomesTotal.WithLabelValues(string(models.SagaCompleted)).Inc()
	s.log.Info("ussd submission completed", map[string]interface{}{
		"tenant": scope.TenantID, "application_id": app.ID, "saga_id": saga.ID, "lead_id": lead.ID,
	})
	return result, nil
}

// compensate closes a lead the saga created. Anything created in the core
// banking system is left as a pending record.
func (s *UssdService) compensate(ctx context.Context, scope reqctx.Scope, saga *models.SubmissionSaga, lead *models.Lead) models.SagaState {
	if !saga.LeadCreated || lead == nil {
		return models.SagaCompensated
	}
	if err := s.closeLead(ctx, scope, lead, "USSD loan submission failed"); err != nil {
		s.log.Error("compensation failed", map[string]interface{}{"saga_id": saga.ID, "lead_id": lead.ID, "error": err.Error()})
		return models.SagaFailed
	}
	return models.SagaCompensated
}

func (s *UssdService) closeLead(ctx context.Context, scope reqctx.Scope, lead *models.Lead, reason string) error {
	return s.Leads.TransitionLead(ctx, scope, lead, models.LeadClosed, &reason)
}

// ensureLead returns the application's lead, reusing a linked or matching
// open lead before creating one. created reports whether it is new.
func (s *UssdService) ensureLead(ctx context.Context, scope reqctx.Scope, app *models.UssdLoanApplication) (*models.Lead, bool, error) {
	if app.LeadID != nil {
		lead, err := s.Leads.Repo.GetByID(ctx, scope.TenantID, *app.LeadID)
		if err != nil && !isNoRows(err) {
			return nil, false, apperr.Persistence("load linked lead", err)
		}
		if lead != nil && lead.Status != models.LeadClosed {
			return lead, false, nil
		}
	}

	phone := utils.NormalizePhone(app.PhoneNumber, s.region)
	lead, err := s.Leads.Repo.FindByNationalIDOrPhone(ctx, scope.TenantID, app.NationalID, phone)
	if err != nil {
		return nil, false, apperr.Persistence("find lead", err)
	}
	created := false
	if lead == nil {
		lead = s.Leads.NewLead(scope)
		lead.FirstName = app.FirstName
		lead.LastName = app.LastName
		lead.MobileNo = phone
		lead.NationalID = app.NationalID
		lead.ExternalID = "ussd-" + strconv.FormatInt(app.ID, 10)
		lead.RequestedAmount = app.RequestedAmount
		lead.LoanProductID = app.LoanProductID
		lead.LoanTermMonths = app.TermMonths
		if err := s.Leads.CreateLead(ctx, scope, lead); err != nil {
			return nil, false, err
		}
		created = true
	}

	if err := s.Apps.LinkLead(ctx, scope.TenantID, app.ID, lead.ID, s.now()); err != nil {
		if created {
			if cerr := s.closeLead(ctx, scope, lead, "USSD link failed"); cerr != nil {
				s.log.Error("close unlinked lead failed", map[string]interface{}{
					"tenant": scope.TenantID, "application_id": app.ID, "lead_id": lead.ID, "error": cerr.Error(),
				})
			}
		}
		return nil, false, apperr.Persistence("link lead", err)
	}
	app.LeadID = &lead.ID
	return lead, created, nil
}

// submitLoan makes sure the lead has a core-banking client and files the
// loan application with the lead ID as external ID.
func (s *UssdService) submitLoan(ctx context.Context, scope reqctx.Scope, app *models.UssdLoanApplication, lead *models.Lead) (int64, error) {
	today := s.now().Format("2006-01-02")

	if lead.FineractClientID == nil {
		office := lead.OfficeID
		if office <= 0 {
			office = headOfficeID
		}
		res, err := s.Fineract.CreateClient(ctx, scope, models.ClientApplication{
			OfficeID:        office,
			LegalFormID:     1,
			FirstName:       lead.FirstName,
			LastName:        lead.LastName,
			MobileNo:        lead.MobileNo,
			ExternalID:      lead.ID,
			Active:          false,
			SubmittedOnDate: today,
		})
		if err != nil {
			return 0, err
		}
		clientID := res.ClientID
		if clientID == 0 {
			clientID = res.ResourceID
		}
		lead.FineractClientID = &clientID
		if err := s.Leads.Repo.SetFineractIDs(ctx, scope.TenantID, lead.ID, &clientID, nil, s.now()); err != nil {
			s.log.Warn("store client id failed", map[string]interface{}{"lead_id": lead.ID, "error": err.Error()})
		}
	}

	tpl, err := s.Fineract.GetLoanTemplate(ctx, scope, *lead.FineractClientID, app.LoanProductID)
	if err != nil {
		return 0, err
	}
	res, err := s.Fineract.SubmitLoanApplication(ctx, scope, loanFromTemplate(tpl, *lead.FineractClientID, app, lead.ID, today))
	if err != nil {
		return 0, err
	}
	loanID := res.LoanID
	if loanID == 0 {
		loanID = res.ResourceID
	}

	if err := s.Apps.LinkLoan(ctx, scope.TenantID, app.ID, loanID, s.now()); err != nil {
		s.log.Warn("link loan failed", map[string]interface{}{"application_id": app.ID, "loan_id": loanID, "error": err.Error()})
	}
	app.FineractLoanID = &loanID
	lead.FineractLoanID = &loanID
	if err := s.Leads.Repo.SetFineractIDs(ctx, scope.TenantID, lead.ID, nil, &loanID, s.now()); err != nil {
		s.log.Warn("store loan id failed", map[string]interface{}{"lead_id": lead.ID, "error": err.Error()})
	}
	// a lead that is already past SUBMITTED keeps its status
	if err := s.Leads.TransitionLead(ctx, scope, lead, models.LeadSubmitted, nil); err != nil && !errors.Is(err, apperr.ErrInvalidTransition) {
		s.log.Warn("mark lead submitted failed", map[string]interface{}{"lead_id": lead.ID, "error": err.Error()})
	}
	return loanID, nil
}

func enumID(e *models.EnumOption, fallback int) int {
	if e == nil {
		return fallback
	}
	return int(e.ID)
}

func loanFromTemplate(tpl *models.LoanTemplate, clientID int64, app *models.UssdLoanApplication, leadID, today string) models.LoanApplication {
	term := app.TermMonths
	if term <= 0 {
		term = tpl.TermFrequency
	}
	return models.LoanApplication{
		ClientID:                          clientID,
		ProductID:                         app.LoanProductID,
		Principal:                         app.RequestedAmount,
		LoanTermFrequency:                 term,
		LoanTermFrequencyType:             frequencyMonths,
		NumberOfRepayments:                term,
		RepaymentEvery:                    1,
		RepaymentFrequencyType:            frequencyMonths,
		InterestRatePerPeriod:             tpl.InterestRatePerPeriod,
		AmortizationType:                  enumID(tpl.AmortizationType, 1),
		InterestType:                      enumID(tpl.InterestType, 0),
		InterestCalculationPeriodType:     enumID(tpl.InterestCalculationPeriodType, 1),
		TransactionProcessingStrategyCode: tpl.TransactionProcessingStrategyCode,
		ExpectedDisbursementDate:          today,
		SubmittedOnDate:                   today,
		ExternalID:                        leadID,
	}
}

// PromoteToLead links the application to a lead without submitting anything.
func (s *UssdService) PromoteToLead(ctx context.Context, scope reqctx.Scope, id int64) (*models.UssdLoanApplication, error) {
	app, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	switch app.Status {
	case models.UssdRejected, models.UssdCancelled, models.UssdExpired:
		return nil, apperr.Conflict("application is " + strings.ToLower(string(app.Status)))
	}
	if _, _, err := s.ensureLead(ctx, scope, app); err != nil {
		s.log.Error("promote to lead failed", map[string]interface{}{"application_id": id, "error": err.Error()})
		return nil, err
	}
	return app, nil
}
