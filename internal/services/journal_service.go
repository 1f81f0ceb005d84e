package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"loanops/internal/apperr"
	"loanops/internal/gateway"
	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/reqctx"
)

const unbalancedMessage = "Debit and credit amounts must be equal."

// JournalService fronts the core-banking accounting API.
type JournalService struct {
	Fineract *gateway.Client
	log      logger.Logger
}

func NewJournalService(fineract *gateway.Client, log logger.Logger) *JournalService {
	return &JournalService{Fineract: fineract, log: log.WithFields(map[string]interface{}{"module": "accounting"})}
}

// CheckBalanced reports whether every line is positive and debits equal credits.
func CheckBalanced(req models.JournalEntryRequest) error {
	sum := func(lines []models.JournalLine) (decimal.Decimal, bool) {
		total := decimal.Zero
		for _, l := range lines {
			if !l.Amount.IsPositive() {
				return total, false
			}
			total = total.Add(l.Amount)
		}
		return total, true
	}
	debits, ok := sum(req.Debits)
	if !ok {
		return apperr.Validation("debit amounts must be greater than zero")
	}
	credits, ok := sum(req.Credits)
	if !ok {
		return apperr.Validation("credit amounts must be greater than zero")
	}
	if !debits.Equal(credits) {
		e := apperr.Validation(unbalancedMessage)
		e.Details = map[string]interface{}{"debits": debits.String(), "credits": credits.String()}
		return e
	}
	return nil
}

// Create validates the entry locally and posts it. Nothing is sent when the
// entry is malformed or unbalanced.
func (s *JournalService) Create(ctx context.Context, scope reqctx.Scope, req models.JournalEntryRequest) (*models.JournalEntryResult, error) {
	req.CurrencyCode = strings.ToUpper(strings.TrimSpace(req.CurrencyCode))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := CheckBalanced(req); err != nil {
		return nil, err
	}
	res, err := s.Fineract.CreateJournalEntry(ctx, scope, req)
	if err != nil {
		s.log.Error("create journal entry failed", map[string]interface{}{
			"tenant": scope.TenantID, "office_id": req.OfficeID, "error": err.Error(),
		})
		return nil, err
	}
	s.log.Info("journal entry posted", map[string]interface{}{
		"tenant": scope.TenantID, "transaction_id": res.TransactionID, "user_id": scope.UserID,
	})
	return res, nil
}

func (s *JournalService) Search(ctx context.Context, scope reqctx.Scope, f models.JournalEntryFilter) (*models.JournalEntryPage, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	for _, d := range []string{f.FromDate, f.ToDate} {
		if d != "" && validate.Var(d, "datetime=2006-01-02") != nil {
			return nil, apperr.Validation("dates must be in YYYY-MM-DD format")
		}
	}
	return s.Fineract.SearchJournalEntries(ctx, scope, f)
}

func (s *JournalService) Reverse(ctx context.Context, scope reqctx.Scope, transactionID, comments string) (*models.JournalEntryResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, apperr.Validation("transactionId is required")
	}
	res, err := s.Fineract.ReverseJournalEntry(ctx, scope, transactionID, strings.TrimSpace(comments))
	if err != nil {
		s.log.Error("reverse journal entry failed", map[string]interface{}{
			"tenant": scope.TenantID, "transaction_id": transactionID, "error": err.Error(),
		})
		return nil, err
	}
	s.log.Info("journal entry reversed", map[string]interface{}{
		"tenant": scope.TenantID, "transaction_id": transactionID, "reversal_id": res.TransactionID,
	})
	return res, nil
}

func (s *JournalService) ListAccountingRules(ctx context.Context, scope reqctx.Scope) ([]models.AccountingRule, error) {
	return s.Fineract.ListAccountingRules(ctx, scope)
}

// PostFromRule books a single amount through a rule with one debit and one
// credit account.
func (s *JournalService) PostFromRule(ctx context.Context, scope reqctx.Scope, req models.FrequentPostingRequest) (*models.JournalEntryResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	rule, err := s.Fineract.GetAccountingRule(ctx, scope, req.AccountingRuleID)
	if err != nil {
		return nil, err
	}
	if len(rule.DebitAccounts) != 1 || len(rule.CreditAccounts) != 1 {
		return nil, apperr.Validation("accounting rule " + rule.Name + " needs explicit debit and credit lines")
	}
	return s.Create(ctx, scope, models.JournalEntryRequest{
		OfficeID:        req.OfficeID,
		CurrencyCode:    req.CurrencyCode,
		TransactionDate: req.TransactionDate,
		ReferenceNumber: req.ReferenceNumber,
		Comments:        req.Comments,
		AccountingRule:  rule.ID,
		PaymentTypeID:   req.PaymentTypeID,
		Debits:          []models.JournalLine{{GLAccountID: rule.DebitAccounts[0].ID, Amount: req.Amount}},
		Credits:         []models.JournalLine{{GLAccountID: rule.CreditAccounts[0].ID, Amount: req.Amount}},
	})
}

func (s *JournalService) Offices(ctx context.Context, scope reqctx.Scope) ([]models.Office, error) {
	return s.Fineract.ListOffices(ctx, scope)
}

func (s *JournalService) Currencies(ctx context.Context, scope reqctx.Scope) (*models.CurrencyConfiguration, error) {
	return s.Fineract.ListCurrencies(ctx, scope)
}

func (s *JournalService) PaymentTypes(ctx context.Context, scope reqctx.Scope) ([]models.PaymentType, error) {
	return s.Fineract.ListPaymentTypes(ctx, scope)
}

func (s *JournalService) GLAccounts(ctx context.Context, scope reqctx.Scope, f models.GLAccountFilter) ([]models.GLAccount, error) {
	return s.Fineract.ListGLAccounts(ctx, scope, f)
}

// LoanTemplate returns product defaults for the loan step of the onboarding form.
func (s *JournalService) LoanTemplate(ctx context.Context, scope reqctx.Scope, clientID, productID int64) (*models.LoanTemplate, error) {
	return s.Fineract.GetLoanTemplate(ctx, scope, clientID, productID)
}
