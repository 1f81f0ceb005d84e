package gateway

import (
	"context"
	"net/url"
	"strconv"

	"loanops/internal/models"
	"loanops/internal/reqctx"
)

const (
	dateFormat = "yyyy-MM-dd"
	locale     = "en"
)

func (c *Client) ListOffices(ctx context.Context, scope reqctx.Scope) ([]models.Office, error) {
	var out []models.Office
	if err := c.cachedGet(ctx, scope, "/offices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCurrencies(ctx context.Context, scope reqctx.Scope) (*models.CurrencyConfiguration, error) {
	var out models.CurrencyConfiguration
	if err := c.cachedGet(ctx, scope, "/currencies", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListPaymentTypes(ctx context.Context, scope reqctx.Scope) ([]models.PaymentType, error) {
	var out []models.PaymentType
	if err := c.cachedGet(ctx, scope, "/paymenttypes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAccountingRules(ctx context.Context, scope reqctx.Scope) ([]models.AccountingRule, error) {
	var out []models.AccountingRule
	if err := c.cachedGet(ctx, scope, "/accountingrules", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAccountingRule(ctx context.Context, scope reqctx.Scope, id int64) (*models.AccountingRule, error) {
	var out models.AccountingRule
	if err := c.cachedGet(ctx, scope, "/accountingrules/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListGLAccounts(ctx context.Context, scope reqctx.Scope, f models.GLAccountFilter) ([]models.GLAccount, error) {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Usage != "" {
		q.Set("usage", f.Usage)
	}
	if f.ManualEntriesAllowed != nil {
		q.Set("manualEntriesAllowed", strconv.FormatBool(*f.ManualEntriesAllowed))
	}
	if f.Disabled != nil {
		q.Set("disabled", strconv.FormatBool(*f.Disabled))
	}
	var out []models.GLAccount
	if err := c.cachedGet(ctx, scope, "/glaccounts", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SearchJournalEntries(ctx context.Context, scope reqctx.Scope, f models.JournalEntryFilter) (*models.JournalEntryPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(f.Offset))
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("orderBy", "id")
	q.Set("sortOrder", "desc")
	if f.OfficeID > 0 {
		q.Set("officeId", strconv.FormatInt(f.OfficeID, 10))
	}
	if f.GLAccountID > 0 {
		q.Set("glAccountId", strconv.FormatInt(f.GLAccountID, 10))
	}
	if f.TransactionID != "" {
		q.Set("transactionId", f.TransactionID)
	}
	if f.ManualOnly {
		q.Set("manualEntriesOnly", "true")
	}
	if f.FromDate != "" || f.ToDate != "" {
		q.Set("dateFormat", dateFormat)
		q.Set("locale", locale)
		if f.FromDate != "" {
			q.Set("fromDate", f.FromDate)
		}
		if f.ToDate != "" {
			q.Set("toDate", f.ToDate)
		}
	}

	var out models.JournalEntryPage
	if err := c.do(ctx, scope, "GET", "/journalentries", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type journalEntryPayload struct {
	models.JournalEntryRequest
	DateFormat string `json:"dateFormat"`
	Locale     string `json:"locale"`
}

func (c *Client) CreateJournalEntry(ctx context.Context, scope reqctx.Scope, req models.JournalEntryRequest) (*models.JournalEntryResult, error) {
	payload := journalEntryPayload{JournalEntryRequest: req, DateFormat: dateFormat, Locale: locale}
	var out models.JournalEntryResult
	if err := c.do(ctx, scope, "POST", "/journalentries", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReverseJournalEntry(ctx context.Context, scope reqctx.Scope, transactionID, comments string) (*models.JournalEntryResult, error) {
	q := url.Values{"command": {"reverse"}}
	payload := map[string]string{}
	if comments != "" {
		payload["comments"] = comments
	}
	var out models.JournalEntryResult
	if err := c.do(ctx, scope, "POST", "/journalentries/"+url.PathEscape(transactionID), q, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
