package gateway

import (
	"context"
	"net/url"
	"strconv"

	"loanops/internal/models"
	"loanops/internal/reqctx"
)

func (c *Client) GetLoanTemplate(ctx context.Context, scope reqctx.Scope, clientID, productID int64) (*models.LoanTemplate, error) {
	q := url.Values{"templateType": {"individual"}}
	if clientID > 0 {
		q.Set("clientId", strconv.FormatInt(clientID, 10))
	}
	if productID > 0 {
		q.Set("productId", strconv.FormatInt(productID, 10))
	}
	var out models.LoanTemplate
	if err := c.do(ctx, scope, "GET", "/loans/template", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateClient(ctx context.Context, scope reqctx.Scope, app models.ClientApplication) (*models.CommandResult, error) {
	app.DateFormat = dateFormat
	app.Locale = locale
	var out models.CommandResult
	if err := c.do(ctx, scope, "POST", "/clients", nil, app, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitLoanApplication(ctx context.Context, scope reqctx.Scope, app models.LoanApplication) (*models.CommandResult, error) {
	app.DateFormat = dateFormat
	app.Locale = locale
	if app.LoanType == "" {
		app.LoanType = "individual"
	}
	var out models.CommandResult
	if err := c.do(ctx, scope, "POST", "/loans", nil, app, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
