package gateway

import (
	"context"
	"net/url"
	"strings"

	"loanops/internal/models"
	"loanops/internal/reqctx"
)

func (c *Client) ListReports(ctx context.Context, scope reqctx.Scope) ([]models.Report, error) {
	var out []models.Report
	if err := c.cachedGet(ctx, scope, "/reports", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetReportParameters lists the parameters a report takes.
func (c *Client) GetReportParameters(ctx context.Context, scope reqctx.Scope, reportName string) (*models.ResultSet, error) {
	q := url.Values{}
	q.Set("parameterType", "true")
	q.Set("R_reportListing", "'"+reportName+"'")
	var out models.ResultSet
	if err := c.do(ctx, scope, "GET", "/runreports/FullParameterList", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetParameterOptions returns the selectable values of one parameter, e.g. OfficeIdSelectOne.
func (c *Client) GetParameterOptions(ctx context.Context, scope reqctx.Scope, parameterName string) (*models.ResultSet, error) {
	q := url.Values{"parameterType": {"true"}}
	var out models.ResultSet
	if err := c.do(ctx, scope, "GET", "/runreports/"+url.PathEscape(parameterName), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunReport executes a report. Only R_-prefixed parameters are forwarded.
func (c *Client) RunReport(ctx context.Context, scope reqctx.Scope, reportName string, params map[string]string) (*models.ResultSet, error) {
	q := url.Values{"genericResultSet": {"true"}}
	for k, v := range params {
		if strings.HasPrefix(k, "R_") {
			q.Set(k, v)
		}
	}
	var out models.ResultSet
	if err := c.do(ctx, scope, "GET", "/runreports/"+url.PathEscape(reportName), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
