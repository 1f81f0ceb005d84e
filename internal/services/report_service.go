package services

import (
	"context"
	"strings"

	"loanops/internal/apperr"
	"loanops/internal/gateway"
	"loanops/internal/models"
	"loanops/internal/reqctx"
)

type ReportService struct {
	Fineract *gateway.Client
	Pipeline *PipelineService
}

func NewReportService(fineract *gateway.Client, pipeline *PipelineService) *ReportService {
	return &ReportService{Fineract: fineract, Pipeline: pipeline}
}

// Dashboard is the local pipeline report.
type Dashboard struct {
	Funnel *models.Funnel        `json:"funnel"`
	Stages []models.StageMetrics `json:"stages"`
}

func (s *ReportService) Dashboard(ctx context.Context, scope reqctx.Scope) (*Dashboard, error) {
	funnel, err := s.Pipeline.Funnel(ctx, scope)
	if err != nil {
		return nil, err
	}
	stages, err := s.Pipeline.StageMetrics(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Funnel: funnel, Stages: stages}, nil
}

func (s *ReportService) ListReports(ctx context.Context, scope reqctx.Scope) ([]models.Report, error) {
	return s.Fineract.ListReports(ctx, scope)
}

func (s *ReportService) Parameters(ctx context.Context, scope reqctx.Scope, reportName string) (*models.ResultSet, error) {
	if strings.TrimSpace(reportName) == "" {
		return nil, apperr.Validation("report name is required")
	}
	return s.Fineract.GetReportParameters(ctx, scope, reportName)
}

func (s *ReportService) ParameterOptions(ctx context.Context, scope reqctx.Scope, parameterName string) (*models.ResultSet, error) {
	if strings.TrimSpace(parameterName) == "" {
		return nil, apperr.Validation("parameter name is required")
	}
	return s.Fineract.GetParameterOptions(ctx, scope, parameterName)
}

// Run executes a report; only R_-prefixed parameters are forwarded.
func (s *ReportService) Run(ctx context.Context, scope reqctx.Scope, reportName string, params map[string]string) (*models.ResultSet, error) {
	if strings.TrimSpace(reportName) == "" {
		return nil, apperr.Validation("report name is required")
	}
	return s.Fineract.RunReport(ctx, scope, reportName, params)
}
