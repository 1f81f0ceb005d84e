package models

type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type ValidationCheck struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Status          CheckStatus `json:"status"`
	Severity        Severity    `json:"severity"`
	Message         string      `json:"message,omitempty"`
	SuggestedAction string      `json:"suggestedAction,omitempty"`
}

type ValidationSummary struct {
	Total            int     `json:"total"`
	Passed           int     `json:"passed"`
	Warnings         int     `json:"warnings"`
	Failed           int     `json:"failed"`
	PassedPercentage float64 `json:"passedPercentage"`
	CanProceed       bool    `json:"canProceed"`
}

type ValidationReport struct {
	LeadID      string            `json:"leadId"`
	Validations []ValidationCheck `json:"validations"`
	Summary     ValidationSummary `json:"summary"`
}

// FailedIDs lists the checks that block progress.
func (r *ValidationReport) FailedIDs() []string {
	var out []string
	for _, v := range r.Validations {
		if v.Status == CheckFailed {
			out = append(out, v.ID)
		}
	}
	return out
}
