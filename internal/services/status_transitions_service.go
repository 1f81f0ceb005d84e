package services

import "loanops/internal/models"

// Allowed lead status changes. CLOSED and CONVERTED are terminal.
var LeadTransitions = map[models.LeadStatus]map[models.LeadStatus]bool{
	models.LeadProspect:    {models.LeadStatusDraft: true, models.LeadSubmitted: true, models.LeadClosed: true},
	models.LeadStatusDraft: {models.LeadSubmitted: true, models.LeadClosed: true},
	models.LeadSubmitted:   {models.LeadConverted: true, models.LeadClosed: true},
	models.LeadClosed:      {},
	models.LeadConverted:   {},
}

// Allowed USSD application status changes, keyed by current status.
var UssdTransitions = map[models.UssdStatus]map[models.UssdStatus]bool{
	models.UssdCreated: {
		models.UssdSubmitted: true, models.UssdApproved: true, models.UssdRejected: true,
		models.UssdCancelled: true, models.UssdExpired: true,
	},
	models.UssdSubmitted: {
		models.UssdUnderReview: true, models.UssdApproved: true, models.UssdRejected: true,
		models.UssdCancelled: true, models.UssdExpired: true,
	},
	models.UssdUnderReview: {models.UssdApproved: true, models.UssdRejected: true, models.UssdCancelled: true},
	models.UssdApproved:    {models.UssdDisbursed: true, models.UssdCancelled: true},
	models.UssdRejected:    {},
	models.UssdDisbursed:   {},
	models.UssdCancelled:   {},
	models.UssdExpired:     {},
}

func canTransition[S comparable](current, to S, table map[S]map[S]bool) bool {
	nexts, ok := table[current]
	if !ok {
		return false
	}
	return nexts[to]
}

// AllowedUssdTargets lists the statuses an application may move to next.
func AllowedUssdTargets(current models.UssdStatus) []models.UssdStatus {
	order := []models.UssdStatus{
		models.UssdSubmitted, models.UssdUnderReview, models.UssdApproved, models.UssdRejected,
		models.UssdDisbursed, models.UssdCancelled, models.UssdExpired,
	}
	var out []models.UssdStatus
	for _, s := range order {
		if UssdTransitions[current][s] {
			out = append(out, s)
		}
	}
	return out
}
