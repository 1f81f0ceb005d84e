package services

import (
	"context"
	"fmt"

	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/utils"
)

// SMSSender is implemented by utils.Client.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) (*utils.SendSMSResponse, error)
}

// SMSService tells USSD applicants about decisions on their application.
type SMSService struct {
	Client SMSSender
	log    logger.Logger
}

func NewSMSService(client SMSSender, log logger.Logger) *SMSService {
	return &SMSService{Client: client, log: log.WithFields(map[string]interface{}{"module": "sms"})}
}

// StatusText returns the applicant message for a status, or "" when none is sent.
func StatusText(app *models.UssdLoanApplication) string {
	amount := app.RequestedAmount.StringFixed(2)
	switch app.Status {
	case models.UssdApproved:
		return fmt.Sprintf("Dear %s, your loan application #%d for %s has been approved.", app.FirstName, app.ID, amount)
	case models.UssdRejected:
		return fmt.Sprintf("Dear %s, we are unable to approve your loan application #%d at this time.", app.FirstName, app.ID)
	case models.UssdDisbursed:
		return fmt.Sprintf("Dear %s, your loan of %s (application #%d) has been disbursed.", app.FirstName, amount, app.ID)
	}
	return ""
}

// NotifyStatus is best effort: failures are logged and swallowed.
func (s *SMSService) NotifyStatus(ctx context.Context, app *models.UssdLoanApplication) {
	if s == nil || s.Client == nil {
		return
	}
	text := StatusText(app)
	if text == "" || app.PhoneNumber == "" {
		return
	}
	if _, err := s.Client.SendSMS(ctx, app.PhoneNumber, text); err != nil {
		s.log.Warn("applicant sms failed", map[string]interface{}{
			"application_id": app.ID, "status": app.Status, "error": err.Error(),
		})
		return
	}
	s.log.Info("applicant notified", map[string]interface{}{"application_id": app.ID, "status": app.Status})
}
