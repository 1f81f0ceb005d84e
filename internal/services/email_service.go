package services

import (
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"loanops/internal/config"
	"loanops/internal/logger"
	"loanops/internal/models"
)

// EmailService sends staff alerts and account mail.
type EmailService interface {
	SendSagaFailureAlert(app *models.UssdLoanApplication, saga *models.SubmissionSaga) error
	SendPasswordReset(to, link string) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
	to     string
	log    logger.Logger
}

// NewEmailService returns a log-only sender when SMTP is not configured.
func NewEmailService(cfg config.EmailConfig, log logger.Logger) EmailService {
	log = log.WithFields(map[string]interface{}{"module": "email"})
	if cfg.SMTPHost == "" {
		return &logOnlyEmail{log: log}
	}
	return &emailService{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.FromEmail,
		to:     cfg.AlertEmail,
		log:    log,
	}
}

func sagaAlertSubject(app *models.UssdLoanApplication, saga *models.SubmissionSaga) string {
	return fmt.Sprintf("USSD application %d: submission %s", app.ID, saga.State)
}

func (s *emailService) SendSagaFailureAlert(app *models.UssdLoanApplication, saga *models.SubmissionSaga) error {
	if s.to == "" {
		s.log.Warn("no alert recipient, alert not mailed", map[string]interface{}{"saga_id": saga.ID})
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", sagaAlertSubject(app, saga))

	lastErr := ""
	if saga.LastError != nil {
		lastErr = *saga.LastError
	}
	leadID := "-"
	if saga.LeadID != nil {
		leadID = *saga.LeadID
	}
	body := fmt.Sprintf(`
		<h3>Loan submission did not complete</h3>
		<p>Tenant: %s<br>Application: %d (%s %s, %s)<br>Saga: %s<br>State: %s<br>Lead: %s</p>
		<p>Error: %s</p>
		<p>Review the application and resubmit once the cause is fixed.</p>
	`, html.EscapeString(app.TenantID), app.ID, html.EscapeString(app.FirstName), html.EscapeString(app.LastName),
		html.EscapeString(app.PhoneNumber), saga.ID, saga.State, leadID, html.EscapeString(lastErr))
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send saga alert email: %w", err)
	}
	s.log.Info("saga alert sent", map[string]interface{}{"saga_id": saga.ID, "to": s.to})
	return nil
}

func (s *emailService) SendPasswordReset(to, link string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Password reset")
	m.SetBody("text/html", fmt.Sprintf(`
		<p>A password reset was requested for this account.</p>
		<p><a href="%s">Choose a new password</a></p>
		<p>If you did not ask for this, ignore this message.</p>
	`, html.EscapeString(link)))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	s.log.Info("password reset mailed", map[string]interface{}{"to": to})
	return nil
}

type logOnlyEmail struct {
	log logger.Logger
}

func (l *logOnlyEmail) SendSagaFailureAlert(app *models.UssdLoanApplication, saga *models.SubmissionSaga) error {
	l.log.Warn("smtp not configured, alert not mailed", map[string]interface{}{
		"subject": sagaAlertSubject(app, saga), "saga_id": saga.ID,
	})
	return nil
}

func (l *logOnlyEmail) SendPasswordReset(to, _ string) error {
	l.log.Warn("smtp not configured, password reset not mailed", map[string]interface{}{"to": to})
	return nil
}
