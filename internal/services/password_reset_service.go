package services

import (
	"context"
	"strings"
	"time"

	"loanops/internal/apperr"
	"loanops/internal/config"
	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/repositories"
	"loanops/internal/utils"
)

var errBadResetToken = apperr.Validation("invalid or expired token")

type PasswordResetService struct {
	Users  repositories.UserRepository
	Resets repositories.PasswordResetRepository
	Email  EmailService

	ttl     time.Duration
	linkURL string
	log     logger.Logger
	now     func() time.Time
}

func NewPasswordResetService(users repositories.UserRepository, resets repositories.PasswordResetRepository, email EmailService, cfg config.AuthConfig, log logger.Logger) *PasswordResetService {
	return &PasswordResetService{
		Users:   users,
		Resets:  resets,
		Email:   email,
		ttl:     cfg.ResetTTL,
		linkURL: cfg.ResetURL,
		log:     log.WithFields(map[string]interface{}{"module": "password-reset"}),
		now:     time.Now,
	}
}

// RequestReset mails a reset link. Unknown or inactive accounts succeed silently.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Validation("email is required")
	}
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if isNoRows(err) {
			s.log.Info("reset requested for unknown email", map[string]interface{}{"email": email})
			return nil
		}
		return apperr.Persistence("load user", err)
	}
	if !user.Active {
		s.log.Info("reset requested for inactive user", map[string]interface{}{"user_id": user.ID})
		return nil
	}

	token, err := utils.NewRefreshToken(32)
	if err != nil {
		return err
	}
	pr := &models.PasswordReset{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		TokenHash: utils.HashToken(token),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.Resets.Create(ctx, pr); err != nil {
		return apperr.Persistence("store password reset", err)
	}

	if s.Email != nil {
		if err := s.Email.SendPasswordReset(user.Email, s.link(token)); err != nil {
			s.log.WithError(err).Error("password reset mail failed", map[string]interface{}{"user_id": user.ID})
		}
	}
	return nil
}

func (s *PasswordResetService) link(token string) string {
	if s.linkURL == "" {
		return token
	}
	sep := "?"
	if strings.Contains(s.linkURL, "?") {
		sep = "&"
	}
	return s.linkURL + sep + "token=" + token
}

// ResetPassword consumes the grant and sets the new password.
func (s *PasswordResetService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if err := validateStruct(req); err != nil {
		return err
	}
	pr, err := s.Resets.GetByTokenHash(ctx, utils.HashToken(req.Token))
	if err != nil {
		if isNoRows(err) {
			return errBadResetToken
		}
		return apperr.Persistence("load password reset", err)
	}
	if pr.UsedAt != nil || s.now().After(pr.ExpiresAt) {
		return errBadResetToken
	}
	if err := s.Resets.MarkUsed(ctx, pr.ID); err != nil {
		if isNoRows(err) {
			return errBadResetToken
		}
		return apperr.Persistence("consume password reset", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, pr.TenantID, pr.UserID, hash); err != nil {
		if isNoRows(err) {
			return errBadResetToken
		}
		return apperr.Persistence("update password", err)
	}
	s.log.Info("password reset", map[string]interface{}{"user_id": pr.UserID, "tenant": pr.TenantID})
	return nil
}
