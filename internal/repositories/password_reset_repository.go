package repositories

import (
	"context"
	"database/sql"

	"loanops/internal/models"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, pr *models.PasswordReset) error
	GetByTokenHash(ctx context.Context, hash string) (*models.PasswordReset, error)
	MarkUsed(ctx context.Context, id int64) error
}

type passwordResetRepository struct {
	DB *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{DB: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, pr *models.PasswordReset) error {
	const q = `
		INSERT INTO password_resets (user_id, tenant_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.DB.QueryRowContext(ctx, q, pr.UserID, pr.TenantID, pr.TokenHash, pr.ExpiresAt).
		Scan(&pr.ID, &pr.CreatedAt)
}

func (r *passwordResetRepository) GetByTokenHash(ctx context.Context, hash string) (*models.PasswordReset, error) {
	const q = `
		SELECT id, user_id, tenant_id, token_hash, expires_at, used_at, created_at
		FROM password_resets
		WHERE token_hash = $1
	`
	pr := &models.PasswordReset{}
	var usedAt sql.NullTime
	if err := r.DB.QueryRowContext(ctx, q, hash).Scan(
		&pr.ID, &pr.UserID, &pr.TenantID, &pr.TokenHash, &pr.ExpiresAt, &usedAt, &pr.CreatedAt,
	); err != nil {
		return nil, err
	}
	if usedAt.Valid {
		pr.UsedAt = &usedAt.Time
	}
	return pr, nil
}

// MarkUsed returns sql.ErrNoRows when the grant was already consumed.
func (r *passwordResetRepository) MarkUsed(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE password_resets SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
