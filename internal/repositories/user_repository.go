package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"loanops/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, tenantID string, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]*models.User, error)
	SetActive(ctx context.Context, tenantID string, id int64, active bool) error
	UpdatePassword(ctx context.Context, tenantID string, id int64, hash string) error
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO staff_users (tenant_id, email, full_name, password_hash, role_id, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, q,
		user.TenantID,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.RoleID,
		user.Active,
	).Scan(&user.ID)
}

func (r *userRepository) GetByID(ctx context.Context, tenantID string, id int64) (*models.User, error) {
	const q = `
		SELECT id, tenant_id, email, full_name, password_hash, role_id, active
		FROM staff_users
		WHERE id = $1 AND tenant_id = $2
	`
	u := &models.User{}
	if err := r.DB.QueryRowContext(ctx, q, id, tenantID).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.PasswordHash, &u.RoleID, &u.Active,
	); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail is used at login, before a tenant is known.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, tenant_id, email, full_name, password_hash, role_id, active
		FROM staff_users
		WHERE LOWER(email) = LOWER($1)
		ORDER BY id
		LIMIT 1
	`
	u := &models.User{}
	if err := r.DB.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.PasswordHash, &u.RoleID, &u.Active,
	); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*models.User, error) {
	const q = `
		SELECT id, tenant_id, email, full_name, password_hash, role_id, active
		FROM staff_users
		WHERE tenant_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, q, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.PasswordHash, &u.RoleID, &u.Active); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepository) SetActive(ctx context.Context, tenantID string, id int64, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE staff_users SET active = $1 WHERE id = $2 AND tenant_id = $3`, active, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, tenantID string, id int64, hash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE staff_users SET password_hash = $1 WHERE id = $2 AND tenant_id = $3`, hash, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
