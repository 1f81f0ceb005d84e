package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"loanops/internal/apperr"
	"loanops/internal/authz"
	"loanops/internal/config"
	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/repositories"
)

var userColumnNames = []string{"id", "tenant_id", "email", "full_name", "password_hash", "role_id", "active"}

const (
	userByEmailQuery = `SELECT .* FROM staff_users WHERE LOWER\(email\) = LOWER\(\$1\)`
	userByIDQuery    = `SELECT .* FROM staff_users WHERE id = \$1 AND tenant_id = \$2`
)

func newTestAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock := newMockDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	svc := NewAuthService(repositories.NewUserRepository(db), rdb, config.AuthConfig{
		JWTSecret:  "s3cret",
		TokenTTL:   time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, logger.NewNoOpLogger())
	return svc, mock, mr
}

func userRow(t *testing.T, password string, active bool) *sqlmock.Rows {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return sqlmock.NewRows(userColumnNames).
		AddRow(int64(9), "t1", "officer@example.com", "Grace Wanjiku", string(hash), authz.RoleLoanOfficer, active)
}

func TestLogin_IssuesTokenWithTenant(t *testing.T) {
	svc, mock, mr := newTestAuthService(t)
	mock.ExpectQuery(userByEmailQuery).WithArgs("officer@example.com").WillReturnRows(userRow(t, "correct horse", true))

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: " officer@example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.NotEmpty(t, res.RefreshToken)

	claims, err := authz.ParseToken([]byte("s3cret"), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(9), claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, authz.RoleLoanOfficer, claims.RoleID)

	assert.Len(t, mr.Keys(), 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, mock sqlmock.Sqlmock)
	}{
		{"wrong password", func(t *testing.T, mock sqlmock.Sqlmock) {
			mock.ExpectQuery(userByEmailQuery).WillReturnRows(userRow(t, "correct horse", true))
		}},
		{"inactive", func(t *testing.T, mock sqlmock.Sqlmock) {
			mock.ExpectQuery(userByEmailQuery).WillReturnRows(userRow(t, "battery staple", false))
		}},
		{"unknown", func(t *testing.T, mock sqlmock.Sqlmock) {
			mock.ExpectQuery(userByEmailQuery).WillReturnRows(sqlmock.NewRows(userColumnNames))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newTestAuthService(t)
			tt.setup(t, mock)
			_, err := svc.Login(context.Background(), models.LoginRequest{Email: "officer@example.com", Password: "battery staple"})
			require.ErrorIs(t, err, apperr.ErrUnauthorized)
			assert.Equal(t, "Invalid email or password", apperr.Message(err))
			assert.Equal(t, 401, apperr.HTTPStatus(err))
		})
	}
}

func TestRefresh_RotatesOnce(t *testing.T) {
	svc, mock, _ := newTestAuthService(t)
	mock.ExpectQuery(userByEmailQuery).WillReturnRows(userRow(t, "pw", true))
	first, err := svc.Login(context.Background(), models.LoginRequest{Email: "officer@example.com", Password: "pw"})
	require.NoError(t, err)

	mock.ExpectQuery(userByIDQuery).WithArgs(int64(9), "t1").WillReturnRows(userRow(t, "pw", true))
	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, svc.Logout(context.Background(), second.RefreshToken))
	_, err = svc.Refresh(context.Background(), second.RefreshToken)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUserCreate(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewUserService(repositories.NewUserRepository(db), logger.NewNoOpLogger())

	t.Run("hashes password and lowercases email", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO staff_users`).
			WithArgs("t1", "new@example.com", "Peter Mwangi", sqlmock.AnyArg(), authz.RoleAccountant, true).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

		u, err := svc.Create(context.Background(), testScope, models.CreateUserRequest{
			Email: "New@Example.com", FullName: "Peter Mwangi", Password: "longenough", RoleID: authz.RoleAccountant,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(12), u.ID)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("longenough")))
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO staff_users`).WillReturnError(&pq.Error{Code: "23505"})
		_, err := svc.Create(context.Background(), testScope, models.CreateUserRequest{
			Email: "dup@example.com", FullName: "Dup", Password: "longenough", RoleID: authz.RoleLoanOfficer,
		})
		require.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Create(context.Background(), testScope, models.CreateUserRequest{
			Email: "x@example.com", FullName: "X", Password: "short", RoleID: authz.RoleLoanOfficer,
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, "password must be at least 8 characters", apperr.Message(err))
	})

	t.Run("non-admin cannot create admin", func(t *testing.T) {
		scope := testScope
		scope.RoleID = authz.RoleBranchManager
		_, err := svc.Create(context.Background(), scope, models.CreateUserRequest{
			Email: "boss@example.com", FullName: "Boss", Password: "longenough", RoleID: authz.RoleAdmin,
		})
		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
