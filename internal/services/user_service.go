package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"loanops/internal/apperr"
	"loanops/internal/authz"
	"loanops/internal/config"
	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/repositories"
	"loanops/internal/reqctx"
	"loanops/internal/utils"
)

const refreshKeyPrefix = "auth:refresh:"

var errBadCredentials = apperr.Unauthorized("Invalid email or password")

// AuthService issues access tokens and rotates opaque refresh tokens kept in redis.
type AuthService struct {
	Users  repositories.UserRepository
	Redis  *redis.Client
	secret []byte
	ttl    time.Duration
	rtTTL  time.Duration
	log    logger.Logger
	now    func() time.Time
}

func NewAuthService(users repositories.UserRepository, rdb *redis.Client, cfg config.AuthConfig, log logger.Logger) *AuthService {
	return &AuthService{
		Users:  users,
		Redis:  rdb,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		rtTTL:  cfg.RefreshTTL,
		log:    log.WithFields(map[string]interface{}{"module": "auth"}),
		now:    time.Now,
	}
}

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	email := strings.TrimSpace(req.Email)
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if isNoRows(err) {
			s.log.Info("login rejected", map[string]interface{}{"email": email, "reason": "unknown user"})
			return nil, errBadCredentials
		}
		return nil, apperr.Persistence("load user", err)
	}
	if !user.Active {
		s.log.Info("login rejected", map[string]interface{}{"user_id": user.ID, "reason": "inactive"})
		return nil, errBadCredentials
	}
	hash := strings.TrimSpace(user.PasswordHash)
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		s.log.Info("login rejected", map[string]interface{}{"user_id": user.ID, "reason": "password mismatch"})
		return nil, errBadCredentials
	}
	res, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info("login ok", map[string]interface{}{"user_id": user.ID, "tenant": user.TenantID, "role": authz.Name(user.RoleID)})
	return res, nil
}

// Refresh trades a refresh token for a new pair. Each refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.LoginResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apperr.Validation("refreshToken is required")
	}
	val, err := s.Redis.GetDel(ctx, refreshKeyPrefix+utils.HashToken(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.Unauthorized("Invalid refresh token")
	}
	if err != nil {
		return nil, apperr.Persistence("read refresh token", err)
	}
	tenantID, userID, ok := splitRefreshValue(val)
	if !ok {
		return nil, apperr.Unauthorized("Invalid refresh token")
	}
	user, err := s.Users.GetByID(ctx, tenantID, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.Unauthorized("Invalid refresh token")
		}
		return nil, apperr.Persistence("load user", err)
	}
	if !user.Active {
		return nil, apperr.Unauthorized("Invalid refresh token")
	}
	return s.issue(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	if err := s.Redis.Del(ctx, refreshKeyPrefix+utils.HashToken(strings.TrimSpace(refreshToken))).Err(); err != nil {
		return apperr.Persistence("revoke refresh token", err)
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*models.LoginResponse, error) {
	access, err := authz.SignToken(s.secret, authz.Claims{
		UserID:   user.ID,
		RoleID:   user.RoleID,
		TenantID: user.TenantID,
	}, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}
	rt, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	val := user.TenantID + ":" + strconv.FormatInt(user.ID, 10)
	if err := s.Redis.Set(ctx, refreshKeyPrefix+utils.HashToken(rt), val, s.rtTTL).Err(); err != nil {
		return nil, apperr.Persistence("store refresh token", err)
	}
	return &models.LoginResponse{
		AccessToken:  access,
		RefreshToken: rt,
		ExpiresIn:    int64(s.ttl.Seconds()),
		User:         user,
	}, nil
}

func splitRefreshValue(v string) (string, int64, bool) {
	i := strings.LastIndexByte(v, ':')
	if i <= 0 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(v[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return v[:i], id, true
}

// UserService administers staff accounts within a tenant.
type UserService struct {
	Repo repositories.UserRepository
	log  logger.Logger
}

func NewUserService(repo repositories.UserRepository, log logger.Logger) *UserService {
	return &UserService{Repo: repo, log: log.WithFields(map[string]interface{}{"module": "users"})}
}

func (s *UserService) List(ctx context.Context, scope reqctx.Scope, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.Repo.List(ctx, scope.TenantID, limit, offset)
	if err != nil {
		return nil, apperr.Persistence("list users", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, scope reqctx.Scope, id int64) (*models.User, error) {
	u, err := s.Repo.GetByID(ctx, scope.TenantID, id)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Persistence("load user", err)
	}
	return u, nil
}

// Create adds a user to the caller's tenant. Only admins may create admins.
func (s *UserService) Create(ctx context.Context, scope reqctx.Scope, req models.CreateUserRequest) (*models.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !authz.Valid(req.RoleID) {
		return nil, apperr.Validation("roleId is not a known role")
	}
	if req.RoleID == authz.RoleAdmin && scope.RoleID != authz.RoleAdmin {
		return nil, apperr.Forbidden("only admins can create admins")
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		TenantID:     scope.TenantID,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		RoleID:       req.RoleID,
		Active:       true,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, apperr.Conflict("a user with this email already exists")
		}
		return nil, apperr.Persistence("create user", err)
	}
	s.log.Info("user created", map[string]interface{}{"tenant": scope.TenantID, "user_id": u.ID, "by": scope.UserID})
	return u, nil
}

func (s *UserService) SetActive(ctx context.Context, scope reqctx.Scope, id int64, active bool) error {
	if id == scope.UserID && !active {
		return apperr.Validation("you cannot deactivate yourself")
	}
	if err := s.Repo.SetActive(ctx, scope.TenantID, id, active); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("user")
		}
		return apperr.Persistence("update user", err)
	}
	return nil
}
