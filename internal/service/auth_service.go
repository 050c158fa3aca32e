package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/service-ticket/internal/auth"
	"github.com/spec-kit/service-ticket/internal/config"
	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/repository"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

const minUsernameLength = 3

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr *auth.TokenManager
	hasher   *auth.PasswordHasher
	now      func() time.Time
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	// Role defaults to ASSOCIATE.
	Role domain.UserRole
}

// AuthResult is a signed-in user with its access token.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:    users,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		hasher:   auth.NewPasswordHasher(cfg.BcryptCost),
		now:      time.Now,
	}
}

// Register creates a user account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user, err := s.CreateUser(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateUser validates and stores a user without issuing a token.
func (s *AuthService) CreateUser(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	details := map[string]any{}
	if len(username) < minUsernameLength {
		details["username"] = "must be at least 3 characters"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if violation := auth.CheckPolicy(input.Password); violation != "" {
		details["password"] = violation
	}
	role := input.Role
	if role == "" {
		role = domain.UserRoleAssociate
	}
	if !role.Valid() {
		details["role"] = "must be ASSOCIATE or MANAGER"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", details)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewStoreFailure("failed to look up user", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.NewConflict("username or email already registered", nil)
		}
		return nil, apperrors.NewStoreFailure("failed to create user", err)
	}
	return user, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.NewStoreFailure("failed to look up user", err)
	}
	if err := s.hasher.Verify(user.PasswordHash, password); errors.Is(err, auth.ErrPasswordMismatch) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	} else if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return s.issue(user)
}

// Me returns the user behind an authenticated principal.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", nil)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailure("failed to load user", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
