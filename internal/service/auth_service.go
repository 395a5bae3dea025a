package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AhmadRadith/jycc-sub001/internal/auth"
	"github.com/AhmadRadith/jycc-sub001/internal/config"
	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/repository"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthService coordinates account creation and login.
type AuthService struct {
	accounts   repository.AccountRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
}

// AccountInput describes a new account.
type AccountInput struct {
	Username   string
	Password   string
	Role       string
	Name       string
	SchoolID   string
	SchoolName string
	District   string
}

// LoginResult is an issued token and the identity it carries.
type LoginResult struct {
	Identity  domain.Identity
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		accounts:   deps.AccountRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// CreateAccount registers a login for one of the actor roles.
func (s *AuthService) CreateAccount(ctx context.Context, input AccountInput) (*domain.Account, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, apperrors.NewInvalidInput("username is required", map[string]any{"field": "username"})
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewInvalidInput("password too short", map[string]any{"field": "password", "min": minPasswordLength})
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, apperrors.NewInvalidInput(err.Error(), map[string]any{"field": "role"})
	}
	if role == domain.RoleSekolah && strings.TrimSpace(input.SchoolName) == "" {
		return nil, apperrors.NewInvalidInput("school accounts need a school name", map[string]any{"field": "schoolName"})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	account := &domain.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Name:         strings.TrimSpace(input.Name),
		SchoolID:     strings.TrimSpace(input.SchoolID),
		SchoolName:   strings.TrimSpace(input.SchoolName),
		District:     strings.TrimSpace(input.District),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return nil, apperrors.NewInvalidInput("username already taken", map[string]any{"field": "username"})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return account, nil
}

// Login authenticates an account and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperrors.NewUnauthenticated("invalid credentials")
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}
	return s.IssueToken(account.Identity())
}

// IssueToken signs a token for identity.
func (s *AuthService) IssueToken(identity domain.Identity) (*LoginResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Identity: identity, Token: token, ExpiresAt: exp}, nil
}

// Account loads an account by username.
func (s *AuthService) Account(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperrors.NewNotFound("account", map[string]any{"username": username})
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	return account, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
