package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/ticketflow/internal/auth"
	"github.com/opsdesk/ticketflow/internal/config"
	"github.com/opsdesk/ticketflow/internal/domain"
	"github.com/opsdesk/ticketflow/internal/repository"
	apperrors "github.com/opsdesk/ticketflow/pkg/util"
)

// AuthService authenticates users and issues tokens.
type AuthService struct {
	store  repository.Store
	tokens *auth.TokenManager
	cfg    config.AuthConfig
}

// NewAuthService creates the service.
func NewAuthService(cfg config.AuthConfig, store repository.Store) *AuthService {
	return &AuthService{
		store:  store,
		tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cfg:    cfg,
	}
}

// TokenManager exposes the manager for middleware construction.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// LoginResult carries the issued token and its subject.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and issues a JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CreateUser registers a user with a hashed password. Reserved for admin
// seeding paths; there is no self-service signup.
func (s *AuthService) CreateUser(ctx context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}
	user.PasswordHash = hash
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
