package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rental-ledger/config"
	"rental-ledger/internal/database"
	"rental-ledger/internal/ledger"
	"rental-ledger/internal/logging"
)

// Service handles authentication against the users table.
type Service struct {
	repo *database.Repository
	jwt  *JWTManager
	log  *logging.Logger
}

// NewService creates an auth service.
func NewService(repo *database.Repository, cfg config.AuthConfig, log *logging.Logger) *Service {
	return &Service{
		repo: repo,
		jwt:  NewJWTManager(cfg.JWTSecret, time.Duration(cfg.AccessTokenMins)*time.Minute),
		log:  log.WithComponent("auth"),
	}
}

// JWTManager exposes the token manager for middleware wiring.
func (s *Service) JWTManager() *JWTManager {
	return s.jwt
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(UserClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user logged in")
	return &LoginResponse{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		AccessToken: token,
		ExpiresIn:   int64(s.jwt.AccessTokenDuration().Seconds()),
		TokenType:   "Bearer",
	}, nil
}

// CreateUser registers a user with the given role.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (*database.User, error) {
	if role != RoleAdmin && role != RoleAccountant {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &database.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SeedAdmin creates the configured admin account when the user table is
// empty; without it a fresh deployment has nobody able to close periods.
func (s *Service) SeedAdmin(ctx context.Context, cfg config.AuthConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	user, err := s.CreateUser(ctx, cfg.AdminEmail, cfg.AdminPassword, RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("seeded initial admin user")
	return nil
}
