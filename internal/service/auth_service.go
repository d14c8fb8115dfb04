package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flexiseat/internal/database"
	"flexiseat/internal/domain"
	"flexiseat/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	repo     domain.Repository
	sessions domain.SessionRepository
	ttl      time.Duration
	logger   *zerolog.Logger
}

func NewAuthService(repo domain.Repository, sessions domain.SessionRepository, ttlSeconds int, logger *zerolog.Logger) *AuthService {
	if ttlSeconds <= 0 {
		ttlSeconds = models.DefaultSessionTTL
	}
	return &AuthService{
		repo:     repo,
		sessions: sessions,
		ttl:      time.Duration(ttlSeconds) * time.Second,
		logger:   logger,
	}
}

// Login verifies the credentials and opens a session. The same error
// comes back for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	if email == "" || password == "" {
		return nil, nil, validationf("email and password are required")
	}

	// Throttle per email so a password-guessing loop burns out fast.
	allowed, rlErr := s.sessions.CheckRateLimit(ctx, "login:"+email, models.RateLimitRequests, models.RateLimitWindow*time.Second)
	if rlErr != nil {
		s.logger.Warn().Err(rlErr).Msg("rate limit check failed")
	} else if !allowed {
		s.logger.Warn().Str("email", email).Msg("login throttled")
		return nil, nil, permissionf("too many login attempts, try again later")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, permissionf("invalid credentials")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.logger.Warn().Str("email", email).Msg("login rejected")
		return nil, nil, permissionf("invalid credentials")
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.SetSession(ctx, session, s.ttl); err != nil {
		return nil, nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("login")
	return session, user, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return validationf("token is required")
	}
	return s.sessions.DeleteSession(ctx, token)
}

// Resolve maps a token back to its session, or ErrNotFound when the
// session expired or never existed.
func (s *AuthService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, notFoundf("session not found")
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, notFoundf("session not found")
	}
	return session, nil
}

// HashPassword wraps bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
