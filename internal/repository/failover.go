package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"flexiseat/internal/domain"
	"flexiseat/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSessionRepository prefers the primary (Redis) store and
// drops to the in-memory fallback when it errors. The primary gets
// retried a minute after the last failure.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary session store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSessionRepository) primaryUsable() bool {
	if !r.isDown.Load() {
		return true
	}
	if time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		r.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (r *FailoverSessionRepository) SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	if r.primaryUsable() {
		if err := r.primary.SetSession(ctx, session, ttl); err == nil {
			r.isDown.Store(false)
			// Mirror into the fallback so sessions survive a later outage.
			_ = r.fallback.SetSession(ctx, session, ttl)
			return nil
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.SetSession(ctx, session, ttl)
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if r.primaryUsable() {
		session, err := r.primary.GetSession(ctx, token)
		if err == nil {
			r.isDown.Store(false)
			return session, nil
		}
		if errors.Is(err, ErrSessionNotFound) {
			r.isDown.Store(false)
			return r.fallback.GetSession(ctx, token)
		}
		r.markDown(err)
	}
	return r.fallback.GetSession(ctx, token)
}

func (r *FailoverSessionRepository) DeleteSession(ctx context.Context, token string) error {
	if r.primaryUsable() {
		if err := r.primary.DeleteSession(ctx, token); err == nil {
			r.isDown.Store(false)
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.DeleteSession(ctx, token)
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.primaryUsable() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
