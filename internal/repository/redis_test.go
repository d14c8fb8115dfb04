package repository

import (
	"context"
	"testing"
	"time"

	"flexiseat/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisSessionRepository) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisSessionRepository(client)
}

func TestRedisSessionLifecycle(t *testing.T) {
	mr, repo := setupRedis(t)
	ctx := context.Background()

	session := &models.Session{
		Token:     "tok-1",
		UserID:    7,
		Email:     "lead@office.com",
		Role:      models.RoleTeamLead,
		CreatedAt: time.Now(),
	}
	err := repo.SetSession(ctx, session, time.Hour)
	require.NoError(t, err)

	found, err := repo.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), found.UserID)
	assert.Equal(t, models.RoleTeamLead, found.Role)

	// TTL expiry
	mr.FastForward(2 * time.Hour)
	_, err = repo.GetSession(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionDelete(t *testing.T) {
	_, repo := setupRedis(t)
	ctx := context.Background()

	session := &models.Session{Token: "tok-2", UserID: 1}
	require.NoError(t, repo.SetSession(ctx, session, time.Hour))
	require.NoError(t, repo.DeleteSession(ctx, "tok-2"))

	_, err := repo.GetSession(ctx, "tok-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisRateLimit(t *testing.T) {
	mr, repo := setupRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Window reset
	mr.FastForward(2 * time.Minute)
	allowed, err = repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisNilClient(t *testing.T) {
	repo := NewRedisSessionRepository(nil)
	ctx := context.Background()

	assert.Error(t, repo.SetSession(ctx, &models.Session{Token: "x"}, time.Hour))
	_, err := repo.GetSession(ctx, "x")
	assert.Error(t, err)
}
