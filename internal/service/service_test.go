package service

import (
	"context"
	"testing"
	"time"

	"flexiseat/internal/database"
	"flexiseat/internal/events"
	"flexiseat/internal/models"
	"flexiseat/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db        *database.DB
	bus       *events.EventBus
	auth      *AuthService
	bookings  *BookingService
	directory *DirectoryService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(t.TempDir()+"/test.db", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetDesks([]models.Desk{
		{ID: "A-1", Zone: "Creative Hub", Level: 3},
		{ID: "A-2", Zone: "Creative Hub", Level: 3},
		{ID: "B-1", Zone: "Creative Hub", Level: 4},
	})

	bus := events.NewEventBus()
	sessions := repository.NewMemorySessionRepository()

	return &testEnv{
		db:        db,
		bus:       bus,
		auth:      NewAuthService(db, sessions, 3600, &logger),
		bookings:  NewBookingService(db, bus, nil, &logger),
		directory: NewDirectoryService(db, bus, models.DefaultSuperAdminEmail, &logger),
	}
}

// createUser inserts a user directly, bypassing permission checks.
func (e *testEnv) createUser(t *testing.T, name, email, role string) *models.User {
	t.Helper()

	hash, err := HashPassword(models.DefaultPassword)
	require.NoError(t, err)
	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, e.db.CreateUser(context.Background(), user))
	return user
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
