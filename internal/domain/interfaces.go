package domain

import (
	"context"
	"time"

	"flexiseat/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]*models.User, error)
	ListTeamMembers(ctx context.Context, leadID int64) ([]*models.User, error)
	HasTeamMembers(ctx context.Context, leadID int64) (bool, error)
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) error
	SetTeamLead(ctx context.Context, memberID int64, leadID *int64) error
	DeleteUser(ctx context.Context, id int64) error

	CreateBooking(ctx context.Context, booking *models.Booking) error
	CreateBookings(ctx context.Context, bookings []*models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	ListBookingsByMember(ctx context.Context, memberID int64) ([]*models.Booking, error)
	ListBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error)
	AcceptedBookingsByLevel(ctx context.Context, level int, date time.Time) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
	DeleteBooking(ctx context.Context, id int64) error

	CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error
	ListAuditRecords(ctx context.Context, bookingID int64) ([]*models.AuditRecord, error)

	SetDesks(desks []models.Desk)
	GetDesks() []models.Desk
	GetDesk(id string) (models.Desk, bool)
	DesksByLevel(level int) []models.Desk
	Levels() []int
}

// SessionRepository stores login sessions keyed by opaque token.
type SessionRepository interface {
	SetSession(ctx context.Context, session *models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// SheetsWriter mirrors the booking ledger into a spreadsheet.
type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
	DeleteBooking(ctx context.Context, bookingID int64) error
	ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.Session, *models.User, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

type BookingService interface {
	CreateAssignments(ctx context.Context, actor *models.User, assignees map[string]int64, dates []time.Time) ([]*models.Booking, error)
	Decide(ctx context.Context, actor *models.User, bookingID int64, accept bool) (*models.Booking, error)
	Revoke(ctx context.Context, actor *models.User, bookingID int64, reason string) error
	ComputeOccupancy(ctx context.Context, level int, date time.Time) (map[string]*models.Booking, error)
	ListBookings(ctx context.Context, actor *models.User) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	Stats(ctx context.Context) (*models.BookingStats, error)
}

type DirectoryService interface {
	CreateUser(ctx context.Context, actor *models.User, name, email, role, password string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, actor *models.User, id int64, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, actor *models.User, id int64) error
	SetRole(ctx context.Context, actor *models.User, userID int64, role string) (*models.User, error)
	AssignMembers(ctx context.Context, actor *models.User, leadID int64, memberIDs []int64) ([]*models.User, error)
	TeamOf(ctx context.Context, leadID int64) ([]*models.User, error)
}
