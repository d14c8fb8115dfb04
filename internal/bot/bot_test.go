package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flexiseat/internal/config"
	"flexiseat/internal/database"
	"flexiseat/internal/domain"
	"flexiseat/internal/models"
	"flexiseat/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadChatID int64 = 500

type fakeTelegram struct {
	domain.TelegramSender
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "flexiseat_test_bot"}
}

type botEnv struct {
	db     *database.DB
	tg     *fakeTelegram
	bot    *Bot
	member *models.User
}

func setupBot(t *testing.T) *botEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bot.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetDesks([]models.Desk{
		{ID: "A-1", Zone: "Creative Hub", Level: 3},
	})

	directory := service.NewDirectoryService(db, nil, models.DefaultSuperAdminEmail, &logger)
	require.NoError(t, directory.EnsureSuperAdmin(context.Background(), ""))

	member := &models.User{Name: "Alex Chen", Email: "alex@office.com", Role: models.RoleMember, PasswordHash: "x"}
	require.NoError(t, db.CreateUser(context.Background(), member))

	cfg := &config.Config{
		Telegram: config.TelegramConfig{LeadChat: []int64{leadChatID}},
		Auth:     config.AuthConfig{SuperAdminEmail: models.DefaultSuperAdminEmail},
		Bot:      config.BotConfig{PollInterval: 1},
	}

	tg := &fakeTelegram{}
	bookings := service.NewBookingService(db, nil, nil, &logger)
	b := NewBot(tg, cfg, db, bookings, &logger)

	return &botEnv{db: db, tg: tg, bot: b, member: member}
}

func (e *botEnv) pendingBooking(t *testing.T) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		MemberID:    e.member.ID,
		MemberName:  e.member.Name,
		MemberRole:  e.member.Role,
		DeskID:      "A-1",
		Zone:        "Creative Hub",
		Level:       3,
		Status:      models.StatusPending,
		BookingDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.db.CreateBooking(context.Background(), booking))
	return booking
}

func callbackUpdate(data string, chatID int64) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			From: &tgbotapi.User{ID: 42},
			Message: &tgbotapi.Message{
				MessageID: 7,
				Chat:      &tgbotapi.Chat{ID: chatID},
			},
		},
	}
}

func TestCallbackAccept(t *testing.T) {
	env := setupBot(t)
	booking := env.pendingBooking(t)

	env.bot.processUpdate(context.Background(), callbackUpdate("approve_1", leadChatID))

	stored, err := env.db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, stored.Status)

	// Callback is answered and the card is edited with the outcome.
	assert.Len(t, env.tg.requests, 1)
	require.Len(t, env.tg.sent, 1)
	edit, ok := env.tg.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "accepted")
	assert.Contains(t, edit.Text, "Alex Chen")
}

func TestCallbackReject(t *testing.T) {
	env := setupBot(t)
	booking := env.pendingBooking(t)

	env.bot.processUpdate(context.Background(), callbackUpdate("reject_1", leadChatID))

	// Rejection removes the row entirely.
	_, err := env.db.GetBooking(context.Background(), booking.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCallbackUnknownBooking(t *testing.T) {
	env := setupBot(t)

	env.bot.processUpdate(context.Background(), callbackUpdate("approve_999", leadChatID))

	require.Len(t, env.tg.sent, 1)
	edit, ok := env.tg.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "no longer exists")
}

func TestCallbackFromForeignChat(t *testing.T) {
	env := setupBot(t)
	booking := env.pendingBooking(t)

	env.bot.processUpdate(context.Background(), callbackUpdate("approve_1", 12345))

	stored, err := env.db.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, env.tg.sent)
}

func TestAnnouncePendingOnce(t *testing.T) {
	env := setupBot(t)
	env.pendingBooking(t)

	env.bot.announcePending(context.Background())
	require.Len(t, env.tg.sent, 1)

	msg, ok := env.tg.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, leadChatID, msg.ChatID)
	assert.Contains(t, msg.Text, "Desk request")
	assert.Contains(t, msg.Text, "A-1")

	// A second scan must not repeat the announcement.
	env.bot.announcePending(context.Background())
	assert.Len(t, env.tg.sent, 1)
}

func TestPendingCommand(t *testing.T) {
	env := setupBot(t)
	env.pendingBooking(t)

	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "/pending",
			Chat: &tgbotapi.Chat{ID: leadChatID},
			From: &tgbotapi.User{ID: 42},
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len("/pending")},
			},
		},
	}
	env.bot.processUpdate(context.Background(), update)

	require.Len(t, env.tg.sent, 1)
	msg := env.tg.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Alex Chen")
}

func TestStatsCommand(t *testing.T) {
	env := setupBot(t)
	env.pendingBooking(t)

	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "/stats",
			Chat: &tgbotapi.Chat{ID: leadChatID},
			From: &tgbotapi.User{ID: 42},
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len("/stats")},
			},
		},
	}
	env.bot.processUpdate(context.Background(), update)

	require.Len(t, env.tg.sent, 1)
	msg := env.tg.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Total: 1")
	assert.Contains(t, msg.Text, "Pending: 1")
}

func TestTimeUntilReminder(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	// Minutes count: 09:30 from 08:00 is an hour and a half away
	assert.Equal(t, 90*time.Minute, timeUntilReminder(now, 9, 30))

	// Already past today, fires tomorrow
	assert.Equal(t, 23*time.Hour+30*time.Minute, timeUntilReminder(now.Add(2*time.Hour), 9, 30))
}

func TestFormatBookingCard(t *testing.T) {
	booking := &models.Booking{
		ID:          9,
		MemberName:  "Alex Chen",
		MemberRole:  models.RoleMember,
		DeskID:      "A-1",
		Zone:        "Creative Hub",
		Level:       3,
		BookingDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC),
	}

	card := formatBookingCard(booking)
	for _, want := range []string{"#9", "Alex Chen", "A-1", "Creative Hub", "level 3", "01.09.2026"} {
		assert.True(t, strings.Contains(card, want), "card missing %q:\n%s", want, card)
	}
}
