package bot

import (
	"context"
	"os"
	"sync"
	"time"

	"flexiseat/internal/config"
	"flexiseat/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bot forwards pending bookings to the configured lead chats and lets
// them accept or reject with inline buttons. Decisions go through the
// same service path as the HTTP API, so the audit log and the Sheets
// mirror stay consistent.
type Bot struct {
	tg       domain.TelegramSender
	cfg      *config.Config
	repo     domain.Repository
	bookings domain.BookingService
	logger   *zerolog.Logger

	mu       sync.Mutex
	notified map[int64]bool // booking ids already announced to lead chats
}

func NewBot(
	tg domain.TelegramSender,
	cfg *config.Config,
	repo domain.Repository,
	bookings domain.BookingService,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tg:       tg,
		cfg:      cfg,
		repo:     repo,
		bookings: bookings,
		logger:   logger,
		notified: make(map[int64]bool),
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tg.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tg.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update)
			return
		}

		if update.Message == nil {
			return
		}

		if !b.isLeadChat(update.Message.Chat.ID) {
			return
		}

		b.handleMessage(updateCtx, update)
	})
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// isLeadChat reports whether the chat may see and decide bookings.
func (b *Bot) isLeadChat(chatID int64) bool {
	for _, id := range b.cfg.Telegram.LeadChat {
		if id == chatID {
			return true
		}
	}
	return false
}

func (b *Bot) markNotified(bookingID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notified[bookingID] {
		return false
	}
	b.notified[bookingID] = true
	return true
}

func (b *Bot) forgetNotified(bookingID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.notified, bookingID)
}
