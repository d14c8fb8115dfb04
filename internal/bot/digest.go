package bot

import (
	"context"
	"fmt"
	"time"

	"flexiseat/internal/models"
)

// StartPendingWatch polls for new pending bookings and pushes a request
// card to every lead chat. Poll interval comes from bot config.
func (b *Bot) StartPendingWatch(ctx context.Context) {
	if b == nil || b.tg == nil {
		return
	}

	interval := time.Duration(b.cfg.Bot.PollInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.announcePending(ctx)
			}
		}
	}()
}

func (b *Bot) announcePending(ctx context.Context) {
	pending, err := b.repo.ListBookingsByStatus(ctx, models.StatusPending)
	if err != nil {
		b.logger.Error().Err(err).Msg("pending watch: list error")
		return
	}

	for _, booking := range pending {
		if !b.markNotified(booking.ID) {
			continue
		}
		for _, chatID := range b.cfg.Telegram.LeadChat {
			b.sendBookingCard(chatID, booking)
		}
	}
}

// StartReminders schedules a daily digest of requests still waiting for
// a decision.
func (b *Bot) StartReminders(ctx context.Context) {
	if b == nil || b.tg == nil {
		return
	}

	go func() {
		hour, minute := models.ReminderHour, 0
		if b.cfg.Bot.ReminderTime != "" {
			if _, err := fmt.Sscanf(b.cfg.Bot.ReminderTime, "%d:%d", &hour, &minute); err != nil {
				b.logger.Error().Err(err).Str("reminder_time", b.cfg.Bot.ReminderTime).Msg("Invalid reminder time format")
				return
			}
		}

		// First wait until the next reminder time, then tick every 24h.
		timer := time.NewTimer(timeUntilReminder(time.Now(), hour, minute))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendPendingDigest(ctx)
				timer.Reset(24 * time.Hour)
			}
		}
	}()
}

func (b *Bot) sendPendingDigest(ctx context.Context) {
	pending, err := b.repo.ListBookingsByStatus(ctx, models.StatusPending)
	if err != nil {
		b.logger.Error().Err(err).Msg("reminder: list pending error")
		return
	}
	if len(pending) == 0 {
		return
	}

	text := fmt.Sprintf("⏳ %d desk request(s) are still waiting for a decision. Use /pending to review them.", len(pending))
	for _, chatID := range b.cfg.Telegram.LeadChat {
		b.sendText(chatID, text)
	}
}

func timeUntilReminder(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
