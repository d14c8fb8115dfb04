package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flexiseat/internal/models"
	"flexiseat/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbApprovePrefix = "approve_"
	cbRejectPrefix  = "reject_"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start", "help":
		b.sendText(update.Message.Chat.ID, helpText)
	case "pending":
		b.sendPendingList(ctx, update.Message.Chat.ID)
	case "stats":
		b.sendStats(ctx, update.Message.Chat.ID)
	}
}

const helpText = `FlexiSeat approvals bot

/pending - list desk requests waiting for a decision
/stats - booking totals`

func (b *Bot) handleCallbackQuery(ctx context.Context, update tgbotapi.Update) {
	callback := update.CallbackQuery
	data := callback.Data

	// Отвечаем на callback сразу, чтобы убрать "часики"
	if _, err := b.tg.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Error().Err(err).Msg("Failed to answer callback")
	}

	if callback.Message == nil || !b.isLeadChat(callback.Message.Chat.ID) {
		return
	}

	switch {
	case strings.HasPrefix(data, cbApprovePrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbApprovePrefix), 10, 64)
		if err != nil {
			return
		}
		b.decideBooking(ctx, callback, id, true)

	case strings.HasPrefix(data, cbRejectPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, cbRejectPrefix), 10, 64)
		if err != nil {
			return
		}
		b.decideBooking(ctx, callback, id, false)
	}
}

func (b *Bot) decideBooking(ctx context.Context, callback *tgbotapi.CallbackQuery, bookingID int64, accept bool) {
	actor, err := b.decisionActor(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("decision actor lookup failed")
		b.sendText(callback.Message.Chat.ID, "Internal error, try again later")
		return
	}

	booking, err := b.bookings.Decide(ctx, actor, bookingID, accept)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			b.editDecided(callback, "Request no longer exists")
		case errors.Is(err, service.ErrConflict):
			b.editDecided(callback, "Request was already decided")
		default:
			b.logger.Error().Err(err).Int64("booking_id", bookingID).Bool("accept", accept).Msg("decide failed")
			b.sendText(callback.Message.Chat.ID, "Could not apply the decision")
		}
		return
	}

	b.forgetNotified(bookingID)

	verdict := "rejected"
	if accept {
		verdict = "accepted"
	}
	b.logger.Info().
		Int64("booking_id", bookingID).
		Int64("chat_id", callback.Message.Chat.ID).
		Str("verdict", verdict).
		Msg("booking decided via telegram")

	b.editDecided(callback, fmt.Sprintf("%s %s on %s for %s",
		statusEmoji(booking.Status), verdict,
		booking.BookingDate.Format("02.01.2006"), booking.MemberName))
}

// editDecided replaces the request card with the outcome and drops the buttons.
func (b *Bot) editDecided(callback *tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(callback.Message.Chat.ID, callback.Message.MessageID, text)
	if _, err := b.tg.Send(edit); err != nil {
		b.logger.Error().Err(err).Msg("Failed to edit decided message")
	}
}

// decisionActor is the identity the bot acts under. Lead chats are
// vetted in config, so decisions run with directory admin authority.
func (b *Bot) decisionActor(ctx context.Context) (*models.User, error) {
	email := b.cfg.Auth.SuperAdminEmail
	if email == "" {
		email = models.DefaultSuperAdminEmail
	}
	return b.repo.GetUserByEmail(ctx, email)
}

func (b *Bot) sendPendingList(ctx context.Context, chatID int64) {
	pending, err := b.repo.ListBookingsByStatus(ctx, models.StatusPending)
	if err != nil {
		b.logger.Error().Err(err).Msg("list pending bookings")
		b.sendText(chatID, "Could not load pending requests")
		return
	}

	if len(pending) == 0 {
		b.sendText(chatID, "No pending desk requests 🎉")
		return
	}

	for _, booking := range pending {
		b.sendBookingCard(chatID, booking)
	}
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) {
	stats, err := b.bookings.Stats(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("load stats")
		b.sendText(chatID, "Could not load stats")
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Booking stats\n\n")
	sb.WriteString(fmt.Sprintf("Total: %d\n", stats.Total))
	sb.WriteString(fmt.Sprintf("Accepted: %d\n", stats.Accepted))
	sb.WriteString(fmt.Sprintf("Pending: %d\n", stats.Pending))
	sb.WriteString(fmt.Sprintf("Accepted ratio: %d%%\n", stats.AcceptedRatio))

	if len(stats.ByWeekday) > 0 {
		sb.WriteString("\nAccepted by weekday:\n")
		order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
		for _, wd := range order {
			if n := stats.ByWeekday[int(wd)]; n > 0 {
				sb.WriteString(fmt.Sprintf("  %s: %d\n", wd, n))
			}
		}
	}

	b.sendText(chatID, sb.String())
}

// sendBookingCard sends a request card with approve/reject buttons.
func (b *Bot) sendBookingCard(chatID int64, booking *models.Booking) {
	msg := tgbotapi.NewMessage(chatID, formatBookingCard(booking))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Accept", fmt.Sprintf("%s%d", cbApprovePrefix, booking.ID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("%s%d", cbRejectPrefix, booking.ID)),
		),
	)
	msg.ReplyMarkup = &keyboard

	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send booking card")
	}
}

func formatBookingCard(booking *models.Booking) string {
	return fmt.Sprintf(`🪑 Desk request #%d

👤 %s (%s)
🗺 Desk %s, %s, level %d
📅 %s
🕐 Requested %s`,
		booking.ID,
		booking.MemberName,
		booking.MemberRole,
		booking.DeskID,
		booking.Zone,
		booking.Level,
		booking.BookingDate.Format("02.01.2006"),
		booking.CreatedAt.Format("02.01.2006 15:04"),
	)
}

func statusEmoji(status string) string {
	switch status {
	case models.StatusAccepted:
		return "✅"
	case models.StatusRejected:
		return "❌"
	default:
		return "⏳"
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
