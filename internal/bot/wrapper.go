package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// APIWrapper adapts *tgbotapi.BotAPI to domain.TelegramSender.
type APIWrapper struct {
	*tgbotapi.BotAPI
}

func NewAPIWrapper(api *tgbotapi.BotAPI) *APIWrapper {
	return &APIWrapper{BotAPI: api}
}

func (w *APIWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

func (w *APIWrapper) StopReceivingUpdates() {
	w.BotAPI.StopReceivingUpdates()
}
