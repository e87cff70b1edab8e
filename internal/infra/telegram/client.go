// internal/infra/telegram/client.go
package telegram

import (
	domainTelegram "hifz_attendance_notifier/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

var _ domainTelegram.Client = (*TelebotAdapter)(nil)

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendText sends a plain text message to the given chat (user or group).
func (tba *TelebotAdapter) SendText(chatID int64, text string) error {
	_, err := tba.bot.Send(&telebot.Chat{ID: chatID}, text)
	return err
}
