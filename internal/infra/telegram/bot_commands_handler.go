// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const staffHelp = `Attendance commands:
/roster <class_id> - students not yet marked today
/absent <class_id> <student_id> - mark absent and notify the family
/present <class_id> <student_id> [note] - mark present
/absent_all <class_id> - mark everyone left absent (asks for confirmation)`

// RegisterBotCommands registers /start and /help.
func RegisterBotCommands(b *telebot.Bot, staffIDs map[int64]uuid.UUID, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if _, ok := staffIDs[senderID]; ok {
			logCtx.Info("User identified as staff")
			return c.Send(fmt.Sprintf("Assalamu alaikum, %s! Use /help to see the attendance commands.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send(fmt.Sprintf("Assalamu alaikum! This bot is for teaching staff. Ask an administrator to register your Telegram ID (%d).", senderID))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID).Info("Processing /help command")

		if _, ok := staffIDs[senderID]; ok {
			return c.Send(staffHelp)
		}
		return c.Send("This bot is for teaching staff only.")
	})
}
