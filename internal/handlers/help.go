package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/telegram"
)

const helpText = `📚 CareCircle Help

• /start - Receive your circle's alerts in this chat
• /tasks - Show open tasks you can see
• /ack <id> - Acknowledge a task
• /done <id> - Mark a task as completed
• /help - Show this help message

Reminder messages carry an Acknowledge button too.`

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if err := reply(bot, message.Chat.ID, helpText); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")
	return nil
}
