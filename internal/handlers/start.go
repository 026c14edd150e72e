package handlers

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/service"
	"github.com/Kerhoff/carecircle/internal/telegram"
)

// StartHandler handles the /start command. It enrols the chat as the
// sender's push endpoint.
type StartHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{svc: svc, logger: logger}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := h.svc.RegisterPush(ctx, message.From.ID, message.Chat.ID)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return reply(bot, message.Chat.ID, notLinkedText)
	case errors.Is(err, service.ErrNoCircle):
		return reply(bot, message.Chat.ID, "🏠 You are not an active member of a care circle.")
	case err != nil:
		return fmt.Errorf("register push: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": user.ID,
	}).Info("Chat subscribed to alerts")

	return reply(bot, message.Chat.ID, fmt.Sprintf(
		"👋 Hi %s! This chat will now receive your circle's reminders and alerts.\nUse /help to see what I can do.",
		user.DisplayName()))
}
