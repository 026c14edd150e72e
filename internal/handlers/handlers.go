// Package handlers implements the Telegram commands of the bot.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/service"
	"github.com/Kerhoff/carecircle/internal/telegram"
)

const notLinkedText = "🔗 Your Telegram account is not linked to a care circle yet. Ask a circle owner to add you."

func reply(bot telegram.Sender, chatID int64, text string) error {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// linkedUser resolves the sender of a message. A nil user with a nil error
// means the account is not linked; the caller has already been told.
func linkedUser(ctx context.Context, svc *service.Service, bot telegram.Sender, chatID, telegramID int64) (*models.User, error) {
	user, err := svc.UserByTelegramID(ctx, telegramID)
	if errors.Is(err, service.ErrUserNotFound) {
		return nil, reply(bot, chatID, notLinkedText)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func parseTaskID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

// describeTaskError turns a refused task action into a user facing line,
// or returns false for errors that are not the user's fault.
func describeTaskError(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return "❓ Task not found.", true
	case errors.Is(err, service.ErrForbidden):
		return "🚫 You can't do that for this task.", true
	case errors.Is(err, service.ErrAlreadyCompleted):
		return "☑️ That task is already done.", true
	default:
		return "", false
	}
}
