package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-multierror"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

// AckCallbackPrefix routes presses of the acknowledge button
const AckCallbackPrefix = "ack"

// MessageSender sends one chat message. *Bot satisfies it.
type MessageSender interface {
	SendMessage(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error
}

// PushSink delivers notifications to every registered Telegram chat of a
// circle whose user may see them.
type PushSink struct {
	sender MessageSender
	push   repository.PushRepository
}

// NewPushSink creates a Telegram push sink
func NewPushSink(sender MessageSender, push repository.PushRepository) *PushSink {
	return &PushSink{sender: sender, push: push}
}

// Name implements fanout.Sink
func (s *PushSink) Name() string { return "telegram" }

// Deliver implements fanout.Sink
func (s *PushSink) Deliver(ctx context.Context, n models.Notification, allow func(int64) bool) error {
	subs, err := s.push.ListByCircle(ctx, n.CircleID)
	if err != nil {
		return fmt.Errorf("failed to list push subscriptions for circle %d: %w", n.CircleID, err)
	}

	markup := ackKeyboard(n)

	var result *multierror.Error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		if !allow(sub.UserID) {
			continue
		}
		if err := s.sender.SendMessage(sub.ChatID, n.Message, markup); err != nil {
			result = multierror.Append(result, fmt.Errorf("chat %d: %w", sub.ChatID, err))
		}
	}
	return result.ErrorOrNil()
}

// ackKeyboard attaches an acknowledge button to prompts about a task that
// is still waiting for an ack.
func ackKeyboard(n models.Notification) *tgbotapi.InlineKeyboardMarkup {
	var taskID int64
	switch p := n.Payload.(type) {
	case models.TaskStagePayload:
		taskID = p.TaskID
	case models.ReminderPayload:
		taskID = p.TaskID
	default:
		return nil
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Acknowledge", AckCallbackPrefix+":"+strconv.FormatInt(taskID, 10)),
		),
	)
	return &kb
}
