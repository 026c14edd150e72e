package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/service"
	"github.com/Kerhoff/carecircle/internal/telegram"
)

// ---------------------------------------------------------------------------
// TasksHandler – /tasks
// ---------------------------------------------------------------------------

// TasksHandler lists the open tasks of the sender's circle
type TasksHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewTasksHandler creates a new TasksHandler.
func NewTasksHandler(svc *service.Service, logger *logrus.Logger) *TasksHandler {
	return &TasksHandler{svc: svc, logger: logger}
}

// Handle processes the /tasks command.
func (h *TasksHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := linkedUser(ctx, h.svc, bot, message.Chat.ID, message.From.ID)
	if user == nil || err != nil {
		return err
	}
	if user.CircleID == nil {
		return reply(bot, message.Chat.ID, "🏠 You are not in a care circle.")
	}

	tasks, err := h.svc.VisibleTasks(ctx, user.ID, *user.CircleID)
	if err != nil {
		if text, ok := describeTaskError(err); ok {
			return reply(bot, message.Chat.ID, text)
		}
		return fmt.Errorf("list tasks: %w", err)
	}

	var sb strings.Builder
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		sb.WriteString(formatTask(t))
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return reply(bot, message.Chat.ID, "📋 No open tasks!")
	}
	return reply(bot, message.Chat.ID, "📋 Open tasks\n\n"+sb.String())
}

func formatTask(t *models.Task) string {
	line := fmt.Sprintf("#%d %s", t.ID, t.Title)
	if t.Due != nil {
		line += " · due " + t.Due.Format("Mon 02 Jan 15:04")
	}
	if t.IsAcknowledged() {
		line += " · ✅ acked"
	} else if t.Escalatable() {
		line += " · ⏳ needs ack"
	}
	return line
}

// ---------------------------------------------------------------------------
// AckHandler – /ack <id> and the Acknowledge button
// ---------------------------------------------------------------------------

// AckHandler acknowledges a task on behalf of the sender
type AckHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewAckHandler creates a new AckHandler.
func NewAckHandler(svc *service.Service, logger *logrus.Logger) *AckHandler {
	return &AckHandler{svc: svc, logger: logger}
}

// Handle processes the /ack command.
func (h *AckHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message.Chat.ID, "❌ Please provide a task ID.\nUsage: /ack 12")
	}
	id, ok := parseTaskID(args[0])
	if !ok {
		return reply(bot, message.Chat.ID, "❌ Invalid task ID.")
	}

	ctx := context.Background()
	user, err := linkedUser(ctx, h.svc, bot, message.Chat.ID, message.From.ID)
	if user == nil || err != nil {
		return err
	}

	text, err := h.ack(ctx, id, user)
	if err != nil {
		return err
	}
	return reply(bot, message.Chat.ID, text)
}

// HandleCallback processes a press of the Acknowledge button
func (h *AckHandler) HandleCallback(bot telegram.Sender, query *tgbotapi.CallbackQuery, data string) (string, error) {
	id, ok := parseTaskID(data)
	if !ok {
		return "❌ Invalid task", nil
	}

	ctx := context.Background()
	user, err := h.svc.UserByTelegramID(ctx, query.From.ID)
	if errors.Is(err, service.ErrUserNotFound) {
		return notLinkedText, nil
	}
	if err != nil {
		return "", err
	}
	return h.ack(ctx, id, user)
}

func (h *AckHandler) ack(ctx context.Context, taskID int64, user *models.User) (string, error) {
	task, err := h.svc.AcknowledgeTask(ctx, taskID, user.ID, "")
	if err != nil {
		if text, ok := describeTaskError(err); ok {
			return text, nil
		}
		return "", fmt.Errorf("acknowledge task: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"user_id": user.ID,
	}).Info("Task acknowledged via Telegram")
	return fmt.Sprintf("✅ Acknowledged #%d %s", task.ID, task.Title), nil
}

// ---------------------------------------------------------------------------
// DoneHandler – /done <id>
// ---------------------------------------------------------------------------

// DoneHandler completes a task on behalf of the sender
type DoneHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDoneHandler creates a new DoneHandler.
func NewDoneHandler(svc *service.Service, logger *logrus.Logger) *DoneHandler {
	return &DoneHandler{svc: svc, logger: logger}
}

// Handle processes the /done command.
func (h *DoneHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message.Chat.ID, "❌ Please provide a task ID.\nUsage: /done 12")
	}
	id, ok := parseTaskID(args[0])
	if !ok {
		return reply(bot, message.Chat.ID, "❌ Invalid task ID.")
	}

	ctx := context.Background()
	user, err := linkedUser(ctx, h.svc, bot, message.Chat.ID, message.From.ID)
	if user == nil || err != nil {
		return err
	}

	task, next, err := h.svc.CompleteTask(ctx, id, user.ID)
	if err != nil {
		if text, ok := describeTaskError(err); ok {
			return reply(bot, message.Chat.ID, text)
		}
		return fmt.Errorf("complete task: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"user_id": user.ID,
	}).Info("Task completed via Telegram")

	text := fmt.Sprintf("🎉 Completed #%d %s", task.ID, task.Title)
	if next != nil {
		text += "\n🔁 Next: " + formatTask(next)
	}
	return reply(bot, message.Chat.ID, text)
}
