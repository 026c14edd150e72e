package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Router handles message routing and command parsing
type Router struct {
	logger    *logrus.Logger
	handlers  map[string]CommandHandler
	callbacks map[string]CallbackHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot Sender, message *tgbotapi.Message, args []string) error
}

// CallbackHandler handles an inline keyboard press. data is the callback
// payload with the routing prefix removed. The returned text is shown to
// the user as a toast.
type CallbackHandler interface {
	HandleCallback(bot Sender, query *tgbotapi.CallbackQuery, data string) (string, error)
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:    logger,
		handlers:  make(map[string]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterCallback registers a callback handler for a data prefix
func (r *Router) RegisterCallback(prefix string, handler CallbackHandler) {
	r.callbacks[prefix] = handler
	r.logger.Debugf("Registered callback: %s", prefix)
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot Sender, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"chat_id":    message.Chat.ID,
		"user_id":    message.From.ID,
		"username":   message.From.UserName,
		"message_id": message.MessageID,
	}).Info("Received message")

	// Only text commands are routed
	if message.Text == "" || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	handler, exists := r.handlers[command]
	if !exists {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Warn("Unknown command")

		_ = sendMessage(bot, message.Chat.ID, "❓ Unknown command. Use /help to see available commands.", nil)
		return
	}

	if err := handler.Handle(bot, message, args); err != nil {
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).WithError(err).Error("Command handler failed")

		_ = sendMessage(bot, message.Chat.ID, "❌ An error occurred while processing your command. Please try again.", nil)
	}
}

// HandleCallbackQuery routes a button press by the prefix of its data
// ("prefix:rest") and answers the query.
func (r *Router) HandleCallbackQuery(bot Sender, query *tgbotapi.CallbackQuery) {
	log := r.logger.WithFields(logrus.Fields{
		"callback_id": query.ID,
		"user_id":     query.From.ID,
		"data":        query.Data,
	})
	log.Info("Received callback query")

	answer := ""
	prefix, data, _ := strings.Cut(query.Data, ":")
	if handler, ok := r.callbacks[prefix]; ok {
		text, err := handler.HandleCallback(bot, query, data)
		if err != nil {
			log.WithError(err).Error("Callback handler failed")
			text = "❌ Something went wrong"
		}
		answer = text
	} else {
		log.Warn("Unknown callback")
	}

	if _, err := bot.Request(tgbotapi.NewCallback(query.ID, answer)); err != nil {
		log.WithError(err).Warn("Failed to answer callback query")
	}
}
