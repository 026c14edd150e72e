package telegram

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository/memory"
)

type sentMessage struct {
	chatID int64
	text   string
	markup *tgbotapi.InlineKeyboardMarkup
}

type fakeMessageSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[int64]bool
}

func (f *fakeMessageSender) SendMessage(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[chatID] {
		return errors.New("chat not found")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, markup: markup})
	return nil
}

// fakeAPI records everything the router sends through the Bot API.
type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPushSinkDeliversToAllowedChats(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Open())
	for _, sub := range []models.PushSubscription{
		{CircleID: 1, UserID: 10, ChatID: 100},
		{CircleID: 1, UserID: 11, ChatID: 110},
		{CircleID: 2, UserID: 12, ChatID: 120},
	} {
		_, err := store.Push.Upsert(ctx, &sub)
		require.NoError(t, err)
	}

	sender := &fakeMessageSender{}
	sink := NewPushSink(sender, store.Push)
	assert.Equal(t, "telegram", sink.Name())

	n := models.NewNotification(1, models.KindMinorPing, "Reminder 1", models.TaskStagePayload{TaskID: 42}, nil, time.Now())
	err := sink.Deliver(ctx, n, func(userID int64) bool { return userID == 10 })
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(100), sender.sent[0].chatID)
	assert.Equal(t, "Reminder 1", sender.sent[0].text)
	require.NotNil(t, sender.sent[0].markup)
	assert.Equal(t, "ack:42", *sender.sent[0].markup.InlineKeyboard[0][0].CallbackData)
}

func TestPushSinkCollectsErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.Open())
	for _, chat := range []int64{100, 110} {
		_, err := store.Push.Upsert(ctx, &models.PushSubscription{CircleID: 1, UserID: chat, ChatID: chat})
		require.NoError(t, err)
	}

	sender := &fakeMessageSender{failOn: map[int64]bool{100: true}}
	sink := NewPushSink(sender, store.Push)

	n := models.NewNotification(1, models.KindGeofenceEnter, "Sam arrived", models.GeofencePayload{FenceID: 1}, nil, time.Now())
	err := sink.Deliver(ctx, n, func(int64) bool { return true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 100")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(110), sender.sent[0].chatID)
	assert.Nil(t, sender.sent[0].markup)
}

type recordingCommand struct {
	args []string
	err  error
}

func (c *recordingCommand) Handle(_ Sender, _ *tgbotapi.Message, args []string) error {
	c.args = args
	return c.err
}

func command(text string) *tgbotapi.Message {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: 99},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func TestRouterDispatchesCommands(t *testing.T) {
	r := NewRouter(quietLogger())
	ack := &recordingCommand{}
	r.RegisterCommand("ack", ack)

	api := &fakeAPI{}
	r.HandleMessage(api, command("/ack 12"))
	assert.Equal(t, []string{"12"}, ack.args)
	assert.Empty(t, api.sent)

	r.HandleMessage(api, command("/nope"))
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].(tgbotapi.MessageConfig).Text, "Unknown command")

	ack.err = errors.New("boom")
	r.HandleMessage(api, command("/ack 3"))
	require.Len(t, api.sent, 2)
	assert.Contains(t, api.sent[1].(tgbotapi.MessageConfig).Text, "An error occurred")
}

type recordingCallback struct{ data string }

func (c *recordingCallback) HandleCallback(_ Sender, _ *tgbotapi.CallbackQuery, data string) (string, error) {
	c.data = data
	return "done", nil
}

func TestRouterRoutesCallbacks(t *testing.T) {
	r := NewRouter(quietLogger())
	cb := &recordingCallback{}
	r.RegisterCallback(AckCallbackPrefix, cb)

	api := &fakeAPI{}
	r.HandleCallbackQuery(api, &tgbotapi.CallbackQuery{ID: "q1", From: &tgbotapi.User{ID: 7}, Data: "ack:42"})
	assert.Equal(t, "42", cb.data)
	require.Len(t, api.requests, 1)
	assert.Equal(t, "done", api.requests[0].(tgbotapi.CallbackConfig).Text)

	r.HandleCallbackQuery(api, &tgbotapi.CallbackQuery{ID: "q2", From: &tgbotapi.User{ID: 7}, Data: "other:1"})
	require.Len(t, api.requests, 2)
	assert.Equal(t, "", api.requests[1].(tgbotapi.CallbackConfig).Text)
}
