package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	telegoapi "help112-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) HandleMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	return m.Called(ctx, bot, message).Error(0)
}

func (m *MockHandler) HandleCallback(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	return m.Called(ctx, bot, query).Error(0)
}

// --- Tests ---

func newTestBot(t *testing.T, api *MockBot, handler UpdateHandler, updates chan telego.Update, commands []telego.BotCommand) (*Bot, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	b, err := New(BotDeps{Bot: api, UpdatesChan: updates, Handler: handler, Commands: commands, Logger: logger})
	require.NoError(t, err)
	return b, hook
}

func TestStart_DispatchesUpdates(t *testing.T) {
	api := new(MockBot)
	handler := new(MockHandler)
	updates := make(chan telego.Update, 3)
	commands := []telego.BotCommand{{Command: "start", Description: "Start"}}
	b, _ := newTestBot(t, api, handler, updates, commands)

	api.On("SetMyCommands", mock.Anything, &telego.SetMyCommandsParams{Commands: commands}).Return(nil).Once()
	msg := telego.Message{MessageID: 1, From: &telego.User{ID: 5}, Text: "/start"}
	query := telego.CallbackQuery{ID: "q", From: telego.User{ID: 5}, Data: "med"}
	handler.On("HandleMessage", mock.Anything, mock.Anything, msg).Return(nil).Once()
	handler.On("HandleCallback", mock.Anything, mock.Anything, query).Return(errors.New("boom")).Once()

	updates <- telego.Update{UpdateID: 1, Message: &msg}
	updates <- telego.Update{UpdateID: 2, CallbackQuery: &query}
	updates <- telego.Update{UpdateID: 3}
	close(updates)

	b.Start(context.Background())

	api.AssertExpectations(t)
	handler.AssertExpectations(t)
}

func TestStart_HandlersGetDeadline(t *testing.T) {
	api := new(MockBot)
	handler := new(MockHandler)
	updates := make(chan telego.Update, 1)
	b, _ := newTestBot(t, api, handler, updates, nil)

	msg := telego.Message{MessageID: 1, From: &telego.User{ID: 5}}
	handler.On("HandleMessage", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything, msg).Return(nil).Once()

	updates <- telego.Update{Message: &msg}
	close(updates)
	b.Start(context.Background())

	handler.AssertExpectations(t)
	api.AssertNotCalled(t, "SetMyCommands", mock.Anything, mock.Anything)
}

type panicHandler struct {
	calls atomic.Int32
}

func (p *panicHandler) HandleMessage(context.Context, telegoapi.BotAPI, telego.Message) error {
	if p.calls.Add(1) == 1 {
		panic("handler exploded")
	}
	return nil
}

func (p *panicHandler) HandleCallback(context.Context, telegoapi.BotAPI, telego.CallbackQuery) error {
	return nil
}

func TestStart_RecoversFromPanics(t *testing.T) {
	api := new(MockBot)
	handler := &panicHandler{}
	updates := make(chan telego.Update, 2)
	b, hook := newTestBot(t, api, handler, updates, nil)

	updates <- telego.Update{UpdateID: 1, Message: &telego.Message{From: &telego.User{ID: 1}}}
	updates <- telego.Update{UpdateID: 2, Message: &telego.Message{From: &telego.User{ID: 1}}}
	close(updates)

	assert.NotPanics(t, func() { b.Start(context.Background()) })
	assert.Equal(t, int32(2), handler.calls.Load())

	var sawPanic bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "PANIC recovered in processUpdate: handler exploded" {
			sawPanic = true
		}
	}
	assert.True(t, sawPanic)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	api := new(MockBot)
	handler := new(MockHandler)
	updates := make(chan telego.Update)
	b, _ := newTestBot(t, api, handler, updates, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	b.Stop()
}

func TestStart_CommandMenuFailureIsNotFatal(t *testing.T) {
	api := new(MockBot)
	handler := new(MockHandler)
	updates := make(chan telego.Update)
	close(updates)
	b, hook := newTestBot(t, api, handler, updates, []telego.BotCommand{{Command: "help", Description: "Help"}})
	api.On("SetMyCommands", mock.Anything, mock.Anything).Return(errors.New("unauthorized")).Once()

	b.Start(context.Background())

	api.AssertExpectations(t)
	assert.Equal(t, logrus.WarnLevel, hook.AllEntries()[0].Level)
}

func TestNew_ValidatesDeps(t *testing.T) {
	_, err := New(BotDeps{})
	assert.Error(t, err)
}
