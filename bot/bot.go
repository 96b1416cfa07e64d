package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	telegoapi "help112-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

const (
	// outgoing requests per second across all chats
	defaultGlobalRate     = 20
	defaultUpdateTimeout  = 30 * time.Second
	defaultSendMaxRetries = 3
)

// UpdateHandler processes admitted Telegram updates.
type UpdateHandler interface {
	HandleMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error
	HandleCallback(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error
}

// Bot wraps the telego library and manages the update loop. Each update is
// processed in its own goroutine under a global throttle and a deadline.
type Bot struct {
	bot           telegoapi.BotAPI
	updatesChan   <-chan telego.Update
	handler       UpdateHandler
	commands      []telego.BotCommand
	logger        logrus.FieldLogger
	ratelimiter   ratelimit.Limiter
	updateTimeout time.Duration
	wg            sync.WaitGroup
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot         telegoapi.BotAPI
	UpdatesChan <-chan telego.Update
	Handler     UpdateHandler
	// Commands is the menu registered with Telegram on Start.
	Commands []telego.BotCommand
	Logger   logrus.FieldLogger
}

// New creates a new Bot instance from its dependencies.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("update handler cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Bot{
		bot:           withRetry(deps.Bot, defaultSendMaxRetries, deps.Logger),
		updatesChan:   deps.UpdatesChan,
		handler:       deps.Handler,
		commands:      deps.Commands,
		logger:        deps.Logger,
		ratelimiter:   ratelimit.New(defaultGlobalRate),
		updateTimeout: defaultUpdateTimeout,
	}, nil
}

// processUpdate routes incoming updates to the appropriate handlers.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	log := b.logger.WithField("update_id", update.UpdateID)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("PANIC recovered in processUpdate: %v", r)
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, b.updateTimeout)
	defer cancel()

	var err error
	switch {
	case update.Message != nil:
		err = b.handler.HandleMessage(processingCtx, b.bot, *update.Message)
	case update.CallbackQuery != nil:
		err = b.handler.HandleCallback(processingCtx, b.bot, *update.CallbackQuery)
	default:
		log.Debug("Ignoring unhandled update type")
		return
	}
	if err != nil {
		log.WithError(err).Error("Handler error")
		sentry.CaptureException(err)
	}
}

// setupCommands registers the command menu with Telegram.
func (b *Bot) setupCommands(ctx context.Context) error {
	if len(b.commands) == 0 {
		return nil
	}
	if err := b.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: b.commands}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	b.logger.WithField("commands", len(b.commands)).Info("Bot commands successfully set")
	return nil
}

// Start registers the command menu and runs the update loop until ctx is
// cancelled or the updates channel is closed. It waits for in-flight updates
// before returning.
func (b *Bot) Start(ctx context.Context) {
	if err := b.setupCommands(ctx); err != nil {
		b.logger.WithError(err).Warn("Continuing without a command menu")
		sentry.CaptureException(err)
	}
	b.logger.Info("Listening for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context done, stopping update processing...")
			b.wg.Wait()
			b.logger.Info("All update processing finished")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				b.logger.Info("Updates channel closed")
				b.wg.Wait()
				return
			}
			b.wg.Add(1)
			go func(up telego.Update) {
				defer b.wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// Stop waits for in-flight updates. The loop itself stops when the context
// passed to Start is cancelled.
func (b *Bot) Stop() {
	b.wg.Wait()
	b.logger.Info("Bot stopped")
}
