package telegoapi

import (
	"context"

	"github.com/mymmrac/telego"
)

// BotAPI defines the subset of Telegram Bot API methods the bot uses.
// *telego.Bot satisfies it; tests use mocks.
type BotAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error
	GetMe(ctx context.Context) (*telego.User, error)
}

var _ BotAPI = (*telego.Bot)(nil)
