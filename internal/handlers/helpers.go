package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"help112-bot/internal/database/models"
	"help112-bot/internal/logging"
	telegoapi "help112-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// sendText sends text to a chat. A failed send is logged, not returned: the
// user cannot be told about it anyway.
func (h *MessageHandler) sendText(ctx context.Context, bot telegoapi.BotAPI, chatID int64, text string, markup telego.ReplyMarkup) {
	params := tu.Message(tu.ID(chatID), text)
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := bot.SendMessage(ctx, params); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// reply sends a localized message to the chat of message.
func (h *MessageHandler) reply(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, msgID string, data map[string]any) {
	localizer := h.getLocalizer(message.From)
	h.sendText(ctx, bot, message.Chat.ID, h.locales.Message(localizer, msgID, data), nil)
}

// answerCallback acknowledges a button press, optionally with a popup text.
func (h *MessageHandler) answerCallback(ctx context.Context, bot telegoapi.BotAPI, queryID, text string, alert bool) {
	params := &telego.AnswerCallbackQueryParams{CallbackQueryID: queryID, Text: text, ShowAlert: alert}
	if err := bot.AnswerCallbackQuery(ctx, params); err != nil {
		h.logger.WithError(err).WithField("query_id", queryID).Error("Failed to answer callback query")
	}
}

// getLocalizer picks the user's Telegram language, falling back to the default language.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	if user != nil && user.LanguageCode != "" {
		return h.locales.NewLocalizer(user.LanguageCode)
	}
	return h.locales.NewLocalizer()
}

// isAdmin wraps the admin checker; lookup errors count as "not an admin".
func (h *MessageHandler) isAdmin(ctx context.Context, userID int64) bool {
	ok, err := h.admins.IsAdmin(ctx, userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("Admin check failed, assuming non-admin")
		return false
	}
	return ok
}

// logCommand writes the command log entry and the structured user action log.
func (h *MessageHandler) logCommand(ctx context.Context, userID int64, command string, cmdErr error) {
	entry := models.CommandLog{
		UserID:    userID,
		Command:   command,
		Timestamp: time.Now(),
		Success:   cmdErr == nil,
	}
	details := ""
	if cmdErr != nil {
		details = cmdErr.Error()
		entry.Error = &details
	}
	logging.UserAction(h.logger, userID, command, cmdErr == nil, details)

	if err := h.cmdLogger.LogCommand(ctx, entry); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("Failed to write command log")
	}
}

// isHandled reports whether err is an outcome the user was already told about.
func isHandled(err error) bool {
	return errors.Is(err, errUsage) || errors.Is(err, errNotFound) ||
		errors.Is(err, errForbidden) || errors.Is(err, errUnknown)
}

// parseCommand splits "/Name@bot arg1 arg2" into "name" and the arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

// mainMenu builds the section keyboard. Admins get an extra admin panel row.
func (h *MessageHandler) mainMenu(localizer *i18n.Localizer, admin bool) *telego.InlineKeyboardMarkup {
	btn := func(msgID, data string) telego.InlineKeyboardButton {
		return tu.InlineKeyboardButton(h.locales.Message(localizer, msgID, nil)).WithCallbackData(data)
	}
	rows := [][]telego.InlineKeyboardButton{
		tu.InlineKeyboardRow(btn("BtnMedicine", CallbackMedicine), btn("BtnFire", CallbackFire)),
		tu.InlineKeyboardRow(btn("BtnPolice", CallbackPolice), btn("BtnRescue", CallbackRescue)),
		tu.InlineKeyboardRow(btn("BtnContacts", CallbackContacts)),
	}
	if admin {
		rows = append(rows, tu.InlineKeyboardRow(btn("BtnAdminPanel", CallbackAdminPanel)))
	}
	return tu.InlineKeyboard(rows...)
}

// backButton is the single "main menu" button attached to section texts.
func (h *MessageHandler) backButton(localizer *i18n.Localizer) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton(h.locales.Message(localizer, "BtnBack", nil)).WithCallbackData(CallbackBack),
	))
}

// adminPanelKeyboard offers a refresh of the statistics and the way back.
func (h *MessageHandler) adminPanelKeyboard(localizer *i18n.Localizer) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton(h.locales.Message(localizer, "BtnRefresh", nil)).WithCallbackData(CallbackAdminPanel)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton(h.locales.Message(localizer, "BtnBack", nil)).WithCallbackData(CallbackBack)),
	)
}

// activityPercent is part of total with one decimal; zero when there are no users.
func activityPercent(part, total int64) string {
	if total <= 0 {
		return "0.0"
	}
	return strconv.FormatFloat(float64(part)*100/float64(total), 'f', 1, 64)
}

// statsText renders the admin statistics panel. A failed statistics query is
// shown as an error state rather than as zero counts.
func (h *MessageHandler) statsText(localizer *i18n.Localizer, stats models.UserStats) string {
	storageID := "MsgStorageText"
	switch stats.Backend {
	case models.StorageMongo:
		storageID = "MsgStorageMongo"
	case models.StorageJSON:
		storageID = "MsgStorageJSON"
	}
	storage := h.locales.Message(localizer, storageID, nil)

	if stats.Err {
		return h.locales.Message(localizer, "MsgStatsError", map[string]any{"Storage": storage})
	}
	return h.locales.Message(localizer, "MsgStats", map[string]any{
		"Total":        stats.Total,
		"Blocked":      stats.Blocked,
		"ActiveToday":  stats.ActiveToday,
		"ActiveWeek":   stats.ActiveWeek,
		"NewToday":     stats.NewToday,
		"TodayPercent": activityPercent(stats.ActiveToday, stats.Total),
		"WeekPercent":  activityPercent(stats.ActiveWeek, stats.Total),
		"Storage":      storage,
	})
}
