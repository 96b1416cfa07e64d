package handlers

import (
	"context"
	"fmt"

	"help112-bot/internal/content"
	"help112-bot/internal/gate"
	"help112-bot/internal/logging"
	telegoapi "help112-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
)

// banTimeLayout is how the ban expiry is shown to banned users.
const banTimeLayout = "15:04:05"

// HandleMessage runs a freeform message through the request gate and routes
// admitted commands. Errors returned are unexpected failures worth reporting;
// outcomes already answered to the user are not returned.
func (h *MessageHandler) HandleMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.From == nil {
		return nil
	}
	from := message.From

	res := h.gate.Admit(ctx, gate.Event{
		Kind:      gate.EventMessage,
		UserID:    from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Text:      message.Text,
	})
	switch res.Decision {
	case gate.DecisionBanned:
		h.reply(ctx, bot, message, "MsgBanned", map[string]any{"Until": res.BanExpiry.Format(banTimeLayout)})
		return nil
	case gate.DecisionRateLimited:
		h.reply(ctx, bot, message, "MsgRateLimited", nil)
		return nil
	}

	name, args := parseCommand(message.Text)
	if name == "" {
		localizer := h.getLocalizer(from)
		logging.UserAction(h.logger, from.ID, ActionText, true, "")
		h.sendText(ctx, bot, message.Chat.ID, h.locales.Message(localizer, "MsgMainMenu", nil), h.mainMenu(localizer, h.isAdmin(ctx, from.ID)))
		return nil
	}

	err := h.runCommand(ctx, bot, message, name, args)
	h.logCommand(ctx, from.ID, "/"+name, err)
	if err != nil && !isHandled(err) {
		return fmt.Errorf("command /%s failed for user %d: %w", name, from.ID, err)
	}
	return nil
}

func (h *MessageHandler) runCommand(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, name string, args []string) error {
	cmd, ok := h.GetCommand(name)
	if !ok {
		h.reply(ctx, bot, message, "MsgErrorUnknownCommand", nil)
		return errUnknown
	}
	if cmd.AdminOnly && !h.isAdmin(ctx, message.From.ID) {
		logging.SecurityEvent(h.logger, message.From.ID, ActionDeniedAdmin+" /"+name, logging.SeverityWarning)
		h.reply(ctx, bot, message, "MsgErrorRequiresAdmin", nil)
		return errForbidden
	}
	return cmd.Handler(ctx, bot, message, args)
}

// HandleCallback registers the presser and answers a menu button. Button
// presses never pass the ban and rate checks, only registration.
func (h *MessageHandler) HandleCallback(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	from := query.From
	h.gate.Admit(ctx, gate.Event{
		Kind:      gate.EventCallback,
		UserID:    from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Text:      query.Data,
	})

	localizer := h.getLocalizer(&from)
	chatID := from.ID
	if msg, ok := query.Message.(*telego.Message); ok && msg != nil {
		chatID = msg.Chat.ID
	}
	log := h.logger.WithFields(logrus.Fields{"user_id": from.ID, "data": query.Data})

	switch query.Data {
	case CallbackAdminPanel:
		if !h.isAdmin(ctx, from.ID) {
			logging.SecurityEvent(h.logger, from.ID, ActionDeniedAdmin+" panel", logging.SeverityWarning)
			h.answerCallback(ctx, bot, query.ID, h.locales.Message(localizer, "MsgErrorRequiresAdmin", nil), true)
			return nil
		}
		h.answerCallback(ctx, bot, query.ID, "", false)
		h.sendText(ctx, bot, chatID, h.statsText(localizer, h.users.Stats(ctx)), h.adminPanelKeyboard(localizer))
		logging.UserAction(h.logger, from.ID, ActionAdminPanel, true, "")

	case CallbackBack:
		h.answerCallback(ctx, bot, query.ID, "", false)
		h.sendText(ctx, bot, chatID, h.locales.Message(localizer, "MsgMainMenu", nil), h.mainMenu(localizer, h.isAdmin(ctx, from.ID)))
		logging.UserAction(h.logger, from.ID, ActionMainMenu, true, "")

	default:
		text, ok := h.content.Lookup(content.CategoryMenu, query.Data)
		if !ok {
			log.Debug("Callback data has no menu entry")
			h.answerCallback(ctx, bot, query.ID, h.locales.Message(localizer, "MsgCallbackNotHandled", nil), true)
			logging.UserAction(h.logger, from.ID, ActionCallback, false, query.Data)
			return nil
		}
		h.answerCallback(ctx, bot, query.ID, "", false)
		h.sendText(ctx, bot, chatID, text, h.backButton(localizer))
		logging.UserAction(h.logger, from.ID, ActionCallback, true, query.Data)
	}
	return nil
}
