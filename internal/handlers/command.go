package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"help112-bot/internal/content"
	"help112-bot/internal/database/models"
	telegoapi "help112-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
)

// HandleStart sends the welcome text together with the section menu.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, _ []string) error {
	localizer := h.getLocalizer(message.From)
	admin := h.isAdmin(ctx, message.From.ID)
	h.sendText(ctx, bot, message.Chat.ID, h.locales.Message(localizer, "MsgStart", nil), h.mainMenu(localizer, admin))
	return nil
}

// HandleHelp lists the commands the user may run.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, _ []string) error {
	localizer := h.getLocalizer(message.From)
	admin := h.isAdmin(ctx, message.From.ID)

	var helpText strings.Builder
	helpText.WriteString(h.locales.Message(localizer, "MsgHelpHeader", nil) + "\n")
	for _, cmd := range h.commands {
		if cmd.AdminOnly && !admin {
			continue
		}
		fmt.Fprintf(&helpText, "/%s - %s\n", cmd.Command, h.locales.Message(localizer, cmd.Description, nil))
	}
	footerKey := "MsgHelpFooterUser"
	if admin {
		footerKey = "MsgHelpFooterAdmin"
	}
	helpText.WriteString("\n" + h.locales.Message(localizer, footerKey, nil))

	h.sendText(ctx, bot, message.Chat.ID, helpText.String(), h.backButton(localizer))
	return nil
}

// HandleDose answers /dose <drug> <weight>.
func (h *MessageHandler) HandleDose(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, args []string) error {
	if len(args) < 2 {
		h.reply(ctx, bot, message, "MsgUsageDose", nil)
		return errUsage
	}
	drug := strings.Join(args[:len(args)-1], " ")
	weight, err := strconv.ParseFloat(strings.ReplaceAll(args[len(args)-1], ",", "."), 64)
	if err != nil || weight <= 0 {
		h.reply(ctx, bot, message, "MsgUsageDose", nil)
		return errUsage
	}

	text, ok := h.content.Lookup(content.CategoryDose, drug)
	if !ok {
		if available := h.content.Keys(content.CategoryDose); len(available) > 0 {
			h.reply(ctx, bot, message, "MsgDoseNotFound", map[string]any{"Query": drug, "Available": strings.Join(available, ", ")})
		} else {
			h.reply(ctx, bot, message, "MsgNotFound", map[string]any{"Query": drug})
		}
		return fmt.Errorf("%w: %s", errNotFound, drug)
	}
	info, err := content.RenderDose(text, weight)
	if err != nil {
		h.reply(ctx, bot, message, "MsgErrorGeneral", nil)
		return fmt.Errorf("dose %s: %w", drug, err)
	}
	h.reply(ctx, bot, message, "MsgDoseResult", map[string]any{
		"Drug":   drug,
		"Weight": strconv.FormatFloat(weight, 'f', -1, 64),
		"Info":   info,
	})
	return nil
}

// lookupCommand builds the handler of a single-argument reference command
// such as /fire A or /law 228.
func (h *MessageHandler) lookupCommand(category, usageID string) CommandFunc {
	return func(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, args []string) error {
		query := strings.Join(args, " ")
		if query == "" {
			h.reply(ctx, bot, message, usageID, nil)
			return errUsage
		}
		text, ok := h.content.Lookup(category, query)
		if !ok {
			h.reply(ctx, bot, message, "MsgNotFound", map[string]any{"Query": query})
			return fmt.Errorf("%w: %s %s", errNotFound, category, query)
		}
		h.sendText(ctx, bot, message.Chat.ID, text, h.backButton(h.getLocalizer(message.From)))
		return nil
	}
}

// HandleStats shows the admin statistics panel.
func (h *MessageHandler) HandleStats(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, _ []string) error {
	localizer := h.getLocalizer(message.From)
	h.sendText(ctx, bot, message.Chat.ID, h.statsText(localizer, h.users.Stats(ctx)), h.adminPanelKeyboard(localizer))
	return nil
}

// HandleBlock answers /block <id> [reason].
func (h *MessageHandler) HandleBlock(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, args []string) error {
	target, err := h.targetUser(ctx, bot, message, args, "MsgUsageBlock")
	if err != nil {
		return err
	}
	h.users.Block(ctx, target, strings.Join(args[1:], " "))
	if !target.IsBlocked {
		return fmt.Errorf("failed to block user %d", target.UserID)
	}
	h.logger.WithFields(logrus.Fields{"admin_id": message.From.ID, "user_id": target.UserID}).Info("User blocked by admin")
	h.reply(ctx, bot, message, "MsgUserBlocked", map[string]any{"UserID": target.UserID, "Name": target.DisplayName(), "Reason": *target.BlockReason})
	return nil
}

// HandleUnblock answers /unblock <id>.
func (h *MessageHandler) HandleUnblock(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, args []string) error {
	target, err := h.targetUser(ctx, bot, message, args, "MsgUsageUnblock")
	if err != nil {
		return err
	}
	h.users.Unblock(ctx, target)
	if target.IsBlocked {
		return fmt.Errorf("failed to unblock user %d", target.UserID)
	}
	h.reply(ctx, bot, message, "MsgUserUnblocked", map[string]any{"UserID": target.UserID, "Name": target.DisplayName()})
	return nil
}

// HandleWarn answers /warn <id>.
func (h *MessageHandler) HandleWarn(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, args []string) error {
	target, err := h.targetUser(ctx, bot, message, args, "MsgUsageWarn")
	if err != nil {
		return err
	}
	before := target.WarningsCount
	h.users.AddWarning(ctx, target)
	if target.WarningsCount == before {
		return fmt.Errorf("failed to warn user %d", target.UserID)
	}
	h.reply(ctx, bot, message, "MsgUserWarned", map[string]any{"UserID": target.UserID, "Name": target.DisplayName(), "Warnings": target.WarningsCount})
	return nil
}

// targetUser resolves the user id argument of the moderation commands.
func (h *MessageHandler) targetUser(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, args []string, usageID string) (*models.User, error) {
	if len(args) == 0 {
		h.reply(ctx, bot, message, usageID, nil)
		return nil, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, bot, message, usageID, nil)
		return nil, errUsage
	}
	user, ok := h.users.Lookup(ctx, id)
	if !ok {
		h.reply(ctx, bot, message, "MsgUserNotFound", map[string]any{"UserID": id})
		return nil, fmt.Errorf("%w: user %d", errNotFound, id)
	}
	return user, nil
}
