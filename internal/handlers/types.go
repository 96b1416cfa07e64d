package handlers

import (
	"context"
	"errors"
	"fmt"

	"help112-bot/internal/content"
	"help112-bot/internal/database"
	"help112-bot/internal/locales"
	telegoapi "help112-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"github.com/sirupsen/logrus"
)

// Outcomes that were already answered to the user. They mark the command as
// unsuccessful in the command log but are not reported as failures.
var (
	errUsage     = errors.New("usage")
	errNotFound  = errors.New("not found")
	errForbidden = errors.New("admin only")
	errUnknown   = errors.New("unknown command")
)

// CommandFunc executes one command. args are the whitespace separated words
// after the command name.
type CommandFunc func(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, args []string) error

// Command represents a bot command, mapping the command string to its description and handler function.
type Command struct {
	Command     string      // The command string (e.g., "start").
	Description string      // Message ID of the description shown in /help and the command menu.
	AdminOnly   bool        // Only configured administrators may run it.
	Handler     CommandFunc // The function to execute when the command is received.
}

// Deps holds the dependencies required by the MessageHandler.
type Deps struct {
	Gate     RequestGate
	Users    UserDirectory
	Admins   AdminCheckerInterface
	Content  content.Provider
	Commands database.CommandLogger
	Locales  *locales.Bundle
	Logger   logrus.FieldLogger
}

// MessageHandler handles incoming Telegram messages and callbacks.
// Every event passes the request gate first; admitted messages are routed to
// commands that answer from the content provider or administer users.
type MessageHandler struct {
	gate      RequestGate
	users     UserDirectory
	admins    AdminCheckerInterface
	content   content.Provider
	cmdLogger database.CommandLogger
	locales   *locales.Bundle
	logger    logrus.FieldLogger

	commands []Command
}

// NewMessageHandler creates and initializes a new MessageHandler instance.
// It validates dependencies and defines the available bot commands.
func NewMessageHandler(deps Deps) (*MessageHandler, error) {
	switch {
	case deps.Gate == nil:
		return nil, fmt.Errorf("request gate cannot be nil")
	case deps.Users == nil:
		return nil, fmt.Errorf("user directory cannot be nil")
	case deps.Admins == nil:
		return nil, fmt.Errorf("admin checker cannot be nil")
	case deps.Content == nil:
		return nil, fmt.Errorf("content provider cannot be nil")
	case deps.Locales == nil:
		return nil, fmt.Errorf("locales bundle cannot be nil")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger cannot be nil")
	}
	cmdLogger := deps.Commands
	if cmdLogger == nil {
		cmdLogger = database.NopCommandLogger{}
	}

	h := &MessageHandler{
		gate:      deps.Gate,
		users:     deps.Users,
		admins:    deps.Admins,
		content:   deps.Content,
		cmdLogger: cmdLogger,
		locales:   deps.Locales,
		logger:    deps.Logger,
	}
	h.commands = []Command{
		{Command: CommandStart, Description: "CmdStartDesc", Handler: h.HandleStart},
		{Command: CommandHelp, Description: "CmdHelpDesc", Handler: h.HandleHelp},
		{Command: CommandDose, Description: "CmdDoseDesc", Handler: h.HandleDose},
		{Command: CommandPoison, Description: "CmdPoisonDesc", Handler: h.lookupCommand(content.CategoryPoison, "MsgUsagePoison")},
		{Command: CommandFire, Description: "CmdFireDesc", Handler: h.lookupCommand(content.CategoryFire, "MsgUsageFire")},
		{Command: CommandLaw, Description: "CmdLawDesc", Handler: h.lookupCommand(content.CategoryLaw, "MsgUsageLaw")},
		{Command: CommandAdmin, Description: "CmdAdminDesc", Handler: h.lookupCommand(content.CategoryAdmin, "MsgUsageAdmin")},
		{Command: CommandStats, Description: "CmdStatsDesc", AdminOnly: true, Handler: h.HandleStats},
		{Command: CommandBlock, Description: "CmdBlockDesc", AdminOnly: true, Handler: h.HandleBlock},
		{Command: CommandUnblock, Description: "CmdUnblockDesc", AdminOnly: true, Handler: h.HandleUnblock},
		{Command: CommandWarn, Description: "CmdWarnDesc", AdminOnly: true, Handler: h.HandleWarn},
	}
	return h, nil
}

// Commands returns the registered commands.
func (h *MessageHandler) Commands() []Command {
	return h.commands
}

// GetCommand retrieves the command registered under name (e.g. "start").
func (h *MessageHandler) GetCommand(name string) (Command, bool) {
	for _, cmd := range h.commands {
		if cmd.Command == name {
			return cmd, true
		}
	}
	return Command{}, false
}

// BotCommands returns the command menu registered with Telegram: every
// command available to regular users, described in the default language.
func (h *MessageHandler) BotCommands() []telego.BotCommand {
	localizer := h.locales.NewLocalizer()
	cmds := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		if cmd.AdminOnly {
			continue
		}
		cmds = append(cmds, telego.BotCommand{
			Command:     cmd.Command,
			Description: h.locales.Message(localizer, cmd.Description, nil),
		})
	}
	return cmds
}
