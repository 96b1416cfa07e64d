package handlers

// Command names as typed by users, without the leading slash.
const (
	CommandStart   = "start"
	CommandHelp    = "help"
	CommandDose    = "dose"
	CommandPoison  = "poison"
	CommandFire    = "fire"
	CommandLaw     = "law"
	CommandAdmin   = "admin"
	CommandStats   = "stats"
	CommandBlock   = "block"
	CommandUnblock = "unblock"
	CommandWarn    = "warn"
)

// Callback data of the inline menu buttons.
const (
	CallbackBack       = "back"
	CallbackAdminPanel = "admin_panel"
	CallbackMedicine   = "med"
	CallbackFire       = "fire"
	CallbackPolice     = "police"
	CallbackRescue     = "rescue"
	CallbackContacts   = "contacts"
)

// Actions written to the structured log for non-command interactions.
const (
	ActionCallback    = "callback"
	ActionText        = "text_message"
	ActionAdminPanel  = "admin_panel"
	ActionMainMenu    = "main_menu"
	ActionDeniedAdmin = "admin_denied"
)
