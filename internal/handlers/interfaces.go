package handlers

import (
	"context"

	"help112-bot/internal/database/models"
	"help112-bot/internal/gate"
)

// RequestGate admits or rejects an inbound event.
type RequestGate interface {
	Admit(ctx context.Context, ev gate.Event) gate.Result
}

// UserDirectory is the part of users.Directory the admin commands need.
type UserDirectory interface {
	Lookup(ctx context.Context, userID int64) (*models.User, bool)
	Block(ctx context.Context, user *models.User, reason string)
	Unblock(ctx context.Context, user *models.User)
	AddWarning(ctx context.Context, user *models.User)
	Stats(ctx context.Context) models.UserStats
}

// AdminCheckerInterface reports whether a user may run administrative commands.
type AdminCheckerInterface interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}
