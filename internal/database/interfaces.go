package database

import (
	"context"
	"time"

	"help112-bot/internal/database/models"
)

// UserStore is the capability every persistence backend offers over user records.
// Implementations report failures as errors; callers decide how to degrade.
type UserStore interface {
	// Kind reports which backend this is.
	Kind() models.StorageKind
	// FindUser returns ErrUserNotFound when no record exists for userID.
	FindUser(ctx context.Context, userID int64) (*models.User, error)
	// CreateUser persists a new record and returns the stored one. When a record
	// with the same id already exists the store may return the existing record.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	// TouchUser records one handled event at the given time.
	TouchUser(ctx context.Context, user *models.User, at time.Time) error
	BlockUser(ctx context.Context, user *models.User, reason string, at time.Time) error
	UnblockUser(ctx context.Context, user *models.User) error
	AddWarning(ctx context.Context, user *models.User) error
	// Stats aggregates counters; today starts at midnight and week at now minus seven days.
	Stats(ctx context.Context, today, week time.Time) (models.UserStats, error)
}

// RecordFile is the whole-file contract of the file based backends.
type RecordFile interface {
	Kind() models.StorageKind
	// LoadAll returns an empty map and no error when the file does not exist yet.
	LoadAll(ctx context.Context) (map[int64]*models.User, error)
	SaveAll(ctx context.Context, users map[int64]*models.User) error
}

// CommandLogger defines the interface for the append-only command log.
type CommandLogger interface {
	// LogCommand stores one command execution entry.
	LogCommand(ctx context.Context, entry models.CommandLog) error
}
