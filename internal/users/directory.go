// Package users keeps per-user activity records on top of whichever storage
// backend was selected at startup. Storage failures never leave this package:
// every operation logs the error and degrades to a default.
package users

import (
	"context"
	"errors"
	"strconv"
	"time"

	"help112-bot/internal/database"
	"help112-bot/internal/database/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const week = 7 * 24 * time.Hour

// Directory owns user records independently of the live backend.
type Directory struct {
	store  database.UserStore
	logger logrus.FieldLogger
	now    func() time.Time

	creating singleflight.Group
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		d.now = now
	}
}

// NewDirectory creates a directory over store.
func NewDirectory(store database.UserStore, logger logrus.FieldLogger, opts ...Option) *Directory {
	d := &Directory{
		store:  store,
		logger: logger.WithField("component", "users"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetOrCreate returns the user record, creating it on first contact.
// Concurrent first contacts for the same id share one lookup and one insert.
// When storage fails the caller gets a fresh, unpersisted record.
func (d *Directory) GetOrCreate(ctx context.Context, userID int64, username, firstName, lastName string) *models.User {
	v, err, _ := d.creating.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		user, err := d.store.FindUser(ctx, userID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, database.ErrUserNotFound) {
			return nil, err
		}

		fresh := models.NewUser(userID, models.StringPtr(username), models.StringPtr(firstName), models.StringPtr(lastName), d.now())
		created, err := d.store.CreateUser(ctx, fresh)
		if err != nil {
			return nil, err
		}
		d.logger.WithField("user_id", userID).Info("Registered new user")
		return created, nil
	})
	if err != nil {
		d.logger.WithError(err).WithField("user_id", userID).Error("Failed to get or create user")
		return models.NewUser(userID, models.StringPtr(username), models.StringPtr(firstName), models.StringPtr(lastName), d.now())
	}
	// callers mutate their copy, so a shared result must not be handed out twice
	return v.(*models.User).Clone()
}

// Lookup returns an existing user. Missing users and storage errors both report false.
func (d *Directory) Lookup(ctx context.Context, userID int64) (*models.User, bool) {
	user, err := d.store.FindUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			d.logger.WithError(err).WithField("user_id", userID).Error("Failed to look up user")
		}
		return nil, false
	}
	return user, true
}

// UpdateActivity records one handled event for user.
func (d *Directory) UpdateActivity(ctx context.Context, user *models.User) {
	if user == nil {
		return
	}
	at := d.now()
	if err := d.store.TouchUser(ctx, user, at); err != nil {
		d.logger.WithError(err).WithField("user_id", user.UserID).Error("Failed to update user activity")
		return
	}
	user.Touch(at)
}

// Block marks user as blocked with reason.
func (d *Directory) Block(ctx context.Context, user *models.User, reason string) {
	if user == nil {
		return
	}
	at := d.now()
	if err := d.store.BlockUser(ctx, user, reason, at); err != nil {
		d.logger.WithError(err).WithField("user_id", user.UserID).Error("Failed to block user")
		return
	}
	user.Block(reason, at)
	d.logger.WithFields(logrus.Fields{"user_id": user.UserID, "reason": *user.BlockReason}).Warn("User blocked")
}

// Unblock clears the blocked state of user.
func (d *Directory) Unblock(ctx context.Context, user *models.User) {
	if user == nil {
		return
	}
	if err := d.store.UnblockUser(ctx, user); err != nil {
		d.logger.WithError(err).WithField("user_id", user.UserID).Error("Failed to unblock user")
		return
	}
	user.Unblock()
	d.logger.WithField("user_id", user.UserID).Info("User unblocked")
}

// AddWarning adds one warning to user.
func (d *Directory) AddWarning(ctx context.Context, user *models.User) {
	if user == nil {
		return
	}
	if err := d.store.AddWarning(ctx, user); err != nil {
		d.logger.WithError(err).WithField("user_id", user.UserID).Error("Failed to add warning")
		return
	}
	user.Warn()
}

// Stats aggregates user counters. "Today" starts at local midnight and the week
// is the trailing seven days. On failure the counters are zero and Err is set.
func (d *Directory) Stats(ctx context.Context) models.UserStats {
	now := d.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats, err := d.store.Stats(ctx, today, now.Add(-week))
	if err != nil {
		d.logger.WithError(err).Error("Failed to compute user statistics")
		return models.UserStats{Backend: d.store.Kind(), Err: true}
	}
	stats.Backend = d.store.Kind()
	return stats
}
