package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"help112-bot/internal/database/models"
)

// FileStore adapts a RecordFile into a UserStore.
// Every mutation rewrites the caller's snapshot of the record, so two events
// that race on the same user may lose one update. The mutex only keeps file
// writes from interleaving.
type FileStore struct {
	file RecordFile
	mu   sync.Mutex
}

// NewFileStore wraps file.
func NewFileStore(file RecordFile) *FileStore {
	return &FileStore{file: file}
}

// Kind implements UserStore.
func (s *FileStore) Kind() models.StorageKind {
	return s.file.Kind()
}

// FindUser scans the file for userID.
func (s *FileStore) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.file.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CreateUser writes the new record. An existing record with the same id is overwritten.
func (s *FileStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := s.put(ctx, user.Clone()); err != nil {
		return nil, err
	}
	return user, nil
}

// TouchUser rewrites the record with one more command and the new activity time.
func (s *FileStore) TouchUser(ctx context.Context, user *models.User, at time.Time) error {
	next := user.Clone()
	next.Touch(at)
	return s.put(ctx, next)
}

// BlockUser rewrites the record as blocked.
func (s *FileStore) BlockUser(ctx context.Context, user *models.User, reason string, at time.Time) error {
	next := user.Clone()
	next.Block(reason, at)
	return s.put(ctx, next)
}

// UnblockUser rewrites the record as unblocked.
func (s *FileStore) UnblockUser(ctx context.Context, user *models.User) error {
	next := user.Clone()
	next.Unblock()
	return s.put(ctx, next)
}

// AddWarning rewrites the record with one more warning.
func (s *FileStore) AddWarning(ctx context.Context, user *models.User) error {
	next := user.Clone()
	next.Warn()
	return s.put(ctx, next)
}

// Stats scans every record.
func (s *FileStore) Stats(ctx context.Context, today, week time.Time) (models.UserStats, error) {
	s.mu.Lock()
	users, err := s.file.LoadAll(ctx)
	s.mu.Unlock()
	if err != nil {
		return models.UserStats{Backend: s.file.Kind()}, err
	}
	stats := AccumulateStats(users, today, week)
	stats.Backend = s.file.Kind()
	return stats, nil
}

// put loads the file, replaces one record and writes the file back.
// A file that cannot be read is never overwritten.
func (s *FileStore) put(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.file.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("refusing to rewrite unreadable store: %w", err)
	}
	users[user.UserID] = user
	return s.file.SaveAll(ctx, users)
}

// AccumulateStats counts users the same way the native Mongo queries do.
func AccumulateStats(users map[int64]*models.User, today, week time.Time) models.UserStats {
	var stats models.UserStats
	for _, u := range users {
		stats.Total++
		if u.IsBlocked {
			stats.Blocked++
		}
		if !u.LastActivity.Before(today) {
			stats.ActiveToday++
		}
		if !u.LastActivity.Before(week) {
			stats.ActiveWeek++
		}
		if !u.RegistrationDate.Before(today) {
			stats.NewToday++
		}
	}
	return stats
}
