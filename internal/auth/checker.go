package auth

import (
	"context"
)

// AdminChecker decides whether a Telegram user may use the administrative
// commands. Admins are the user ids listed in the configuration.
type AdminChecker struct {
	admins map[int64]struct{}
}

// NewAdminChecker creates a new AdminChecker for the given ids.
// An empty list yields a checker that rejects everyone.
func NewAdminChecker(ids []int64) *AdminChecker {
	admins := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		admins[id] = struct{}{}
	}
	return &AdminChecker{admins: admins}
}

// IsAdmin reports whether userID is a configured administrator.
// The error is always nil; it keeps the signature usable for checkers backed by
// a remote lookup.
func (ac *AdminChecker) IsAdmin(_ context.Context, userID int64) (bool, error) {
	_, ok := ac.admins[userID]
	return ok, nil
}

// Count returns the number of configured administrators.
func (ac *AdminChecker) Count() int {
	return len(ac.admins)
}
