// Package antispam implements the per-user sliding-log request limiter and the
// temporary ban table. State lives in process memory only and is lost on restart.
package antispam

import (
	"sync"
	"time"
)

const (
	// DefaultMaxRequests is the number of requests admitted inside one window.
	DefaultMaxRequests = 30
	// DefaultWindow is the length of the trailing window.
	DefaultWindow = time.Minute
	// DefaultBanDuration is how long a user stays banned after overflowing the window.
	DefaultBanDuration = 5 * time.Minute
)

// Options configures a Limiter. Zero values fall back to the defaults.
type Options struct {
	MaxRequests int
	Window      time.Duration
	BanDuration time.Duration
}

// Limiter tracks request timestamps and active bans per user.
// A ban does not clear the user's window.
type Limiter struct {
	maxRequests int
	window      time.Duration
	banDuration time.Duration

	mu      sync.Mutex
	windows map[int64][]time.Time
	bans    map[int64]time.Time
}

// New creates a limiter.
func New(opts Options) *Limiter {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.BanDuration <= 0 {
		opts.BanDuration = DefaultBanDuration
	}
	return &Limiter{
		maxRequests: opts.MaxRequests,
		window:      opts.Window,
		banDuration: opts.BanDuration,
		windows:     make(map[int64][]time.Time),
		bans:        make(map[int64]time.Time),
	}
}

// IsBanned reports whether userID is banned at now. Expired bans are removed here.
func (l *Limiter) IsBanned(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.bans[userID]
	if !ok {
		return false
	}
	if now.Before(expiry) {
		return true
	}
	delete(l.bans, userID)
	return false
}

// CheckAndRecord admits the request and records it, or denies it and bans the
// user until now plus the ban duration when the window is already full.
func (l *Limiter) CheckAndRecord(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.prune(userID, now)
	if len(window) >= l.maxRequests {
		l.bans[userID] = now.Add(l.banDuration)
		return false
	}
	l.windows[userID] = append(window, now)
	return true
}

// BanExpiry returns the end of the user's ban, if one is recorded.
func (l *Limiter) BanExpiry(userID int64) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.bans[userID]
	return expiry, ok
}

// WindowLen returns how many requests are recorded for userID as of now.
func (l *Limiter) WindowLen(userID int64, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.prune(userID, now))
}

// prune drops timestamps at or before now minus the window. Caller holds mu.
func (l *Limiter) prune(userID int64, now time.Time) []time.Time {
	window := l.windows[userID]
	cutoff := now.Add(-l.window)

	// events handled concurrently may record slightly out of order, so filter
	// the whole log instead of cutting a prefix
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.windows, userID)
		return nil
	}
	l.windows[userID] = kept
	return kept
}
