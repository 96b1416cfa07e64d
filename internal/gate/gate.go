// Package gate decides for every inbound event whether it may reach the
// content handlers. Each event first registers the user, then message events
// pass the ban and rate checks.
package gate

import (
	"context"
	"time"

	"help112-bot/internal/database/models"
	"help112-bot/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventKind distinguishes freeform messages from button presses.
type EventKind int

const (
	EventMessage EventKind = iota
	EventCallback
)

func (k EventKind) String() string {
	if k == EventCallback {
		return "callback"
	}
	return "message"
}

// Decision is the outcome of Admit.
type Decision int

const (
	DecisionAdmitted Decision = iota
	DecisionBanned
	DecisionRateLimited
)

func (d Decision) String() string {
	switch d {
	case DecisionBanned:
		return "banned"
	case DecisionRateLimited:
		return "rate_limited"
	default:
		return "admitted"
	}
}

// Event is the identity and payload the gate needs from an inbound update.
type Event struct {
	Kind      EventKind
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	Text      string
}

// Result carries the decision and the registered user record.
type Result struct {
	Decision Decision
	User     *models.User
	Reason   string
	// BanExpiry is set for banned and rate limited decisions.
	BanExpiry time.Time
}

// Admitted reports whether the event may be forwarded.
func (r Result) Admitted() bool {
	return r.Decision == DecisionAdmitted
}

// UserRegistrar registers users and records their activity. It must not fail.
type UserRegistrar interface {
	GetOrCreate(ctx context.Context, userID int64, username, firstName, lastName string) *models.User
	UpdateActivity(ctx context.Context, user *models.User)
}

// RateLimiter is the ban table plus the sliding window.
type RateLimiter interface {
	IsBanned(userID int64, now time.Time) bool
	CheckAndRecord(userID int64, now time.Time) bool
	BanExpiry(userID int64) (time.Time, bool)
}

// Gate composes user registration with the rate limiter.
type Gate struct {
	users   UserRegistrar
	limiter RateLimiter
	metrics *Metrics
	logger  logrus.FieldLogger
	now     func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source used for limiter decisions.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// WithMetrics makes the gate count its decisions.
func WithMetrics(m *Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New creates a Gate.
func New(users UserRegistrar, limiter RateLimiter, logger logrus.FieldLogger, opts ...Option) *Gate {
	g := &Gate{
		users:   users,
		limiter: limiter,
		logger:  logger.WithField("component", "gate"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit runs one event through the gate. Registration happens for every event;
// the ban and rate checks only apply to message events, button presses always pass.
func (g *Gate) Admit(ctx context.Context, ev Event) Result {
	entry := g.logger.WithFields(logrus.Fields{
		"trace_id": uuid.NewString(),
		"user_id":  ev.UserID,
		"kind":     ev.Kind.String(),
	})

	user := g.users.GetOrCreate(ctx, ev.UserID, ev.Username, ev.FirstName, ev.LastName)
	g.users.UpdateActivity(ctx, user)

	result := Result{Decision: DecisionAdmitted, User: user}
	if ev.Kind == EventMessage {
		now := g.now()
		switch {
		case g.limiter.IsBanned(ev.UserID, now):
			result.Decision = DecisionBanned
			result.Reason = "user is temporarily banned"
		case !g.limiter.CheckAndRecord(ev.UserID, now):
			result.Decision = DecisionRateLimited
			result.Reason = "too many requests"
			logging.SecurityEvent(entry, ev.UserID, "rate limit exceeded, temporary ban issued", logging.SeverityWarning)
		}
		if !result.Admitted() {
			result.BanExpiry, _ = g.limiter.BanExpiry(ev.UserID)
		}
	}

	g.metrics.observe(ev.Kind, result.Decision)
	if result.Admitted() {
		entry.Debug("Event admitted")
	} else {
		entry.WithField("decision", result.Decision.String()).Info("Event denied")
	}
	return result
}
