package models

import "time"

// DefaultBlockReason is stored when a block is issued without an explicit reason.
const DefaultBlockReason = "rules violation"

// User represents a Telegram user known to the bot together with usage counters.
// Optional string fields are nil when Telegram did not provide them.
type User struct {
	UserID           int64      `bson:"user_id" json:"user_id"`
	Username         *string    `bson:"username" json:"username"`
	FirstName        *string    `bson:"first_name" json:"first_name"`
	LastName         *string    `bson:"last_name" json:"last_name"`
	RegistrationDate time.Time  `bson:"registration_date" json:"registration_date"`
	LastActivity     time.Time  `bson:"last_activity" json:"last_activity"`
	CommandCount     int64      `bson:"command_count" json:"command_count"`
	WarningsCount    int64      `bson:"warnings_count" json:"warnings_count"`
	IsBlocked        bool       `bson:"is_blocked" json:"is_blocked"`
	BlockReason      *string    `bson:"block_reason,omitempty" json:"block_reason,omitempty"`
	BlockDate        *time.Time `bson:"block_date,omitempty" json:"block_date,omitempty"`
}

// NewUser builds a record for a user seen for the first time at now.
func NewUser(userID int64, username, firstName, lastName *string, now time.Time) *User {
	return &User{
		UserID:           userID,
		Username:         username,
		FirstName:        firstName,
		LastName:         lastName,
		RegistrationDate: now,
		LastActivity:     now,
	}
}

// Clone returns a deep copy of the record.
func (u *User) Clone() *User {
	c := *u
	c.Username = cloneString(u.Username)
	c.FirstName = cloneString(u.FirstName)
	c.LastName = cloneString(u.LastName)
	c.BlockReason = cloneString(u.BlockReason)
	if u.BlockDate != nil {
		t := *u.BlockDate
		c.BlockDate = &t
	}
	return &c
}

// Touch records one more handled event at the given time.
// LastActivity never moves backwards.
func (u *User) Touch(at time.Time) {
	if at.After(u.LastActivity) {
		u.LastActivity = at
	}
	u.CommandCount++
}

// Block marks the user as blocked. An empty reason is replaced with DefaultBlockReason.
func (u *User) Block(reason string, at time.Time) {
	if reason == "" {
		reason = DefaultBlockReason
	}
	u.IsBlocked = true
	u.BlockReason = &reason
	u.BlockDate = &at
}

// Unblock clears the blocked flag together with its metadata.
func (u *User) Unblock() {
	u.IsBlocked = false
	u.BlockReason = nil
	u.BlockDate = nil
}

// Warn increments the warning counter.
func (u *User) Warn() {
	u.WarningsCount++
}

// DisplayName returns the best human readable name for logs and admin replies.
func (u *User) DisplayName() string {
	switch {
	case u.Username != nil && *u.Username != "":
		return "@" + *u.Username
	case u.FirstName != nil && *u.FirstName != "":
		return *u.FirstName
	default:
		return "unknown"
	}
}

// StringPtr returns nil for an empty string and a pointer to s otherwise.
// Telegram sends empty strings for absent name parts.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
