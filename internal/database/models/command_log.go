package models

import "time"

// CommandLog is an append-only record of a handled command.
type CommandLog struct {
	UserID    int64     `bson:"user_id"`
	Command   string    `bson:"command"`
	Timestamp time.Time `bson:"timestamp"`
	Success   bool      `bson:"success"`
	Error     *string   `bson:"error"`
}
