package database

import (
	"context"
	"fmt"
	"time"

	"help112-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/mongo"
)

const commandLogsCollectionName = "command_logs"

// MongoCommandLogger implements CommandLogger using MongoDB.
// Entries are written and never read back by the bot.
type MongoCommandLogger struct {
	collection *mongo.Collection
}

// NewMongoCommandLogger creates a command logger over the command_logs collection.
func NewMongoCommandLogger(db *mongo.Database) *MongoCommandLogger {
	return &MongoCommandLogger{collection: db.Collection(commandLogsCollectionName)}
}

// LogCommand writes a command log entry to the database.
func (m *MongoCommandLogger) LogCommand(ctx context.Context, entry models.CommandLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert command log for user %d: %w", entry.UserID, err)
	}
	return nil
}

// NopCommandLogger drops command log entries. It is used when no primary store is connected.
type NopCommandLogger struct{}

// LogCommand implements CommandLogger.
func (NopCommandLogger) LogCommand(context.Context, models.CommandLog) error {
	return nil
}
