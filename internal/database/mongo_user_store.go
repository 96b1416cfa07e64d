package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"help112-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const usersCollectionName = "users"

// userDocument keys the stored record by the Telegram id so that the
// unique _id index forbids duplicate users.
type userDocument struct {
	ID          int64 `bson:"_id"`
	models.User `bson:",inline"`
}

// MongoUserStore implements UserStore on top of a MongoDB collection.
// Every mutation is a field level update, so concurrent events for the same
// user never lose increments.
type MongoUserStore struct {
	collection *mongo.Collection
}

// NewMongoUserStore creates a user store over the users collection of db.
func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{collection: db.Collection(usersCollectionName)}
}

// Kind implements UserStore.
func (s *MongoUserStore) Kind() models.StorageKind {
	return models.StorageMongo
}

// FindUser loads a user by Telegram id.
func (s *MongoUserStore) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	var doc userDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user %d: %w", userID, err)
	}
	user := doc.User
	return &user, nil
}

// CreateUser inserts a new user. If another event created the same user first,
// the existing record is returned instead.
func (s *MongoUserStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	_, err := s.collection.InsertOne(ctx, userDocument{ID: user.UserID, User: *user})
	if err == nil {
		return user, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		existing, findErr := s.FindUser(ctx, user.UserID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to load concurrently created user %d: %w", user.UserID, findErr)
		}
		return existing, nil
	}
	return nil, fmt.Errorf("failed to insert user %d: %w", user.UserID, err)
}

// TouchUser bumps the command counter and moves last_activity forward.
func (s *MongoUserStore) TouchUser(ctx context.Context, user *models.User, at time.Time) error {
	update := bson.M{
		"$max": bson.M{"last_activity": at},
		"$inc": bson.M{"command_count": 1},
	}
	return s.updateOne(ctx, user.UserID, update, "update activity")
}

// BlockUser sets the blocked flag together with reason and date.
func (s *MongoUserStore) BlockUser(ctx context.Context, user *models.User, reason string, at time.Time) error {
	if reason == "" {
		reason = models.DefaultBlockReason
	}
	update := bson.M{
		"$set": bson.M{
			"is_blocked":   true,
			"block_reason": reason,
			"block_date":   at,
		},
	}
	return s.updateOne(ctx, user.UserID, update, "block")
}

// UnblockUser clears the blocked flag and removes the block metadata.
func (s *MongoUserStore) UnblockUser(ctx context.Context, user *models.User) error {
	update := bson.M{
		"$set":   bson.M{"is_blocked": false},
		"$unset": bson.M{"block_reason": "", "block_date": ""},
	}
	return s.updateOne(ctx, user.UserID, update, "unblock")
}

// AddWarning increments the warnings counter.
func (s *MongoUserStore) AddWarning(ctx context.Context, user *models.User) error {
	return s.updateOne(ctx, user.UserID, bson.M{"$inc": bson.M{"warnings_count": 1}}, "add warning")
}

// Stats counts users with native count queries.
func (s *MongoUserStore) Stats(ctx context.Context, today, week time.Time) (models.UserStats, error) {
	stats := models.UserStats{Backend: models.StorageMongo}

	counts := []struct {
		target *int64
		filter bson.M
		name   string
	}{
		{&stats.Total, bson.M{}, "total"},
		{&stats.Blocked, bson.M{"is_blocked": true}, "blocked"},
		{&stats.ActiveToday, bson.M{"last_activity": bson.M{"$gte": today}}, "active today"},
		{&stats.ActiveWeek, bson.M{"last_activity": bson.M{"$gte": week}}, "active week"},
		{&stats.NewToday, bson.M{"registration_date": bson.M{"$gte": today}}, "new today"},
	}
	for _, c := range counts {
		n, err := s.collection.CountDocuments(ctx, c.filter)
		if err != nil {
			return models.UserStats{Backend: models.StorageMongo}, fmt.Errorf("failed to count %s users: %w", c.name, err)
		}
		*c.target = n
	}
	return stats, nil
}

func (s *MongoUserStore) updateOne(ctx context.Context, userID int64, update bson.M, op string) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to %s for user %d: %w", op, userID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to %s for user %d: %w", op, userID, ErrUserNotFound)
	}
	return nil
}
