package database

import (
	"context"
	"testing"
	"time"

	"help112-bot/internal/database/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func userDoc(id int64, count int64) bson.D {
	reg := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "user_id", Value: id},
		{Key: "username", Value: "medic"},
		{Key: "first_name", Value: nil},
		{Key: "last_name", Value: nil},
		{Key: "registration_date", Value: reg},
		{Key: "last_activity", Value: reg.Add(time.Hour)},
		{Key: "command_count", Value: count},
		{Key: "warnings_count", Value: int64(0)},
		{Key: "is_blocked", Value: false},
	}
}

func TestMongoUserStore_FindUser(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "emergency_bot.users", mtest.FirstBatch, userDoc(42, 3)))

		u, err := store.FindUser(context.Background(), 42)
		require.NoError(mt, err)
		assert.Equal(mt, int64(42), u.UserID)
		require.NotNil(mt, u.Username)
		assert.Equal(mt, "medic", *u.Username)
		assert.Nil(mt, u.FirstName)
		assert.Equal(mt, int64(3), u.CommandCount)
	})

	mt.Run("missing", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "emergency_bot.users", mtest.FirstBatch))

		_, err := store.FindUser(context.Background(), 42)
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})

	mt.Run("server error", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		_, err := store.FindUser(context.Background(), 42)
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrUserNotFound)
	})
}

func TestMongoUserStore_CreateUser(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	mt.Run("inserted", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := models.NewUser(42, models.StringPtr("medic"), nil, nil, now)
		got, err := store.CreateUser(context.Background(), u)
		require.NoError(mt, err)
		assert.Same(mt, u, got)
	})

	mt.Run("lost the race", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateCursorResponse(0, "emergency_bot.users", mtest.FirstBatch, userDoc(42, 9)),
		)

		got, err := store.CreateUser(context.Background(), models.NewUser(42, nil, nil, nil, now))
		require.NoError(mt, err)
		assert.Equal(mt, int64(9), got.CommandCount, "the concurrently created record wins")
	})

	mt.Run("write failure", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "validation failed"}))

		_, err := store.CreateUser(context.Background(), models.NewUser(42, nil, nil, nil, now))
		assert.Error(mt, err)
	})
}

func TestMongoUserStore_Updates(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	user := &models.User{UserID: 42}
	at := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	matched := func() bson.D {
		return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1})
	}

	mt.Run("matched", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(matched(), matched(), matched(), matched())

		assert.NoError(mt, store.TouchUser(ctx, user, at))
		assert.NoError(mt, store.BlockUser(ctx, user, "", at))
		assert.NoError(mt, store.UnblockUser(ctx, user))
		assert.NoError(mt, store.AddWarning(ctx, user))
	})

	mt.Run("no such user", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := store.TouchUser(ctx, user, at)
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})
}

func TestMongoUserStore_Stats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	today := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	week := today.AddDate(0, 0, -7)

	count := func(n int32) bson.D {
		return mtest.CreateCursorResponse(0, "emergency_bot.users", mtest.FirstBatch, bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: n}})
	}

	mt.Run("counts", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(count(10), count(2), count(4), count(7), count(1))

		stats, err := store.Stats(ctx, today, week)
		require.NoError(mt, err)
		assert.Equal(mt, models.UserStats{
			Total:       10,
			Blocked:     2,
			ActiveToday: 4,
			ActiveWeek:  7,
			NewToday:    1,
			Backend:     models.StorageMongo,
		}, stats)
	})

	mt.Run("partial failure", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(count(10), mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		stats, err := store.Stats(ctx, today, week)
		require.Error(mt, err)
		assert.Equal(mt, models.UserStats{Backend: models.StorageMongo}, stats)
	})
}

func TestMongoCommandLogger_LogCommand(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		logger := NewMongoCommandLogger(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := logger.LogCommand(context.Background(), models.CommandLog{UserID: 42, Command: "/stats", Success: true})
		assert.NoError(mt, err)
	})

	mt.Run("failure", func(mt *mtest.T) {
		logger := NewMongoCommandLogger(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "rejected"}))

		err := logger.LogCommand(context.Background(), models.CommandLog{UserID: 42, Command: "/stats"})
		assert.Error(mt, err)
	})
}
