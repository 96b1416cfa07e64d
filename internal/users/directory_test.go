package users

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"help112-bot/internal/database"
	"help112-bot/internal/database/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserStore is a mock implementing database.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Kind() models.StorageKind {
	return m.Called().Get(0).(models.StorageKind)
}

func (m *MockUserStore) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) TouchUser(ctx context.Context, user *models.User, at time.Time) error {
	return m.Called(ctx, user, at).Error(0)
}

func (m *MockUserStore) BlockUser(ctx context.Context, user *models.User, reason string, at time.Time) error {
	return m.Called(ctx, user, reason, at).Error(0)
}

func (m *MockUserStore) UnblockUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserStore) AddWarning(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserStore) Stats(ctx context.Context, today, week time.Time) (models.UserStats, error) {
	args := m.Called(ctx, today, week)
	return args.Get(0).(models.UserStats), args.Error(1)
}

var (
	errBoom = errors.New("disk on fire")
	noon    = time.Date(2024, time.June, 5, 12, 30, 0, 0, time.Local)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTextDirectory(t *testing.T, now func() time.Time) (*Directory, *database.FileStore) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := database.NewFileStore(database.NewTextFile(filepath.Join(t.TempDir(), "users.txt"), logger))
	return NewDirectory(store, logger, WithClock(now)), store
}

func TestGetOrCreate_CreatesOnceAndReturnsExisting(t *testing.T) {
	ctx := context.Background()
	dir, store := newTextDirectory(t, fixedClock(noon))

	first := dir.GetOrCreate(ctx, 42, "medic", "Ann", "")
	require.NotNil(t, first)
	assert.Equal(t, noon, first.RegistrationDate)
	assert.Equal(t, noon, first.LastActivity)
	assert.Zero(t, first.CommandCount)
	assert.Zero(t, first.WarningsCount)
	assert.False(t, first.IsBlocked)
	require.NotNil(t, first.Username)
	assert.Equal(t, "medic", *first.Username)
	assert.Nil(t, first.LastName, "empty Telegram fields are stored as absent")

	dir.UpdateActivity(ctx, first)
	second := dir.GetOrCreate(ctx, 42, "renamed", "Ann", "")
	assert.Equal(t, int64(1), second.CommandCount, "existing record is returned, not recreated")
	assert.Equal(t, "medic", *second.Username)

	stats, err := store.Stats(ctx, noon.Add(-time.Hour), noon.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestGetOrCreate_ConcurrentFirstContact(t *testing.T) {
	ctx := context.Background()
	dir, store := newTextDirectory(t, time.Now)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := dir.GetOrCreate(ctx, 5, "", "Racer", "")
			assert.Equal(t, int64(5), u.UserID)
		}()
	}
	wg.Wait()

	stats, err := store.Stats(ctx, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestGetOrCreate_StorageErrorReturnsDefault(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	store := new(MockUserStore)
	store.On("FindUser", ctx, int64(3)).Return(nil, errBoom).Once()

	dir := NewDirectory(store, logger, WithClock(fixedClock(noon)))
	u := dir.GetOrCreate(ctx, 3, "x", "", "")

	require.NotNil(t, u)
	assert.Equal(t, int64(3), u.UserID)
	assert.Equal(t, noon, u.RegistrationDate)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestUpdateActivity_IncrementsAndIsMonotonic(t *testing.T) {
	ctx := context.Background()
	now := noon
	dir, _ := newTextDirectory(t, func() time.Time { return now })

	u := dir.GetOrCreate(ctx, 1, "", "", "")
	for i := 1; i <= 3; i++ {
		now = now.Add(time.Minute)
		dir.UpdateActivity(ctx, u)
		assert.Equal(t, int64(i), u.CommandCount)
		assert.Equal(t, now, u.LastActivity)
	}

	// a clock going backwards never moves last activity back
	now = noon.Add(-time.Hour)
	dir.UpdateActivity(ctx, u)
	assert.Equal(t, int64(4), u.CommandCount)
	assert.Equal(t, noon.Add(3*time.Minute), u.LastActivity)

	stored, ok := dir.Lookup(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, int64(4), stored.CommandCount)
	assert.True(t, stored.LastActivity.Equal(noon.Add(3*time.Minute)))
}

func TestUpdateActivity_FailureLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	store := new(MockUserStore)
	u := &models.User{UserID: 8, LastActivity: noon.Add(-time.Hour)}
	store.On("TouchUser", ctx, u, noon).Return(errBoom).Once()

	dir := NewDirectory(store, logger, WithClock(fixedClock(noon)))
	dir.UpdateActivity(ctx, u)

	assert.Zero(t, u.CommandCount)
	assert.Equal(t, noon.Add(-time.Hour), u.LastActivity)
	store.AssertExpectations(t)
}

func TestBlockUnblockAndWarnings(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTextDirectory(t, fixedClock(noon))

	u := dir.GetOrCreate(ctx, 77, "spammer", "", "")
	dir.Block(ctx, u, "")
	require.True(t, u.IsBlocked)
	assert.Equal(t, models.DefaultBlockReason, *u.BlockReason)
	assert.Equal(t, noon, *u.BlockDate)

	stored, ok := dir.Lookup(ctx, 77)
	require.True(t, ok)
	assert.True(t, stored.IsBlocked)
	require.NotNil(t, stored.BlockReason)
	assert.Equal(t, models.DefaultBlockReason, *stored.BlockReason)

	dir.AddWarning(ctx, u)
	dir.AddWarning(ctx, u)
	assert.Equal(t, int64(2), u.WarningsCount)

	dir.Unblock(ctx, u)
	assert.False(t, u.IsBlocked)
	assert.Nil(t, u.BlockReason)
	assert.Nil(t, u.BlockDate)

	stored, ok = dir.Lookup(ctx, 77)
	require.True(t, ok)
	assert.False(t, stored.IsBlocked)
	assert.Nil(t, stored.BlockReason)
	assert.Equal(t, int64(2), stored.WarningsCount)
}

func TestLookup_Missing(t *testing.T) {
	dir, _ := newTextDirectory(t, time.Now)
	_, ok := dir.Lookup(context.Background(), 404)
	assert.False(t, ok)
}

func TestStats_EmptyDirectory(t *testing.T) {
	dir, _ := newTextDirectory(t, time.Now)

	stats := dir.Stats(context.Background())

	assert.Equal(t, models.UserStats{Backend: models.StorageTextFile}, stats)
}

func TestStats_TodayAndWeekBoundaries(t *testing.T) {
	ctx := context.Background()
	now := noon
	dir, _ := newTextDirectory(t, func() time.Time { return now })

	// registered 10 days ago, active yesterday
	now = noon.AddDate(0, 0, -10)
	old := dir.GetOrCreate(ctx, 1, "", "", "")
	now = noon.AddDate(0, 0, -1)
	dir.UpdateActivity(ctx, old)

	// registered and active today
	now = noon
	dir.GetOrCreate(ctx, 2, "", "", "")

	// registered 8 days ago, silent since, blocked
	now = noon.AddDate(0, 0, -8)
	silent := dir.GetOrCreate(ctx, 3, "", "", "")
	dir.Block(ctx, silent, "flood")

	now = noon
	stats := dir.Stats(ctx)

	assert.False(t, stats.Err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Blocked)
	assert.Equal(t, int64(1), stats.ActiveToday)
	assert.Equal(t, int64(2), stats.ActiveWeek)
	assert.Equal(t, int64(1), stats.NewToday)
	assert.Equal(t, models.StorageTextFile, stats.Backend)
}

func TestStats_ErrorIsFlagged(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	store := new(MockUserStore)
	store.On("Kind").Return(models.StorageMongo)
	store.On("Stats", ctx, mock.Anything, mock.Anything).Return(models.UserStats{Total: 99}, errBoom).Once()

	dir := NewDirectory(store, logger, WithClock(fixedClock(noon)))
	stats := dir.Stats(ctx)

	assert.Equal(t, models.UserStats{Backend: models.StorageMongo, Err: true}, stats)
}

func TestStats_PassesMidnightAndWeekStart(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	store := new(MockUserStore)
	midnight := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.Local)
	store.On("Kind").Return(models.StorageJSON)
	store.On("Stats", ctx, midnight, noon.Add(-7*24*time.Hour)).Return(models.UserStats{Total: 4}, nil).Once()

	dir := NewDirectory(store, logger, WithClock(fixedClock(noon)))
	stats := dir.Stats(ctx)

	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, models.StorageJSON, stats.Backend)
	store.AssertExpectations(t)
}
