package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/group-access/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) UpsertSubscription(ctx context.Context, sub models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *RepoMock) ListExpiredSubscriptions(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *RepoMock) DeactivateSubscription(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	if args.Bool(0) {
		*result.(*models.Subscription) = args.Get(2).(models.Subscription)
	}
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestGet_CacheHit(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	cached := models.Subscription{UserID: 777, Tier: "monthly", IsActive: true}
	cache.On("Get", "subscription:777", mock.Anything).Return(true, nil, cached).Once()

	svc := New(repo, cache, newNoopLogger())
	sub, err := svc.Get(context.Background(), 777)

	require.NoError(t, err)
	assert.Equal(t, "monthly", sub.Tier)
	repo.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
}

func TestGet_CacheMissFallsBackToRepo(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	stored := &models.Subscription{UserID: 777, Tier: "quarterly", IsActive: true}
	cache.On("Get", "subscription:777", mock.Anything).Return(false, nil).Once()
	repo.On("GetSubscription", mock.Anything, int64(777)).Return(stored, nil).Once()
	cache.On("Set", "subscription:777", stored, time.Hour).Return(nil).Once()

	svc := New(repo, cache, newNoopLogger())
	sub, err := svc.Get(context.Background(), 777)

	require.NoError(t, err)
	assert.Equal(t, "quarterly", sub.Tier)
	cache.AssertExpectations(t)
}

func TestGet_CacheErrorIsNotFatal(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	stored := &models.Subscription{UserID: 777, Tier: "monthly", IsActive: true}
	cache.On("Get", "subscription:777", mock.Anything).
		Return(false, errors.New("redis down")).Once()
	repo.On("GetSubscription", mock.Anything, int64(777)).Return(stored, nil).Once()
	cache.On("Set", "subscription:777", stored, time.Hour).
		Return(errors.New("redis down")).Once()

	svc := New(repo, cache, newNoopLogger())
	sub, err := svc.Get(context.Background(), 777)

	require.NoError(t, err)
	assert.Equal(t, "monthly", sub.Tier)
}

func TestActivate_UpsertsAndCaches(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	e := time.Now().AddDate(0, 1, 0)
	sub := models.Subscription{UserID: 777, Tier: "monthly", ExpiresAt: &e, IsActive: true}
	repo.On("UpsertSubscription", mock.Anything, sub).Return(nil).Once()
	cache.On("Set", "subscription:777", &sub, time.Hour).Return(nil).Once()

	svc := New(repo, cache, newNoopLogger())
	err := svc.Activate(context.Background(), sub)

	require.NoError(t, err)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestActivate_RepoFailure(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	repo.On("UpsertSubscription", mock.Anything, mock.Anything).
		Return(errors.New("db down")).Once()

	svc := New(repo, cache, newNoopLogger())
	err := svc.Activate(context.Background(), models.Subscription{UserID: 777, Tier: "monthly"})

	require.Error(t, err)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivate_InvalidatesCache(t *testing.T) {
	repo := new(RepoMock)
	cache := new(CacheMock)

	cache.On("Invalidate", "subscription:777").Return(nil).Once()
	repo.On("DeactivateSubscription", mock.Anything, int64(777)).Return(1, nil).Once()

	svc := New(repo, cache, newNoopLogger())
	n, err := svc.Deactivate(context.Background(), 777)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	cache.AssertExpectations(t)
}
