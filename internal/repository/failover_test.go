package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"travelbook/internal/booking"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetSession(ctx context.Context, id string) (*booking.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Session), args.Error(1)
}

func (m *mockRepo) SaveSession(ctx context.Context, session *booking.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockRepo) DeleteSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverSessionRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		session := testSession("s-1")
		primary.On("GetSession", ctx, "s-1").Return(session, nil).Once()

		got, err := repo.GetSession(ctx, "s-1")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.False(t, repo.IsDegraded())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		session := testSession("s-2")
		primary.On("GetSession", ctx, "s-2").Return(nil, errors.New("fail")).Once()
		fallback.On("GetSession", ctx, "s-2").Return(session, nil).Once()

		got, err := repo.GetSession(ctx, "s-2")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.True(t, repo.IsDegraded())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		session := testSession("s-3")
		fallback.On("SaveSession", ctx, session).Return(nil).Once()

		assert.NoError(t, repo.SaveSession(ctx, session))
		primary.AssertNotCalled(t, "SaveSession", ctx, session)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { repo.now = time.Now }()

		primary.On("DeleteSession", ctx, "s-3").Return(nil).Once()
		fallback.On("DeleteSession", ctx, "s-3").Return(nil).Once()

		assert.NoError(t, repo.DeleteSession(ctx, "s-3"))
		assert.False(t, repo.IsDegraded())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("GetSession", ctx, "s-4").Return(nil, errors.New("still fail")).Once()
		fallback.On("GetSession", ctx, "s-4").Return(nil, nil).Once()

		got, err := repo.GetSession(ctx, "s-4")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.True(t, repo.IsDegraded())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "client", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "client", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "client", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.IsDegraded())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
