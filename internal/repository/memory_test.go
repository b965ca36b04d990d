package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"travelbook/internal/booking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()

	t.Run("SaveAndGet", func(t *testing.T) {
		session := testSession("s-1")
		require.NoError(t, repo.SaveSession(ctx, session))

		got, err := repo.GetSession(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, session, got)
	})

	t.Run("StoresCopies", func(t *testing.T) {
		session := testSession("s-2")
		require.NoError(t, repo.SaveSession(ctx, session))

		session.Phase = booking.PhaseAwaitingPayment
		got, _ := repo.GetSession(ctx, "s-2")
		assert.Equal(t, booking.PhaseCollectingInfo, got.Phase, "unsaved change must not leak")

		got.SpecialRequests = "mutated"
		again, _ := repo.GetSession(ctx, "s-2")
		assert.Empty(t, again.SpecialRequests)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteSession(ctx, "s-1"))
		got, err := repo.GetSession(ctx, "s-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		now := time.Now()
		repo.now = func() time.Time { return now }
		require.NoError(t, repo.SaveSession(ctx, testSession("s-3")))

		repo.now = func() time.Time { return now.Add(2 * time.Hour) }
		got, err := repo.GetSession(ctx, "s-3")
		require.NoError(t, err)
		assert.Nil(t, got)
		repo.now = time.Now
	})

	t.Run("RateLimit", func(t *testing.T) {
		now := time.Now()
		repo.now = func() time.Time { return now }
		defer func() { repo.now = time.Now }()

		allowed, _ := repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		assert.False(t, allowed)

		allowed, _ = repo.CheckRateLimit(ctx, "client-b", 2, time.Second)
		assert.True(t, allowed, "keys are independent")

		repo.now = func() time.Time { return now.Add(1100 * time.Millisecond) }
		allowed, _ = repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		assert.True(t, allowed)
	})
}

func TestMemorySessionRepositoryCleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Minute)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return start }

	for i := 0; i < 1000; i++ {
		require.NoError(t, repo.SaveSession(ctx, testSession(fmt.Sprintf("old-%d", i))))
	}
	_, err := repo.CheckRateLimit(ctx, "client-a", 5, time.Minute)
	require.NoError(t, err)

	later := start.Add(24 * time.Hour)
	repo.now = func() time.Time { return later }
	require.NoError(t, repo.SaveSession(ctx, testSession("fresh")))

	assert.Equal(t, 1001, repo.Cleanup(later))
	assert.Equal(t, 1, repo.size())

	got, err := repo.GetSession(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, got)

	t.Run("StartCleanupStopsWithContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			repo.StartCleanup(cctx, time.Millisecond)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("cleanup loop did not stop")
		}
	})
}
