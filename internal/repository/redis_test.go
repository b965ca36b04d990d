package repository

import (
	"context"
	"testing"
	"time"

	"travelbook/internal/booking"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SaveAndGet", func(t *testing.T) {
		session := testSession("s-1")
		in := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
		out := in.AddDate(0, 0, 3)
		require.NoError(t, session.UpdateStay(booking.StayUpdate{CheckIn: &in, CheckOut: &out}, in))

		require.NoError(t, repo.SaveSession(ctx, session))
		assert.True(t, s.Exists("booking_session:s-1"))
		assert.Equal(t, time.Hour, s.TTL("booking_session:s-1"))

		got, err := repo.GetSession(ctx, "s-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, session.QuotedTotal, got.QuotedTotal)
		assert.Equal(t, "u-1", got.Identity.ID)
		assert.True(t, in.Equal(*got.Stay.CheckIn))
		assert.Equal(t, booking.PhaseCollectingInfo, got.Phase)
	})

	t.Run("Missing", func(t *testing.T) {
		got, err := repo.GetSession(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Expires", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, testSession("s-2")))
		s.FastForward(2 * time.Hour)
		got, err := repo.GetSession(ctx, "s-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.SaveSession(ctx, testSession("s-3")))
		require.NoError(t, repo.DeleteSession(ctx, "s-3"))
		assert.False(t, s.Exists("booking_session:s-3"))
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		require.NoError(t, s.Set("booking_session:bad", "{not json"))
		_, err := repo.GetSession(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, err := repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		assert.False(t, allowed)

		s.FastForward(2 * time.Second)
		allowed, _ = repo.CheckRateLimit(ctx, "client-a", 2, time.Second)
		assert.True(t, allowed)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		_, err := repo.GetSession(ctx, "s-1")
		assert.Error(t, err)
	})
}

func TestRedisSessionRepositoryNilClient(t *testing.T) {
	repo := NewRedisSessionRepository(nil, time.Hour)
	ctx := context.Background()

	_, err := repo.GetSession(ctx, "x")
	assert.Error(t, err)
	assert.Error(t, repo.SaveSession(ctx, testSession("x")))
	assert.Error(t, repo.DeleteSession(ctx, "x"))
	_, err = repo.CheckRateLimit(ctx, "x", 1, time.Second)
	assert.Error(t, err)
}
