package repository

import (
	"context"
	"time"

	"travelbook/internal/booking"
)

// SessionRepository keeps booking sessions between requests. Get returns
// nil, nil for a missing or expired session.
type SessionRepository interface {
	GetSession(ctx context.Context, id string) (*booking.Session, error)
	SaveSession(ctx context.Context, session *booking.Session) error
	DeleteSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
