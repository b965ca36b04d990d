package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"travelbook/internal/models"
)

func (db *DB) CreatePaymentOrder(ctx context.Context, order *models.PaymentOrder) error {
	query := `INSERT INTO payment_orders
        (reference, session_id, service_id, identity_id, method, amount, currency, status, payload, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		order.Reference,
		order.SessionID,
		order.ServiceID,
		order.IdentityID,
		order.Method,
		order.Amount,
		order.Currency,
		order.Status,
		order.Payload,
		order.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	return nil
}

// GetPaymentOrder returns nil, nil for an unknown reference.
func (db *DB) GetPaymentOrder(ctx context.Context, reference string) (*models.PaymentOrder, error) {
	query := `SELECT reference, session_id, service_id, identity_id, method, amount, currency, status, payload, created_at
        FROM payment_orders WHERE reference = ?`

	var o models.PaymentOrder
	err := db.QueryRowContext(ctx, query, reference).Scan(
		&o.Reference,
		&o.SessionID,
		&o.ServiceID,
		&o.IdentityID,
		&o.Method,
		&o.Amount,
		&o.Currency,
		&o.Status,
		&o.Payload,
		&o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	return &o, nil
}
