package database

import (
	"context"
	"testing"
	"time"

	"travelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentOrders(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	order := &models.PaymentOrder{
		Reference:  "TB-20250301-ABCD",
		SessionID:  "s-1",
		ServiceID:  "villa-1",
		IdentityID: "t-1",
		Method:     models.PaymentBankTransfer,
		Amount:     3_600_000,
		Currency:   "VND",
		Status:     models.PaymentOrderAwaitingTransfer,
		Payload:    `{}`,
		CreatedAt:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.CreatePaymentOrder(ctx, order))

	found, err := db.GetPaymentOrder(ctx, order.Reference)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.Money(3_600_000), found.Amount)
	assert.Equal(t, models.PaymentBankTransfer, found.Method)
	assert.True(t, order.CreatedAt.Equal(found.CreatedAt))

	assert.Error(t, db.CreatePaymentOrder(ctx, order), "reference is unique")

	missing, err := db.GetPaymentOrder(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
