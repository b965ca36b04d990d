// Package payment is the manual-transfer payment collaborator. It records a
// payment order and tells the traveller where to send the money; settlement
// happens outside the system.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"travelbook/internal/config"
	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type TransferGateway struct {
	store  domain.PaymentOrderStore
	cfg    config.PaymentConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewTransferGateway(store domain.PaymentOrderStore, cfg config.PaymentConfig, logger *zerolog.Logger) *TransferGateway {
	return &TransferGateway{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Submit stores the request as an order awaiting transfer.
func (g *TransferGateway) Submit(ctx context.Context, req models.BookingRequest) (models.PaymentOutcome, error) {
	if !req.PaymentMethod.IsValid() {
		return models.PaymentOutcome{}, fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("encode booking request: %w", err)
	}

	order := &models.PaymentOrder{
		Reference:  g.newReference(),
		SessionID:  req.SessionID,
		ServiceID:  req.ServiceID,
		IdentityID: req.IdentityID,
		Method:     req.PaymentMethod,
		Amount:     req.QuotedTotal,
		Currency:   req.Currency,
		Status:     models.PaymentOrderAwaitingTransfer,
		Payload:    string(raw),
		CreatedAt:  g.now().UTC(),
	}
	if err := g.store.CreatePaymentOrder(ctx, order); err != nil {
		return models.PaymentOutcome{}, err
	}

	g.logger.Info().
		Str("reference", order.Reference).
		Str("method", string(order.Method)).
		Int64("amount", int64(order.Amount)).
		Msg("payment order created")

	return models.PaymentOutcome{
		Reference:    order.Reference,
		Status:       order.Status,
		Instructions: g.Instructions(order),
	}, nil
}

// Order looks up a recorded order by reference.
func (g *TransferGateway) Order(ctx context.Context, reference string) (*models.PaymentOrder, error) {
	return g.store.GetPaymentOrder(ctx, reference)
}

// Instructions tells the payer where to transfer and which reference to quote.
func (g *TransferGateway) Instructions(order *models.PaymentOrder) string {
	amount := order.Amount.Format(order.Currency)
	switch order.Method {
	case models.PaymentWalletTransfer:
		return fmt.Sprintf("Send %s via %s to %s. Message: %s",
			amount, g.cfg.WalletName, g.cfg.WalletAccount, order.Reference)
	default:
		return fmt.Sprintf("Transfer %s to %s account %s (%s). Transfer note: %s",
			amount, g.cfg.BankName, g.cfg.BankAccount, g.cfg.AccountHolder, order.Reference)
	}
}

// newReference builds a short reference a person can type into a bank app.
func (g *TransferGateway) newReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(g.cfg.ReferencePrefix + id[:10])
}
