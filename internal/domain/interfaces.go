package domain

import (
	"context"
	"time"

	"travelbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// IdentityProvider returns the current snapshot of an identity. A nil identity
// with a nil error means the id is unknown.
type IdentityProvider interface {
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
}

type IdentityStore interface {
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error)
	ListPendingProviders(ctx context.Context) ([]*models.Identity, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error)
	ApplyDecision(ctx context.Context, target *models.Identity, decision *models.ApprovalDecision) error
	ListDecisions(ctx context.Context, since time.Time) ([]*models.ApprovalDecision, error)
}

type PaymentOrderStore interface {
	CreatePaymentOrder(ctx context.Context, order *models.PaymentOrder) error
	GetPaymentOrder(ctx context.Context, reference string) (*models.PaymentOrder, error)
}

type PaymentGateway interface {
	Submit(ctx context.Context, req models.BookingRequest) (models.PaymentOutcome, error)
}

type ServiceCatalog interface {
	ListServices(ctx context.Context) ([]*models.Service, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// LedgerWriter appends audit rows to the external ledger spreadsheet.
type LedgerWriter interface {
	AppendBookingRequest(ctx context.Context, req *models.BookingRequest, reference string) error
	AppendDecision(ctx context.Context, decision *models.ApprovalDecision) error
}

type SyncQueue interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
}
