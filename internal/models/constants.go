package models

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const (
	PaymentOrderAwaitingTransfer = "awaiting_transfer"
)

const (
	// DefaultSessionTTL время жизни сессии бронирования в секундах
	DefaultSessionTTL = 2 * 60 * 60

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128

	// DefaultPeakMultiplier используется, когда в каталоге множитель не задан
	DefaultPeakMultiplier = 1.0

	// RateLimitBurst запас запросов по умолчанию для лимитера API
	RateLimitBurst = 5
)

const ParseModeMarkdown = "Markdown"
