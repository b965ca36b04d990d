package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/events"
	"travelbook/internal/metrics"
	"travelbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskBookingRequest = "booking_request"
	TaskDecision       = "decision"
)

// ledgerPayload is persisted in SyncTask.Payload as JSON.
type ledgerPayload struct {
	Request   *models.BookingRequest   `json:"request,omitempty"`
	Reference string                   `json:"reference,omitempty"`
	Decision  *models.ApprovalDecision `json:"decision,omitempty"`
}

// LedgerWorker consumes sync_queue tasks and appends them to the ledger spreadsheet.
type LedgerWorker struct {
	queue         domain.SyncQueue
	ledger        domain.LedgerWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	local         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewLedgerWorker builds a worker with sane defaults. redisClient may be nil.
func NewLedgerWorker(
	queue domain.SyncQueue,
	ledger domain.LedgerWriter,
	redisClient *redis.Client,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *LedgerWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &LedgerWorker{
		queue:         queue,
		ledger:        ledger,
		redis:         redisClient,
		retryPolicy:   retry,
		local:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "ledger:queue",
		deadLetterKey: "ledger:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// Subscribe enqueues ledger rows for booking requests and approval decisions.
func (w *LedgerWorker) Subscribe(ctx context.Context, bus *events.EventBus) {
	bus.Subscribe(events.EventBookingRequested, func(ev *events.Event) error {
		var p events.BookingRequestedPayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return w.EnqueueBookingRequest(ctx, &p.Request, p.Reference)
	})

	bus.Subscribe(events.EventProviderDecided, func(ev *events.Event) error {
		var p events.ProviderEventPayload
		if err := ev.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return w.EnqueueDecision(ctx, &models.ApprovalDecision{
			ID:         p.DecisionID,
			ProviderID: p.ProviderID,
			Action:     models.ApprovalAction(p.Action),
			Reason:     p.Reason,
			DecidedBy:  p.DecidedBy,
			DecidedAt:  p.At,
		})
	})
}

func (w *LedgerWorker) EnqueueBookingRequest(ctx context.Context, req *models.BookingRequest, reference string) error {
	if req == nil || reference == "" {
		return errors.New("booking request and reference are required")
	}
	return w.enqueue(ctx, TaskBookingRequest, reference, ledgerPayload{Request: req, Reference: reference})
}

func (w *LedgerWorker) EnqueueDecision(ctx context.Context, decision *models.ApprovalDecision) error {
	if decision == nil || decision.ID == "" {
		return errors.New("decision id is required")
	}
	return w.enqueue(ctx, TaskDecision, decision.ID, ledgerPayload{Decision: decision})
}

// enqueue persists the task and schedules it via redis or the in-memory queue.
func (w *LedgerWorker) enqueue(ctx context.Context, taskType, entityID string, payload ledgerPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		EntityID:  entityID,
		Payload:   string(raw),
		Status:    models.SyncStatusPending,
		CreatedAt: time.Now(),
	}
	if err := w.queue.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Msg("ledger_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.local <- task:
	default:
		// задача останется в БД и будет подобрана опросом
		w.logger.Warn().Int64("task_id", task.ID).Msg("ledger_worker: memory queue full")
	}
	return nil
}

// Start runs the main loop until ctx is done.
func (w *LedgerWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("ledger_worker: started")
	defer w.logger.Info().Msg("ledger_worker: stopped")

	if failed, err := w.queue.GetFailedSyncTasks(ctx); err == nil && len(failed) > 0 {
		w.logger.Warn().Int("count", len(failed)).Msg("ledger_worker: failed tasks need attention")
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if !w.step(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// step processes whatever work is available and reports whether there was any.
func (w *LedgerWorker) step(ctx context.Context) bool {
	if t, ok := w.tryLocalQueue(); ok {
		w.processTask(ctx, &t)
		return true
	}
	if t, ok := w.tryRedis(ctx); ok {
		w.processTask(ctx, &t)
		return true
	}

	tasks, err := w.queue.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("ledger_worker: fetch pending")
		return false
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks) > 0
}

func (w *LedgerWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.local:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *LedgerWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Msg("ledger_worker: redis BRPOP error")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("ledger_worker: decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *LedgerWorker) processTask(ctx context.Context, task *models.SyncTask) {
	var payload ledgerPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handle(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncLedgerTask(task.TaskType, models.SyncStatusCompleted)
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("ledger_worker: mark completed")
	}
}

func (w *LedgerWorker) handle(ctx context.Context, taskType string, payload ledgerPayload) error {
	switch taskType {
	case TaskBookingRequest:
		if payload.Request == nil {
			return errors.New("booking request payload missing")
		}
		return w.ledger.AppendBookingRequest(ctx, payload.Request, payload.Reference)
	case TaskDecision:
		if payload.Decision == nil {
			return errors.New("decision payload missing")
		}
		return w.ledger.AppendDecision(ctx, payload.Decision)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *LedgerWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncLedgerTask(task.TaskType, models.SyncStatusRetry)
	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("ledger_worker: mark retry")
	}
}

func (w *LedgerWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncLedgerTask(task.TaskType, models.SyncStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Msg("ledger_worker: task failed")
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("ledger_worker: mark failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("ledger_worker: deadletter push")
		}
	}
}

func (w *LedgerWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
