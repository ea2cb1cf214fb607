package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	"github.com/noah-isme/sma-agenda-api/pkg/config"
	"github.com/noah-isme/sma-agenda-api/pkg/jobs"
)

// Notifier delivers workflow decision notifications to entry owners.
// Delivery is best-effort: implementations must never surface errors
// back to the caller, since a lost notification must not fail the
// decision that produced it.
type Notifier interface {
	NotifyDecision(ctx context.Context, payload models.NotificationPayload)
}

// NotificationSink is the terminal delivery step for a notification
// (log line, mail gateway, push provider).
type NotificationSink func(ctx context.Context, payload models.NotificationPayload) error

// LogSink writes notifications to the application log. It is the
// default sink until a real delivery channel is wired up.
func LogSink(logger *zap.Logger) NotificationSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, payload models.NotificationPayload) error {
		logger.Info("workflow decision notification",
			zap.String("recipient_id", payload.RecipientID),
			zap.String("entry_id", payload.EntryID),
			zap.String("kind", string(payload.EntryKind)),
			zap.String("decision", string(payload.Decision)),
			zap.String("decided_by", payload.DecidedBy),
		)
		return nil
	}
}

// QueueNotifier dispatches notifications through a background worker
// queue so decision requests never block on delivery.
type QueueNotifier struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewQueueNotifier builds a notifier backed by an in-memory job queue.
func NewQueueNotifier(cfg config.NotificationsConfig, sink NotificationSink, metrics *MetricsService, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &QueueNotifier{metrics: metrics, logger: logger}
	n.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(models.NotificationPayload)
		if !ok {
			n.logger.Error("unexpected notification payload type", zap.String("job_id", job.ID))
			return nil
		}
		if err := sink(ctx, payload); err != nil {
			n.recordFailure()
			return err
		}
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// NotifyDecision enqueues a decision notification. Enqueue failures
// are logged and counted, never returned.
func (n *QueueNotifier) NotifyDecision(_ context.Context, payload models.NotificationPayload) {
	job := jobs.Job{
		ID:      fmt.Sprintf("notify-%s-%d", payload.EntryID, time.Now().UnixNano()),
		Type:    "entry_decision",
		Payload: payload,
	}
	if err := n.queue.Enqueue(job); err != nil {
		n.recordFailure()
		n.logger.Warn("failed to enqueue decision notification",
			zap.String("entry_id", payload.EntryID), zap.Error(err))
	}
}

func (n *QueueNotifier) recordFailure() {
	if n.metrics != nil {
		n.metrics.RecordNotificationFailure()
	}
}

// NopNotifier drops every notification. Used when notifications are
// disabled in configuration.
type NopNotifier struct{}

func (NopNotifier) NotifyDecision(context.Context, models.NotificationPayload) {}
