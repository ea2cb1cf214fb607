package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-agenda-api/internal/models"
	"github.com/noah-isme/sma-agenda-api/pkg/config"
)

func testNotificationsConfig() config.NotificationsConfig {
	return config.NotificationsConfig{
		Enabled:    true,
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	}
}

func TestQueueNotifierDeliversPayload(t *testing.T) {
	delivered := make(chan models.NotificationPayload, 1)
	sink := func(_ context.Context, payload models.NotificationPayload) error {
		delivered <- payload
		return nil
	}

	notifier := NewQueueNotifier(testNotificationsConfig(), sink, nil, nil)
	notifier.Start(context.Background())
	defer notifier.Stop()

	payload := models.NotificationPayload{
		RecipientID: "t1",
		EntryID:     "e1",
		EntryKind:   models.EntryKindSummary,
		Decision:    models.ApprovalStatusApproved,
		DecidedBy:   "a1",
		DecidedAt:   time.Now(),
	}
	notifier.NotifyDecision(context.Background(), payload)

	select {
	case got := <-delivered:
		assert.Equal(t, payload.EntryID, got.EntryID)
		assert.Equal(t, payload.Decision, got.Decision)
		assert.Equal(t, payload.RecipientID, got.RecipientID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestQueueNotifierRetriesFailedDelivery(t *testing.T) {
	attempts := make(chan struct{}, 4)
	sink := func(context.Context, models.NotificationPayload) error {
		attempts <- struct{}{}
		return fmt.Errorf("sink unavailable")
	}

	notifier := NewQueueNotifier(testNotificationsConfig(), sink, nil, nil)
	notifier.Start(context.Background())
	defer notifier.Stop()

	notifier.NotifyDecision(context.Background(), models.NotificationPayload{EntryID: "e1"})

	// One initial attempt plus one retry, then the job is dropped.
	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected delivery attempt %d", i+1)
		}
	}
}

func TestQueueNotifierSwallowsEnqueueFailures(t *testing.T) {
	notifier := NewQueueNotifier(testNotificationsConfig(), LogSink(nil), nil, nil)

	// Never started: Enqueue fails, NotifyDecision must not panic or
	// surface the error.
	require.NotPanics(t, func() {
		notifier.NotifyDecision(context.Background(), models.NotificationPayload{EntryID: "e1"})
	})
}

func TestNopNotifier(t *testing.T) {
	require.NotPanics(t, func() {
		NopNotifier{}.NotifyDecision(context.Background(), models.NotificationPayload{EntryID: "e1"})
	})
}
