package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/pkg/retry"
)

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []*notification.Message
	fail  error
	calls int
}

func (n *fakeNotifier) Send(_ context.Context, msg *notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, msg)
	return nil
}

func pendingRecord(id string) *notification.OutboxRecord {
	msg, _ := notification.NewMessage("user-1", notification.KindLevelUp, map[string]any{"level": float64(3)})
	return notification.NewOutboxRecord(id, msg)
}

func TestDispatchOutboxJob_DeliversPendingRecords(t *testing.T) {
	outbox := &fakeOutbox{records: []*notification.OutboxRecord{
		pendingRecord("rec-1"),
		pendingRecord("rec-2"),
	}}
	notifier := &fakeNotifier{}

	job := NewDispatchOutboxJob(outbox, notifier, nil, DefaultDispatchOutboxConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, notifier.sent, 2)
	for _, rec := range outbox.records {
		assert.Equal(t, notification.OutboxSent, rec.Status)
		assert.NotNil(t, rec.SentAt)
	}
}

func TestDispatchOutboxJob_PermanentFailureMarksFailed(t *testing.T) {
	outbox := &fakeOutbox{records: []*notification.OutboxRecord{pendingRecord("rec-1")}}
	notifier := &fakeNotifier{fail: retry.Permanent(errors.New("payload rejected"))}

	job := NewDispatchOutboxJob(outbox, notifier, nil, DefaultDispatchOutboxConfig())
	require.NoError(t, job.Run(context.Background()))

	rec := outbox.records[0]
	assert.Equal(t, notification.OutboxFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Contains(t, rec.LastError, "payload rejected")
	// A permanent error must not be retried inside the attempt.
	assert.Equal(t, 1, notifier.calls)
}

func TestDispatchOutboxJob_ExhaustsAfterMaxAttempts(t *testing.T) {
	rec := pendingRecord("rec-1")
	rec.Attempts = 2 // previous failed runs
	rec.Status = notification.OutboxFailed

	outbox := &fakeOutbox{records: []*notification.OutboxRecord{rec}}
	notifier := &fakeNotifier{fail: retry.Permanent(errors.New("still broken"))}

	cfg := DefaultDispatchOutboxConfig()
	cfg.MaxAttempts = 3

	job := NewDispatchOutboxJob(outbox, notifier, nil, cfg)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, notification.OutboxExhausted, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
}

func TestDispatchOutboxJob_EmptyQueueIsNoop(t *testing.T) {
	notifier := &fakeNotifier{}
	job := NewDispatchOutboxJob(&fakeOutbox{}, notifier, nil, DefaultDispatchOutboxConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, notifier.calls)
}

func TestPurgeOutboxJob_RemovesOldSentRecords(t *testing.T) {
	old := pendingRecord("rec-old")
	oldTime := time.Now().UTC().Add(-30 * 24 * time.Hour)
	old.MarkSent(oldTime)

	fresh := pendingRecord("rec-fresh")
	fresh.MarkSent(time.Now().UTC())

	exhausted := pendingRecord("rec-exhausted")
	exhausted.MarkFailed("gone", 1)

	outbox := &fakeOutbox{records: []*notification.OutboxRecord{old, fresh, exhausted}}

	job := NewPurgeOutboxJob(outbox, 7*24*time.Hour, nil)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, outbox.records, 2)
	assert.Equal(t, "rec-fresh", outbox.records[0].ID)
	// Exhausted records stay behind for manual review.
	assert.Equal(t, "rec-exhausted", outbox.records[1].ID)
}
