package enrichment

import (
	"context"
	"fmt"
	"time"

	"legaldoc-backend/internal/queue"
	"legaldoc-backend/internal/shared/metrics"
	"legaldoc-backend/internal/shared/telemetry"
)

// QueueDispatcher hands documents to an out-of-process worker through a message queue.
type QueueDispatcher struct {
	Client queue.Client
	Now    func() time.Time
}

// Dispatch enqueues one enrichment run.
func (d *QueueDispatcher) Dispatch(ctx context.Context, documentID string) error {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	msg := queue.Message{
		DocumentID: documentID,
		RequestID:  telemetry.RequestIDFromContext(ctx),
		EnqueuedAt: now().UTC().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := d.Client.Send(ctx, msg); err != nil {
		metrics.IncJobsDropped()
		return fmt.Errorf("enqueue enrichment: %w", err)
	}
	metrics.IncJobsDispatched()
	return nil
}
