package notifications

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// QueueStore is the part of the queue the worker drives.
type QueueStore interface {
	FetchDue(ctx context.Context, limit int, now time.Time) ([]*QueueItem, error)
	MarkSent(ctx context.Context, id, receiptNote string, now time.Time) error
	MarkFailed(ctx context.Context, id, errText string, nextDueAt time.Time) error
	ProjectNotified(ctx context.Context, intakeID, message string) error
}

// Repository is the full deferred queue store.
type Repository interface {
	QueueStore

	Enqueue(ctx context.Context, item *QueueItem) error
	EnqueueTx(ctx context.Context, tx pgx.Tx, item *QueueItem) error

	GetQueueItem(ctx context.Context, id string) (*QueueItem, error)
	ListQueueItems(ctx context.Context, filter QueueFilter, now time.Time) ([]*QueueItem, error)
	GetQueueStats(ctx context.Context, now time.Time) (*QueueStats, error)
	RescheduleNow(ctx context.Context, id string, now time.Time) error
}

// Sender delivers a single SMS. Implementations must not retry internally.
type Sender interface {
	Send(ctx context.Context, phone, text string) (*Receipt, error)
}

// Receipt is the provider acknowledgement of an accepted message.
type Receipt struct {
	Status    string
	Message   string
	MessageID string
}

// Note formats the receipt for the provider_message column.
func (r *Receipt) Note() string {
	if r == nil {
		return ""
	}
	if r.MessageID != "" {
		return r.Status + ": " + r.Message + " (" + r.MessageID + ")"
	}
	return r.Status + ": " + r.Message
}
