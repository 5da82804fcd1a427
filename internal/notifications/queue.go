package notifications

import (
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
)

// Default scheduling for status notifications.
const (
	DefaultStatusDelay = time.Hour
	DefaultRetryDelay  = 5 * time.Minute
)

// QueueItem is one deferred SMS. Phone and Message are frozen at enqueue time.
type QueueItem struct {
	ID              string              `json:"id"`
	IntakeID        string              `json:"intake_id"`
	StatusCode      domain.IntakeStatus `json:"status_code"`
	Phone           string              `json:"phone"`
	Message         string              `json:"message"`
	DueAt           time.Time           `json:"due_at"`
	CreatedAt       time.Time           `json:"created_at"`
	Sent            bool                `json:"sent"`
	SentAt          *time.Time          `json:"sent_at,omitempty"`
	Attempts        int                 `json:"attempts"`
	LastError       *string             `json:"last_error,omitempty"`
	ProviderMessage *string             `json:"provider_message,omitempty"`
}

// State derives the worker-facing state of the item at now.
func (q *QueueItem) State(now time.Time) QueueState {
	switch {
	case q.Sent:
		return QueueStateDelivered
	case q.DueAt.After(now):
		return QueueStatePending
	default:
		return QueueStateDue
	}
}

// QueueState is the lifecycle position of a queue item.
type QueueState string

// Queue states.
const (
	QueueStatePending   QueueState = "pending"
	QueueStateDue       QueueState = "due"
	QueueStateDelivered QueueState = "delivered"
)

// IsValid checks if the state is valid.
func (s QueueState) IsValid() bool {
	switch s {
	case QueueStatePending, QueueStateDue, QueueStateDelivered:
		return true
	}
	return false
}

// QueueFilter narrows ListQueueItems.
type QueueFilter struct {
	State    *QueueState
	IntakeID string
	Limit    int
	Offset   int
}

// QueueStats is a snapshot of queue sizes.
type QueueStats struct {
	Pending int64 `json:"pending"`
	Due     int64 `json:"due"`
	Sent    int64 `json:"sent"`
	Failing int64 `json:"failing"`
}
