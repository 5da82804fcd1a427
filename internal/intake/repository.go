package intake

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/notifications"
)

// Repository defines the interface for intake data access.
// Phone values passed in and out are as stored (encrypted).
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CreateIntake(ctx context.Context, intake *domain.Intake) error
	GetIntake(ctx context.Context, id string) (*domain.Intake, error)
	GetIntakeForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Intake, error)
	UpdateIntakeTx(ctx context.Context, tx pgx.Tx, intake *domain.Intake) error
	ListIntakes(ctx context.Context, filter ListFilter) ([]domain.Intake, error)
	CountByStatus(ctx context.Context) (map[domain.IntakeStatus]int64, error)
	DeleteIntake(ctx context.Context, id string) error
	SetNotified(ctx context.Context, id, message string) error
}

// QueueWriter enqueues deferred SMS inside the caller's transaction.
type QueueWriter interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, item *notifications.QueueItem) error
}

// PhoneCipher seals phone numbers at rest.
type PhoneCipher interface {
	Encrypt(plaintext string) (string, error)
	Reveal(value string) string
	RevealPhone(value string) (string, bool)
}

// ListFilter narrows ListIntakes.
type ListFilter struct {
	Status *domain.IntakeStatus
	Search string
	Limit  int
	Offset int
}
