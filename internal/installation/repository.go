package installation

import (
	"context"
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
)

// Repository defines the interface for installation data access.
type Repository interface {
	CreateInstallation(ctx context.Context, inst *domain.Installation) error
	GetInstallation(ctx context.Context, id string) (*domain.Installation, error)
	ListInstallations(ctx context.Context, filter ListFilter) ([]domain.Installation, error)
	UpdateInstallation(ctx context.Context, inst *domain.Installation) error
	CloseInstallation(ctx context.Context, id string, mountType domain.MountType, photoURLs []string, closedAt time.Time) error
	DeleteInstallation(ctx context.Context, id string) error
}

// PhoneCipher seals phone numbers at rest.
type PhoneCipher interface {
	Encrypt(plaintext string) (string, error)
	Reveal(value string) string
}

// ListFilter narrows ListInstallations.
type ListFilter struct {
	Assignee string
	Closed   *bool
}
