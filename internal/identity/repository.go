package identity

import (
	"context"
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
)

// Repository defines the interface for user storage.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, currentUsername string, user *domain.User) error
	DeleteUser(ctx context.Context, username string) error
	CountUsers(ctx context.Context) (int64, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(user *domain.User) (string, time.Time, error)
}
