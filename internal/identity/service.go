// Package identity manages workshop accounts and login.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BootstrapUsername is the account created on first start.
const BootstrapUsername = "admin"

// Identity errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBootstrapRole      = errors.New("admin account must keep the admin role")
	ErrLastAdmin          = errors.New("cannot delete the bootstrap admin")
	ErrBootstrapRename    = errors.New("admin account cannot be renamed")
	ErrNothingToUpdate    = errors.New("no fields to update")
)

// Service provides identity business logic.
type Service struct {
	repo   Repository
	issuer TokenIssuer
}

// NewService creates a new identity service.
func NewService(repo Repository, issuer TokenIssuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// LoginInput contains credentials.
type LoginInput struct {
	Username string
	Password string
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	user, err := s.repo.GetUserByUsername(ctx, normalizeUsername(input.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(strings.TrimSpace(input.Password))); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CreateUserInput contains data for a new account.
type CreateUserInput struct {
	Username string
	FullName string
	Password string
	Role     domain.Role
}

// CreateUser adds an account with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	username := normalizeUsername(input.Username)
	if input.Role == "" {
		input.Role = domain.RoleTechnician
	}
	if username == BootstrapUsername && input.Role != domain.RoleAdmin {
		return nil, ErrBootstrapRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(input.Password)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username: username,
		FullName: cases.Upper(language.Und).String(strings.TrimSpace(input.FullName)),
		Password: string(hash),
		Role:     input.Role,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUserInput contains a partial account update. Nil or blank fields
// are left as is.
type UpdateUserInput struct {
	Username *string
	FullName *string
	Password *string
	Role     *domain.Role
}

// UpdateUser changes an account. The bootstrap admin keeps its username and
// the admin role.
func (s *Service) UpdateUser(ctx context.Context, username string, input UpdateUserInput) (*domain.User, error) {
	existing, err := s.repo.GetUserByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, err
	}
	user := *existing
	changed := false

	if input.FullName != nil {
		if v := strings.TrimSpace(*input.FullName); v != "" {
			user.FullName = cases.Upper(language.Und).String(v)
			changed = true
		}
	}
	if input.Username != nil {
		if v := normalizeUsername(*input.Username); v != "" {
			if existing.Username == BootstrapUsername && v != BootstrapUsername {
				return nil, ErrBootstrapRename
			}
			user.Username = v
			changed = true
		}
	}
	if input.Password != nil {
		if v := strings.TrimSpace(*input.Password); v != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(v), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			user.Password = string(hash)
			changed = true
		}
	}
	if input.Role != nil {
		if existing.Username == BootstrapUsername && *input.Role != domain.RoleAdmin {
			return nil, ErrBootstrapRole
		}
		user.Role = *input.Role
		changed = true
	}

	if !changed {
		return nil, ErrNothingToUpdate
	}

	if err := s.repo.UpdateUser(ctx, existing.Username, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns an account by username.
func (s *Service) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetUserByUsername(ctx, normalizeUsername(username))
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// DeleteUser removes an account. The bootstrap admin cannot be removed.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	username = normalizeUsername(username)
	if username == BootstrapUsername {
		return ErrLastAdmin
	}
	return s.repo.DeleteUser(ctx, username)
}

// EnsureBootstrapAdmin creates the admin account when no users exist yet.
// An empty password disables bootstrapping.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, password string) error {
	if password == "" {
		return nil
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := s.CreateUser(ctx, CreateUserInput{
		Username: BootstrapUsername,
		FullName: "Admin",
		Password: password,
		Role:     domain.RoleAdmin,
	}); err != nil && !errors.Is(err, ErrUsernameExists) {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	slog.Info("bootstrap admin account created", "username", BootstrapUsername)
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
