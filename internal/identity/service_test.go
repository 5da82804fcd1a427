package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users         map[string]*domain.User
	createUserErr error
	countErr      error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockRepository) CreateUser(_ context.Context, user *domain.User) error {
	if m.createUserErr != nil {
		return m.createUserErr
	}
	if _, ok := m.users[user.Username]; ok {
		return ErrUsernameExists
	}
	user.ID = "user-" + user.Username
	m.users[user.Username] = user
	return nil
}

func (m *mockRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	if user, ok := m.users[username]; ok {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) ListUsers(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, nil
}

func (m *mockRepository) UpdateUser(_ context.Context, current string, user *domain.User) error {
	if _, ok := m.users[current]; !ok {
		return ErrUserNotFound
	}
	if other, ok := m.users[user.Username]; ok && user.Username != current && other != nil {
		return ErrUsernameExists
	}
	delete(m.users, current)
	cp := *user
	m.users[user.Username] = &cp
	return nil
}

func (m *mockRepository) DeleteUser(_ context.Context, username string) error {
	if _, ok := m.users[username]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *mockRepository) CountUsers(_ context.Context) (int64, error) {
	return int64(len(m.users)), m.countErr
}

// mockIssuer implements TokenIssuer for testing.
type mockIssuer struct{}

func (m *mockIssuer) Issue(user *domain.User) (string, time.Time, error) {
	return "token-" + user.Username, time.Unix(0, 0), nil
}

func TestCreateUser_HashesPasswordAndNormalizes(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockIssuer{})

	// Act
	user, err := service.CreateUser(context.Background(), CreateUserInput{
		Username: "  Ayse ",
		FullName: "ayşe yılmaz",
		Password: "secret1",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "ayse", user.Username)
	assert.Equal(t, "AYŞE YILMAZ", user.FullName)
	assert.Equal(t, domain.RoleTechnician, user.Role, "defaults to technician")
	assert.NotEqual(t, "secret1", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret1")))
}

func TestCreateUser_UsernameExists(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.users["ayse"] = &domain.User{Username: "ayse"}
	service := NewService(repo, &mockIssuer{})

	// Act
	user, err := service.CreateUser(context.Background(), CreateUserInput{Username: "AYSE", FullName: "x", Password: "secret1"})

	// Assert
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestCreateUser_AdminMustStayAdmin(t *testing.T) {
	service := NewService(newMockRepository(), &mockIssuer{})

	_, err := service.CreateUser(context.Background(), CreateUserInput{
		Username: "admin",
		FullName: "x",
		Password: "secret1",
		Role:     domain.RoleInstaller,
	})

	assert.ErrorIs(t, err, ErrBootstrapRole)
}

func TestCreateUser_RepositoryFails(t *testing.T) {
	repo := newMockRepository()
	repo.createUserErr = errors.New("database error")
	service := NewService(repo, &mockIssuer{})

	_, err := service.CreateUser(context.Background(), CreateUserInput{Username: "a", FullName: "b", Password: "secret1"})

	assert.ErrorContains(t, err, "database error")
}

func TestLogin(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	service := NewService(repo, &mockIssuer{})
	_, err := service.CreateUser(context.Background(), CreateUserInput{
		Username: "mehmet",
		FullName: "Mehmet",
		Password: "secret1",
		Role:     domain.RoleInstaller,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "mehmet", "secret1", nil},
		{"case and spaces", " MEHMET ", " secret1 ", nil},
		{"wrong password", "mehmet", "secret2", ErrInvalidCredentials},
		{"unknown user", "nobody", "secret1", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			session, err := service.Login(context.Background(), LoginInput{Username: tt.username, Password: tt.password})

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, session)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "token-mehmet", session.Token)
			assert.Equal(t, domain.RoleInstaller, session.User.Role)
		})
	}
}

func TestDeleteUser(t *testing.T) {
	repo := newMockRepository()
	repo.users["admin"] = &domain.User{Username: "admin", Role: domain.RoleAdmin}
	repo.users["ayse"] = &domain.User{Username: "ayse", Role: domain.RoleTechnician}
	service := NewService(repo, &mockIssuer{})

	assert.ErrorIs(t, service.DeleteUser(context.Background(), "Admin"), ErrLastAdmin)
	assert.NoError(t, service.DeleteUser(context.Background(), "ayse"))
	assert.ErrorIs(t, service.DeleteUser(context.Background(), "ayse"), ErrUserNotFound)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	t.Run("creates admin on empty store", func(t *testing.T) {
		repo := newMockRepository()
		service := NewService(repo, &mockIssuer{})

		require.NoError(t, service.EnsureBootstrapAdmin(context.Background(), "changeme"))

		admin, ok := repo.users["admin"]
		require.True(t, ok)
		assert.Equal(t, domain.RoleAdmin, admin.Role)
	})

	t.Run("skips when users exist", func(t *testing.T) {
		repo := newMockRepository()
		repo.users["ayse"] = &domain.User{Username: "ayse"}
		service := NewService(repo, &mockIssuer{})

		require.NoError(t, service.EnsureBootstrapAdmin(context.Background(), "changeme"))

		assert.Len(t, repo.users, 1)
	})

	t.Run("disabled without password", func(t *testing.T) {
		repo := newMockRepository()
		service := NewService(repo, &mockIssuer{})

		require.NoError(t, service.EnsureBootstrapAdmin(context.Background(), ""))

		assert.Empty(t, repo.users)
	})

	t.Run("count error", func(t *testing.T) {
		repo := newMockRepository()
		repo.countErr = errors.New("db down")
		service := NewService(repo, &mockIssuer{})

		assert.Error(t, service.EnsureBootstrapAdmin(context.Background(), "changeme"))
	})
}

func strPtr(s string) *string { return &s }

func TestUpdateUser(t *testing.T) {
	seed := func(t *testing.T) (*mockRepository, *Service) {
		t.Helper()
		repo := newMockRepository()
		service := NewService(repo, &mockIssuer{})
		_, err := service.CreateUser(context.Background(), CreateUserInput{Username: "admin", FullName: "Admin", Password: "secret1", Role: domain.RoleAdmin})
		require.NoError(t, err)
		_, err = service.CreateUser(context.Background(), CreateUserInput{Username: "ayse", FullName: "Ayşe", Password: "secret1"})
		require.NoError(t, err)
		_, err = service.CreateUser(context.Background(), CreateUserInput{Username: "mehmet", FullName: "Mehmet", Password: "secret1"})
		require.NoError(t, err)
		return repo, service
	}

	t.Run("renames and changes role", func(t *testing.T) {
		repo, service := seed(t)
		role := domain.RoleInstaller

		user, err := service.UpdateUser(context.Background(), "Ayse", UpdateUserInput{
			Username: strPtr(" AyseK "),
			FullName: strPtr("ayşe kaya"),
			Role:     &role,
		})

		require.NoError(t, err)
		assert.Equal(t, "aysek", user.Username)
		assert.Equal(t, "AYŞE KAYA", user.FullName)
		assert.Equal(t, domain.RoleInstaller, user.Role)
		assert.NotContains(t, repo.users, "ayse")
		assert.Contains(t, repo.users, "aysek")
	})

	t.Run("password is rehashed", func(t *testing.T) {
		repo, service := seed(t)

		_, err := service.UpdateUser(context.Background(), "ayse", UpdateUserInput{Password: strPtr("new-secret")})

		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["ayse"].Password), []byte("new-secret")))
	})

	adminRole := domain.RoleAdmin
	technician := domain.RoleTechnician
	tests := []struct {
		name     string
		username string
		input    UpdateUserInput
		wantErr  error
	}{
		{"admin cannot be renamed", "admin", UpdateUserInput{Username: strPtr("root")}, ErrBootstrapRename},
		{"admin keeps admin role", "admin", UpdateUserInput{Role: &technician}, ErrBootstrapRole},
		{"admin may keep its name", "admin", UpdateUserInput{Username: strPtr("ADMIN"), Role: &adminRole}, nil},
		{"blank fields", "ayse", UpdateUserInput{FullName: strPtr("  "), Password: strPtr("")}, ErrNothingToUpdate},
		{"unknown user", "nobody", UpdateUserInput{FullName: strPtr("x")}, ErrUserNotFound},
		{"duplicate username", "ayse", UpdateUserInput{Username: strPtr("mehmet")}, ErrUsernameExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, service := seed(t)

			_, err := service.UpdateUser(context.Background(), tt.username, tt.input)

			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
