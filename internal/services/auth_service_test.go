package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/config"
	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
)

type mockUserRepo struct {
	repository.UserRepository
	mockFindByID    func(ctx context.Context, id uint) (*models.User, error)
	mockFindByEmail func(ctx context.Context, email string) (*models.User, error)
	mockCreate      func(ctx context.Context, user *models.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.mockFindByEmail(ctx, email)
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	return m.mockCreate(ctx, user)
}

type mockRefreshRepo struct {
	repository.RefreshTokenRepository
	stored  []models.RefreshToken
	deleted []string
	byToken map[string]*models.RefreshToken
}

func (m *mockRefreshRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.byToken[token]; ok {
		return rt, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRefreshRepo) Create(ctx context.Context, rt *models.RefreshToken) error {
	m.stored = append(m.stored, *rt)
	return nil
}

func (m *mockRefreshRepo) Delete(ctx context.Context, token string) error {
	m.deleted = append(m.deleted, token)
	return nil
}

func newTestAuthService(userRepo *mockUserRepo, refreshRepo *mockRefreshRepo) *AuthService {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1}
	return NewAuthService(userRepo, refreshRepo, NewAuditService(&mockAuditRepo{}), nil, nil, cfg)
}

// hashPassword uses the cheapest cost; these tests verify the compare
// path, not the production hash strength.
func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return string(hash)
}

func activeUser(id uint) *models.User {
	return &models.User{
		ID:                id,
		Email:             "jordan@example.com",
		EncryptedPassword: "",
		FirstName:         "Jordan",
		LastName:          "Reyes",
		Role:              models.RoleUser,
		Status:            models.StatusActive,
	}
}

func TestAuthService_Register(t *testing.T) {
	userRepo := &mockUserRepo{
		mockCreate: func(ctx context.Context, user *models.User) error {
			user.ID = 42
			return nil
		},
	}
	refreshRepo := &mockRefreshRepo{}
	svc := newTestAuthService(userRepo, refreshRepo)

	pair, err := svc.Register(context.Background(), &RegisterInput{
		Email:     "jordan@example.com",
		Password:  "correct-horse",
		FirstName: "Jordan",
		LastName:  "Reyes",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, uint(42), pair.User.ID)
	assert.Equal(t, models.RoleUser, pair.User.Role)
	assert.Len(t, refreshRepo.stored, 1)
	assert.Equal(t, pair.RefreshToken, refreshRepo.stored[0].Token)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	userRepo := &mockUserRepo{
		mockCreate: func(ctx context.Context, user *models.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := newTestAuthService(userRepo, &mockRefreshRepo{})

	pair, err := svc.Register(context.Background(), &RegisterInput{
		Email:     "jordan@example.com",
		Password:  "correct-horse",
		FirstName: "Jordan",
		LastName:  "Reyes",
	})

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAuthService_Login(t *testing.T) {
	user := activeUser(42)
	user.EncryptedPassword = hashPassword(t, "correct-horse")
	userRepo := &mockUserRepo{
		mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	refreshRepo := &mockRefreshRepo{}
	svc := newTestAuthService(userRepo, refreshRepo)

	pair, err := svc.Login(context.Background(), &LoginInput{
		Email:    "jordan@example.com",
		Password: "correct-horse",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.True(t, pair.ExpiresAt.After(time.Now()))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	user := activeUser(42)
	user.EncryptedPassword = hashPassword(t, "correct-horse")
	userRepo := &mockUserRepo{
		mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newTestAuthService(userRepo, &mockRefreshRepo{})

	_, err := svc.Login(context.Background(), &LoginInput{
		Email:    "jordan@example.com",
		Password: "wrong",
	})

	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	userRepo := &mockUserRepo{
		mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestAuthService(userRepo, &mockRefreshRepo{})

	_, err := svc.Login(context.Background(), &LoginInput{
		Email:    "nobody@example.com",
		Password: "whatever",
	})

	// Indistinguishable from a wrong password
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	user := activeUser(42)
	user.Status = models.StatusSuspended
	user.EncryptedPassword = hashPassword(t, "correct-horse")
	userRepo := &mockUserRepo{
		mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newTestAuthService(userRepo, &mockRefreshRepo{})

	_, err := svc.Login(context.Background(), &LoginInput{
		Email:    "jordan@example.com",
		Password: "correct-horse",
	})

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthService_Refresh_Rotates(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	userRepo := &mockUserRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.User, error) {
			return activeUser(id), nil
		},
	}
	refreshRepo := &mockRefreshRepo{
		byToken: map[string]*models.RefreshToken{
			"old-token": {ID: 1, UserID: 42, Token: "old-token", ExpiresAt: &expiry},
		},
	}
	svc := newTestAuthService(userRepo, refreshRepo)

	pair, err := svc.Refresh(context.Background(), "old-token")

	assert.NoError(t, err)
	assert.NotEqual(t, "old-token", pair.RefreshToken)
	assert.Equal(t, []string{"old-token"}, refreshRepo.deleted)
	assert.Len(t, refreshRepo.stored, 1)
}

func TestAuthService_Refresh_UnknownToken(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, &mockRefreshRepo{})

	pair, err := svc.Refresh(context.Background(), "nope")

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Refresh_ExpiredToken(t *testing.T) {
	expiry := time.Now().Add(-time.Minute)
	refreshRepo := &mockRefreshRepo{
		byToken: map[string]*models.RefreshToken{
			"stale": {ID: 1, UserID: 42, Token: "stale", ExpiresAt: &expiry},
		},
	}
	svc := newTestAuthService(&mockUserRepo{}, refreshRepo)

	pair, err := svc.Refresh(context.Background(), "stale")

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, []string{"stale"}, refreshRepo.deleted)
}
