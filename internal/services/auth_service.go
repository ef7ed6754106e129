package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/config"
	"github.com/creditiq/creditiq-api/internal/jobs"
	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

const (
	bcryptCost      = 12
	refreshTokenTTL = 30 * 24 * time.Hour
)

// AuthService handles registration, login and token lifecycle
type AuthService struct {
	userRepo    repository.UserRepository
	refreshRepo repository.RefreshTokenRepository
	auditSvc    *AuditService
	emailSvc    *EmailService
	worker      *jobs.Worker
	jwtSecret   string
	jwtTTL      time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	refreshRepo repository.RefreshTokenRepository,
	auditSvc *AuditService,
	emailSvc *EmailService,
	worker *jobs.Worker,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		auditSvc:    auditSvc,
		emailSvc:    emailSvc,
		worker:      worker,
		jwtSecret:   cfg.JWTSecret,
		jwtTTL:      time.Duration(cfg.JWTExpirationHours) * time.Hour,
	}
}

// RegisterInput holds the signup payload
type RegisterInput struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// LoginInput holds the credentials payload
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenPair is the issued credential set
type TokenPair struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	ExpiresAt    time.Time           `json:"expires_at"`
	User         models.UserResponse `json:"user"`
}

// Register creates a user account and issues an initial token pair
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:             input.Email,
		EncryptedPassword: string(hash),
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		Role:              models.RoleUser,
		Status:            models.StatusActive,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	s.auditSvc.Log(ctx, &user.ID, models.AuditActionUserRegistered, models.AuditEntityUser, user.ID,
		map[string]any{"email": user.Email})

	if s.worker != nil && s.emailSvc != nil {
		u := user
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.emailSvc.SendWelcomeEmail(ctx, u)
		})
	}

	return s.issueTokens(ctx, user)
}

// Login verifies credentials and issues a fresh token pair
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*TokenPair, error) {
	user, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidPassword
		}
		return nil, err
	}

	if !user.IsActive() {
		return nil, ErrForbidden
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.EncryptedPassword), []byte(input.Password)); err != nil {
		return nil, ErrInvalidPassword
	}

	s.auditSvc.Log(ctx, &user.ID, models.AuditActionUserLogin, models.AuditEntityUser, user.ID, nil)

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token, revoking the presented one
func (s *AuthService) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	stored, err := s.refreshRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if stored.IsExpired() {
		if err := s.refreshRepo.Delete(ctx, stored.Token); err != nil {
			logger.Warn("Failed to delete expired refresh token", "error", err)
		}
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrForbidden
	}

	// Rotation: the presented token is single use
	if err := s.refreshRepo.Delete(ctx, stored.Token); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes all refresh tokens of the user
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	return s.refreshRepo.DeleteByUser(ctx, userID)
}

// GetUser returns the user profile behind an authenticated request
func (s *AuthService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	expiresAt := time.Now().Add(s.jwtTTL)

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	refreshExpiry := time.Now().Add(refreshTokenTTL)
	refresh := &models.RefreshToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: &refreshExpiry,
	}
	if err := s.refreshRepo.Create(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt,
		User:         user.ToResponse(),
	}, nil
}
