package services

import (
	"context"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

// NotificationService creates and manages in-app notifications
type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
}

func NewNotificationService(repo repository.NotificationRepository, userRepo repository.UserRepository) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo}
}

// NotifyUser creates a notification for a single user
func (s *NotificationService) NotifyUser(ctx context.Context, userID uint, title, message, notificationType string) error {
	notification := &models.Notification{
		UserID:           userID,
		Title:            title,
		Message:          message,
		NotificationType: &notificationType,
	}
	return s.repo.Create(ctx, notification)
}

// NotifyAdmins fans a notification out to every admin account.
// Per-admin failures are logged and do not stop the fan-out.
func (s *NotificationService) NotifyAdmins(ctx context.Context, title, message, notificationType string) error {
	admins, err := s.userRepo.FindAdmins(ctx)
	if err != nil {
		return err
	}

	for _, admin := range admins {
		if err := s.NotifyUser(ctx, admin.ID, title, message, notificationType); err != nil {
			logger.Error("Failed to notify admin", "admin_id", admin.ID, "error", err)
		}
	}
	return nil
}

// ListForUser returns the user's notifications, optionally unread only
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, int64, error) {
	query := repository.NewListQuery()
	if unreadOnly {
		query.Filters["unread"] = "true"
	}
	return s.repo.FindByUser(ctx, userID, query)
}

// MarkAsRead marks a single notification read, enforcing ownership
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uint) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if notification.UserID != userID {
		return ErrForbidden
	}
	notification.MarkAsRead()
	return s.repo.Update(ctx, notification)
}

// MarkAllAsRead marks every unread notification of the user read
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// Delete removes a notification, enforcing ownership
func (s *NotificationService) Delete(ctx context.Context, id, userID uint) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if notification.UserID != userID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
