package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/models"
)

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Notification, error)
	FindByUser(ctx context.Context, userID uint, query *ListQuery) ([]models.Notification, int64, error)
	Create(ctx context.Context, notification *models.Notification) error
	Update(ctx context.Context, notification *models.Notification) error
	MarkAllAsRead(ctx context.Context, userID uint) error
	Delete(ctx context.Context, id uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) FindByID(ctx context.Context, id uint) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).First(&notification, id).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) FindByUser(ctx context.Context, userID uint, query *ListQuery) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)

	if query.Filters["unread"] == "true" {
		db = db.Where("read_at IS NULL")
	}

	db.Count(&total)

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Order("created_at DESC").Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) Update(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Save(notification).Error
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", gorm.Expr("NOW()")).Error
}

func (r *notificationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Notification{}, id).Error
}

// ModelVersionRepository defines the interface for model version registry access
type ModelVersionRepository interface {
	List(ctx context.Context) ([]models.ModelVersion, error)
	FindActive(ctx context.Context) (*models.ModelVersion, error)
	Upsert(ctx context.Context, version *models.ModelVersion) error
}

type modelVersionRepository struct {
	db *gorm.DB
}

// NewModelVersionRepository creates a new model version repository
func NewModelVersionRepository(db *gorm.DB) ModelVersionRepository {
	return &modelVersionRepository{db: db}
}

func (r *modelVersionRepository) List(ctx context.Context) ([]models.ModelVersion, error) {
	var versions []models.ModelVersion
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&versions).Error
	return versions, err
}

func (r *modelVersionRepository) FindActive(ctx context.Context) (*models.ModelVersion, error) {
	var version models.ModelVersion
	err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *modelVersionRepository) Upsert(ctx context.Context, version *models.ModelVersion) error {
	var existing models.ModelVersion
	err := r.db.WithContext(ctx).Where("version = ?", version.Version).First(&existing).Error
	if err == nil {
		version.ID = existing.ID
		return r.db.WithContext(ctx).Save(version).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(version).Error
}
