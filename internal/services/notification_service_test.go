package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
)

type mockNotificationRepo struct {
	repository.NotificationRepository
	byID    map[uint]*models.Notification
	updated []models.Notification
	deleted []uint
}

func (m *mockNotificationRepo) FindByID(ctx context.Context, id uint) (*models.Notification, error) {
	if n, ok := m.byID[id]; ok {
		return n, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) Update(ctx context.Context, notification *models.Notification) error {
	m.updated = append(m.updated, *notification)
	return nil
}

func (m *mockNotificationRepo) Delete(ctx context.Context, id uint) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	repo := &mockNotificationRepo{
		byID: map[uint]*models.Notification{
			5: {ID: 5, UserID: 42, Title: "Application submitted"},
		},
	}
	svc := NewNotificationService(repo, nil)

	err := svc.MarkAsRead(context.Background(), 5, 42)

	assert.NoError(t, err)
	assert.Len(t, repo.updated, 1)
	assert.NotNil(t, repo.updated[0].ReadAt)
}

func TestNotificationService_MarkAsRead_Forbidden(t *testing.T) {
	repo := &mockNotificationRepo{
		byID: map[uint]*models.Notification{
			5: {ID: 5, UserID: 42},
		},
	}
	svc := NewNotificationService(repo, nil)

	err := svc.MarkAsRead(context.Background(), 5, 777)

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, repo.updated)
}

func TestNotificationService_Delete(t *testing.T) {
	repo := &mockNotificationRepo{
		byID: map[uint]*models.Notification{
			5: {ID: 5, UserID: 42},
		},
	}
	svc := NewNotificationService(repo, nil)

	assert.NoError(t, svc.Delete(context.Background(), 5, 42))
	assert.Equal(t, []uint{5}, repo.deleted)

	assert.ErrorIs(t, svc.Delete(context.Background(), 5, 777), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(context.Background(), 99, 42), ErrNotFound)
}
