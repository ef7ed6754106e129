package services

import (
	"context"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

// AuditService appends entries to the audit trail. The trail is
// best-effort: Log never returns an error, so a broken audit store can
// never block or fail the primary workflow.
type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry. actorID nil means system-initiated.
// Write failures are logged and swallowed.
func (s *AuditService) Log(ctx context.Context, actorID *uint, action, entityType string, entityID uint, metadata map[string]any) {
	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("Failed to create audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err)
	}
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.AuditQuery) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, query)
}

// FindByEntity retrieves the audit trail of a single entity
func (s *AuditService) FindByEntity(ctx context.Context, entityType string, entityID uint) ([]models.AuditLog, error) {
	return s.repo.FindByEntity(ctx, entityType, entityID)
}
