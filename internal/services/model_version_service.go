package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
)

// ModelVersionService maintains the registry of scorer model versions
// observed in decisions
type ModelVersionService struct {
	repo repository.ModelVersionRepository
}

func NewModelVersionService(repo repository.ModelVersionRepository) *ModelVersionService {
	return &ModelVersionService{repo: repo}
}

// List returns all known model versions, newest first
func (s *ModelVersionService) List(ctx context.Context) ([]models.ModelVersion, error) {
	return s.repo.List(ctx)
}

// Active returns the version currently marked active, or nil when no
// version has been observed yet
func (s *ModelVersionService) Active(ctx context.Context) (*models.ModelVersion, error) {
	version, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return version, nil
}

// RecordSeen upserts a version reported by the scorer and marks it
// active. Called off the request path after each scored decision.
func (s *ModelVersionService) RecordSeen(ctx context.Context, version string) error {
	if version == "" {
		return nil
	}
	return s.repo.Upsert(ctx, &models.ModelVersion{
		Version:  version,
		IsActive: true,
	})
}
