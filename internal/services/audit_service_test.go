package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creditiq/creditiq-api/internal/models"
)

func TestAuditService_Log(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)

	actorID := uint(42)
	svc.Log(context.Background(), &actorID, models.AuditActionLoanCreated, models.AuditEntityLoanApplication, 7,
		map[string]any{"status": models.ApplicationStatusDraft})

	assert.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, uint(42), *entry.ActorID)
	assert.Equal(t, models.AuditActionLoanCreated, entry.Action)
	assert.Equal(t, models.AuditEntityLoanApplication, entry.EntityType)
	assert.Equal(t, uint(7), entry.EntityID)
	assert.Equal(t, models.ApplicationStatusDraft, entry.Metadata["status"])
}

func TestAuditService_Log_SystemActor(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)

	svc.Log(context.Background(), nil, models.AuditActionDecisionCreated, models.AuditEntityLoanDecision, 3, nil)

	assert.Len(t, repo.entries, 1)
	assert.Nil(t, repo.entries[0].ActorID)
}

func TestAuditService_Log_SwallowsWriteFailure(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("connection refused")}
	svc := NewAuditService(repo)

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), nil, models.AuditActionLoanSubmitted, models.AuditEntityLoanApplication, 1, nil)
	})
	assert.Empty(t, repo.entries)
}
