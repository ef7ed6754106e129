package models

import (
	"time"
)

// AuditLog represents one append-only audit trail entry. ActorID is nil
// for system-initiated actions. Rows are never updated or deleted.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActorID    *uint          `gorm:"index" json:"actor_id"`
	Action     string         `gorm:"size:50;not null;index" json:"action"`
	EntityType string         `gorm:"size:50;index:idx_audit_entity" json:"entity_type"`
	EntityID   uint           `gorm:"index:idx_audit_entity" json:"entity_id"`
	Metadata   map[string]any `gorm:"type:jsonb;serializer:json" json:"metadata"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`

	// Associations
	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit action tags emitted by the decision pipeline
const (
	AuditActionLoanCreated     = "LOAN_CREATED"
	AuditActionLoanUpdated     = "LOAN_UPDATED"
	AuditActionLoanSubmitted   = "LOAN_SUBMITTED"
	AuditActionPolicyRejected  = "POLICY_REJECTED"
	AuditActionMLEvaluated     = "ML_EVALUATED"
	AuditActionDecisionCreated = "DECISION_CREATED"
	AuditActionUserRegistered  = "USER_REGISTERED"
	AuditActionUserLogin       = "USER_LOGIN"
)

// Audit entity types
const (
	AuditEntityLoanApplication = "LoanApplication"
	AuditEntityLoanDecision    = "LoanDecision"
	AuditEntityUser            = "User"
)

// AuditLogResponse is the JSON response format
type AuditLogResponse struct {
	ID         uint           `json:"id"`
	ActorID    *uint          `json:"actor_id"`
	ActorEmail string         `json:"actor_email,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   uint           `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ToResponse converts AuditLog to AuditLogResponse
func (l *AuditLog) ToResponse() AuditLogResponse {
	resp := AuditLogResponse{
		ID:         l.ID,
		ActorID:    l.ActorID,
		Action:     l.Action,
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		Metadata:   l.Metadata,
		CreatedAt:  l.CreatedAt,
	}
	if l.Actor != nil {
		resp.ActorEmail = l.Actor.Email
	}
	return resp
}
