package models

import (
	"time"
)

// FeatureExplanation is one entry of the scorer's feature attribution,
// ordered by absolute contribution (most impactful first).
type FeatureExplanation struct {
	Feature      string  `json:"feature"`
	Impact       string  `json:"impact"` // "positive" or "negative"
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// LoanDecision is the immutable outcome record of one submission attempt.
// Rows are only ever created; the most recent row (created_at desc) is
// the authoritative outcome for its application.
type LoanDecision struct {
	ID            uint                 `gorm:"primaryKey" json:"id"`
	ApplicationID uint                 `gorm:"not null;index" json:"application_id"`
	Decision      string               `gorm:"not null" json:"decision"`
	Probability   *float64             `gorm:"type:decimal" json:"probability"`
	RiskBand      *string              `json:"risk_band"`
	PolicyPassed  bool                 `gorm:"not null" json:"policy_passed"`
	PolicyReason  *string              `gorm:"type:text" json:"policy_reason"`
	ModelVersion  *string              `json:"model_version"`
	Explanations  []FeatureExplanation `gorm:"type:jsonb;serializer:json" json:"explanations"`
	CreatedAt     time.Time            `gorm:"index" json:"created_at"`

	// Associations
	Application LoanApplication `gorm:"foreignKey:ApplicationID" json:"-"`
}

// TableName specifies the table name for LoanDecision
func (LoanDecision) TableName() string {
	return "loan_decisions"
}

// Decision constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Risk band constants
const (
	RiskBandLow    = "LOW"
	RiskBandMedium = "MEDIUM"
	RiskBandHigh   = "HIGH"
)

// LoanDecisionResponse is the JSON response format for decisions
type LoanDecisionResponse struct {
	ID            uint                 `json:"id"`
	ApplicationID uint                 `json:"application_id"`
	Decision      string               `json:"decision"`
	Probability   *float64             `json:"probability"`
	RiskBand      *string              `json:"risk_band"`
	PolicyPassed  bool                 `json:"policy_passed"`
	PolicyReason  *string              `json:"policy_reason"`
	ModelVersion  *string              `json:"model_version"`
	Explanations  []FeatureExplanation `json:"explanations"`
	CreatedAt     time.Time            `json:"created_at"`
}

// ToResponse converts LoanDecision to LoanDecisionResponse
func (d *LoanDecision) ToResponse() LoanDecisionResponse {
	return LoanDecisionResponse{
		ID:            d.ID,
		ApplicationID: d.ApplicationID,
		Decision:      d.Decision,
		Probability:   d.Probability,
		RiskBand:      d.RiskBand,
		PolicyPassed:  d.PolicyPassed,
		PolicyReason:  d.PolicyReason,
		ModelVersion:  d.ModelVersion,
		Explanations:  d.Explanations,
		CreatedAt:     d.CreatedAt,
	}
}
