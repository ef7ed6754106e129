package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoanApplication represents one loan request
type LoanApplication struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	GUID           string     `gorm:"uniqueIndex;not null" json:"guid"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	Status         string     `gorm:"default:DRAFT;index" json:"status"`
	Income         float64    `gorm:"type:decimal;not null" json:"income"`
	LoanAmount     float64    `gorm:"type:decimal;not null" json:"loan_amount"`
	Tenure         int        `gorm:"not null" json:"tenure"` // months
	EmploymentType string     `gorm:"not null" json:"employment_type"`
	ExistingEmis   float64    `gorm:"type:decimal;default:0" json:"existing_emis"`
	CreditScore    int        `gorm:"not null" json:"credit_score"`
	Age            int        `gorm:"not null" json:"age"`
	Dependents     int        `gorm:"default:0" json:"dependents"`
	SubmittedAt    *time.Time `gorm:"index" json:"submitted_at"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Associations
	User      User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Decisions []LoanDecision `gorm:"foreignKey:ApplicationID" json:"decisions,omitempty"`
}

// TableName specifies the table name for LoanApplication
func (LoanApplication) TableName() string {
	return "loan_applications"
}

// BeforeCreate assigns a GUID for external references
func (a *LoanApplication) BeforeCreate(tx *gorm.DB) error {
	if a.GUID == "" {
		a.GUID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = ApplicationStatusDraft
	}
	return nil
}

// Application status constants
const (
	ApplicationStatusDraft       = "DRAFT"
	ApplicationStatusSubmitted   = "SUBMITTED"
	ApplicationStatusUnderReview = "UNDER_REVIEW"
	ApplicationStatusApproved    = "APPROVED"
	ApplicationStatusRejected    = "REJECTED"
)

// Employment type constants
const (
	EmploymentTypeSalaried     = "SALARIED"
	EmploymentTypeSelfEmployed = "SELF_EMPLOYED"
	EmploymentTypeBusiness     = "BUSINESS"
)

// MaySubmit returns true if the application can transition to submitted
func (a *LoanApplication) MaySubmit() bool {
	return a.Status == ApplicationStatusDraft
}

// MayUpdate returns true if applicant fields are still mutable
func (a *LoanApplication) MayUpdate() bool {
	return a.Status == ApplicationStatusDraft
}

// IsTerminal returns true if the application reached a final status
func (a *LoanApplication) IsTerminal() bool {
	return a.Status == ApplicationStatusApproved || a.Status == ApplicationStatusRejected
}

// DebtToIncomeRatio returns the monthly debt-to-income ratio as a percentage
func (a *LoanApplication) DebtToIncomeRatio() float64 {
	monthlyIncome := a.Income / 12
	if monthlyIncome == 0 {
		return 0
	}
	return (a.ExistingEmis / monthlyIncome) * 100
}

// LoanApplicationResponse is the JSON response format for applications
type LoanApplicationResponse struct {
	ID             uint                  `json:"id"`
	GUID           string                `json:"guid"`
	UserID         uint                  `json:"user_id"`
	ApplicantName  string                `json:"applicant_name,omitempty"`
	ApplicantEmail string                `json:"applicant_email,omitempty"`
	Status         string                `json:"status"`
	Income         float64               `json:"income"`
	LoanAmount     float64               `json:"loan_amount"`
	Tenure         int                   `json:"tenure"`
	EmploymentType string                `json:"employment_type"`
	ExistingEmis   float64               `json:"existing_emis"`
	CreditScore    int                   `json:"credit_score"`
	Age            int                   `json:"age"`
	Dependents     int                   `json:"dependents"`
	SubmittedAt    *time.Time            `json:"submitted_at"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	LatestDecision *LoanDecisionResponse `json:"latest_decision,omitempty"`
}

// ToResponse converts LoanApplication to LoanApplicationResponse.
// Decisions, when loaded, are expected ordered created_at desc; the
// first one is the authoritative outcome.
func (a *LoanApplication) ToResponse() LoanApplicationResponse {
	resp := LoanApplicationResponse{
		ID:             a.ID,
		GUID:           a.GUID,
		UserID:         a.UserID,
		Status:         a.Status,
		Income:         a.Income,
		LoanAmount:     a.LoanAmount,
		Tenure:         a.Tenure,
		EmploymentType: a.EmploymentType,
		ExistingEmis:   a.ExistingEmis,
		CreditScore:    a.CreditScore,
		Age:            a.Age,
		Dependents:     a.Dependents,
		SubmittedAt:    a.SubmittedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}

	if a.User.ID != 0 {
		resp.ApplicantName = a.User.FullName()
		resp.ApplicantEmail = a.User.Email
	}

	if len(a.Decisions) > 0 {
		latest := a.Decisions[0].ToResponse()
		resp.LatestDecision = &latest
	}

	return resp
}
