package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/jobs"
	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/internal/statemachine"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

// ApprovalThreshold separates "low" from "medium/high" predicted default
// risk: probability below it approves, at or above it rejects.
const ApprovalThreshold = 0.4

// scorerUnavailableReason is recorded on decisions taken without a score
const scorerUnavailableReason = "scoring dependency unavailable"

// RiskScorer is the external scoring dependency as seen by the orchestrator
type RiskScorer interface {
	CheckHealth(ctx context.Context) bool
	Predict(ctx context.Context, app *models.LoanApplication) (*PredictionResult, error)
}

// LoanService owns the application lifecycle: creation and edits while
// DRAFT, and the submit pipeline (policy → scoring → decision → terminal
// status → audit trail).
type LoanService struct {
	repo            repository.LoanRepository
	userRepo        repository.UserRepository
	scorer          RiskScorer
	auditSvc        *AuditService
	notificationSvc *NotificationService
	emailSvc        *EmailService
	modelVersionSvc *ModelVersionService
	worker          *jobs.Worker
}

func NewLoanService(
	repo repository.LoanRepository,
	userRepo repository.UserRepository,
	scorer RiskScorer,
	auditSvc *AuditService,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	modelVersionSvc *ModelVersionService,
	worker *jobs.Worker,
) *LoanService {
	return &LoanService{
		repo:            repo,
		userRepo:        userRepo,
		scorer:          scorer,
		auditSvc:        auditSvc,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		modelVersionSvc: modelVersionSvc,
		worker:          worker,
	}
}

// CreateLoanInput holds the applicant fields for a new application
type CreateLoanInput struct {
	Income         float64 `json:"income" binding:"required,gt=0"`
	LoanAmount     float64 `json:"loan_amount" binding:"required,gt=0"`
	Tenure         int     `json:"tenure" binding:"required,gt=0"`
	EmploymentType string  `json:"employment_type" binding:"required,oneof=SALARIED SELF_EMPLOYED BUSINESS"`
	ExistingEmis   float64 `json:"existing_emis" binding:"gte=0"`
	CreditScore    int     `json:"credit_score" binding:"required,gte=300,lte=850"`
	Age            int     `json:"age" binding:"required,gt=0"`
	Dependents     int     `json:"dependents" binding:"gte=0"`
}

// UpdateLoanInput holds partial applicant field updates; nil means unchanged
type UpdateLoanInput struct {
	Income         *float64 `json:"income" binding:"omitempty,gt=0"`
	LoanAmount     *float64 `json:"loan_amount" binding:"omitempty,gt=0"`
	Tenure         *int     `json:"tenure" binding:"omitempty,gt=0"`
	EmploymentType *string  `json:"employment_type" binding:"omitempty,oneof=SALARIED SELF_EMPLOYED BUSINESS"`
	ExistingEmis   *float64 `json:"existing_emis" binding:"omitempty,gte=0"`
	CreditScore    *int     `json:"credit_score" binding:"omitempty,gte=300,lte=850"`
	Age            *int     `json:"age" binding:"omitempty,gt=0"`
	Dependents     *int     `json:"dependents" binding:"omitempty,gte=0"`
}

// SubmissionResult is returned by Submit: the application in its
// terminal status and the decision taken during this transition.
type SubmissionResult struct {
	Application *models.LoanApplication `json:"application"`
	Decision    *models.LoanDecision    `json:"decision"`
}

// Create creates a new DRAFT application owned by userID
func (s *LoanService) Create(ctx context.Context, userID uint, input *CreateLoanInput) (*models.LoanApplication, error) {
	app := &models.LoanApplication{
		UserID:         userID,
		Status:         models.ApplicationStatusDraft,
		Income:         input.Income,
		LoanAmount:     input.LoanAmount,
		Tenure:         input.Tenure,
		EmploymentType: input.EmploymentType,
		ExistingEmis:   input.ExistingEmis,
		CreditScore:    input.CreditScore,
		Age:            input.Age,
		Dependents:     input.Dependents,
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, &userID, models.AuditActionLoanCreated, models.AuditEntityLoanApplication, app.ID,
		map[string]any{"status": app.Status})

	return app, nil
}

// Update applies partial field updates to a DRAFT application. Only the
// owner may update, and only while the application is still DRAFT; the
// mutation goes through the same conditional-update primitive as
// submission, so a concurrently submitted application cannot be edited.
func (s *LoanService) Update(ctx context.Context, id, userID uint, input *UpdateLoanInput) (*models.LoanApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if app.UserID != userID {
		return nil, ErrForbidden
	}
	if !app.MayUpdate() {
		return nil, ErrConflict
	}

	fields := map[string]any{}
	if input.Income != nil {
		fields["income"] = *input.Income
	}
	if input.LoanAmount != nil {
		fields["loan_amount"] = *input.LoanAmount
	}
	if input.Tenure != nil {
		fields["tenure"] = *input.Tenure
	}
	if input.EmploymentType != nil {
		fields["employment_type"] = *input.EmploymentType
	}
	if input.ExistingEmis != nil {
		fields["existing_emis"] = *input.ExistingEmis
	}
	if input.CreditScore != nil {
		fields["credit_score"] = *input.CreditScore
	}
	if input.Age != nil {
		fields["age"] = *input.Age
	}
	if input.Dependents != nil {
		fields["dependents"] = *input.Dependents
	}

	if len(fields) == 0 {
		return app, nil
	}

	ok, err := s.repo.UpdateWhereStatus(ctx, id, models.ApplicationStatusDraft, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race against a concurrent submit; DRAFT is the only
		// mutable state.
		return nil, ErrConflict
	}

	s.auditSvc.Log(ctx, &userID, models.AuditActionLoanUpdated, models.AuditEntityLoanApplication, id,
		map[string]any{"updates": fields})

	return s.repo.FindByID(ctx, id)
}

// Submit runs the decision pipeline for a DRAFT application. Every call
// returns either a terminal decision or a state error; it never returns
// a pending or partial result.
func (s *LoanService) Submit(ctx context.Context, id, userID uint) (*SubmissionResult, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if app.UserID != userID {
		return nil, ErrForbidden
	}

	// Validate the transition before touching storage
	appFSM := statemachine.NewApplicationFSM(app)
	if err := appFSM.Submit(ctx); err != nil {
		return nil, ErrConflict
	}

	// Conditional update closes the race between two concurrent submit
	// calls: exactly one observes DRAFT and wins; the loser gets Conflict.
	now := time.Now()
	ok, err := s.repo.UpdateWhereStatus(ctx, id, models.ApplicationStatusDraft, map[string]any{
		"status":       models.ApplicationStatusSubmitted,
		"submitted_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	app.Status = models.ApplicationStatusSubmitted
	app.SubmittedAt = &now

	s.auditSvc.Log(ctx, &userID, models.AuditActionLoanSubmitted, models.AuditEntityLoanApplication, app.ID, nil)
	s.notifySubmission(app)

	// Deterministic policy screen before any external call
	policy := EvaluateCreditPolicy(app)
	if !policy.Passed {
		decision := &models.LoanDecision{
			ApplicationID: app.ID,
			Decision:      models.DecisionRejected,
			PolicyPassed:  false,
			PolicyReason:  policy.Reason,
		}
		if err := s.finalizeDecision(ctx, app, decision, func(d *models.LoanDecision) {
			s.auditSvc.Log(ctx, &userID, models.AuditActionPolicyRejected, models.AuditEntityLoanApplication, app.ID,
				map[string]any{"reason": *policy.Reason})
		}); err != nil {
			return nil, err
		}
		return &SubmissionResult{Application: app, Decision: decision}, nil
	}

	result, err := s.scorer.Predict(ctx, app)
	if err != nil {
		// Conservative fail-safe: an unscorable application is rejected
		// rather than left pending. No retry within the request.
		logger.Error("Scoring call failed, rejecting application",
			"application_id", app.ID,
			"error", err)

		reason := scorerUnavailableReason
		decision := &models.LoanDecision{
			ApplicationID: app.ID,
			Decision:      models.DecisionRejected,
			PolicyPassed:  true,
			PolicyReason:  &reason,
		}
		if err := s.finalizeDecision(ctx, app, decision, nil); err != nil {
			return nil, err
		}
		return &SubmissionResult{Application: app, Decision: decision}, nil
	}

	if s.worker != nil && s.modelVersionSvc != nil {
		version := result.ModelVersion
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.modelVersionSvc.RecordSeen(ctx, version)
		})
	}

	final := models.DecisionRejected
	if result.Probability < ApprovalThreshold {
		final = models.DecisionApproved
	}

	decision := &models.LoanDecision{
		ApplicationID: app.ID,
		Decision:      final,
		Probability:   &result.Probability,
		RiskBand:      &result.RiskBand,
		PolicyPassed:  true,
		ModelVersion:  &result.ModelVersion,
		Explanations:  result.Explanations,
	}
	if err := s.finalizeDecision(ctx, app, decision, func(d *models.LoanDecision) {
		s.auditSvc.Log(ctx, &userID, models.AuditActionMLEvaluated, models.AuditEntityLoanApplication, app.ID,
			map[string]any{
				"probability":   result.Probability,
				"risk_band":     result.RiskBand,
				"model_version": result.ModelVersion,
			})
		s.auditSvc.Log(ctx, &userID, models.AuditActionDecisionCreated, models.AuditEntityLoanDecision, d.ID,
			map[string]any{
				"decision":    d.Decision,
				"probability": result.Probability,
				"risk_band":   result.RiskBand,
			})
	}); err != nil {
		return nil, err
	}

	return &SubmissionResult{Application: app, Decision: decision}, nil
}

// finalizeDecision persists the decision, moves the application from
// SUBMITTED to its terminal status and emits the branch's audit events.
// Decision creation happens before the status flip, so a terminal status
// implies exactly one decision was created in this transition.
func (s *LoanService) finalizeDecision(ctx context.Context, app *models.LoanApplication, decision *models.LoanDecision, audits func(*models.LoanDecision)) error {
	if err := s.repo.CreateDecision(ctx, decision); err != nil {
		return fmt.Errorf("failed to persist decision: %w", err)
	}

	appFSM := statemachine.NewApplicationFSM(app)
	var err error
	if decision.Decision == models.DecisionApproved {
		err = appFSM.Approve(ctx)
	} else {
		err = appFSM.Reject(ctx)
	}
	if err != nil {
		return err
	}

	ok, err := s.repo.UpdateWhereStatus(ctx, app.ID, models.ApplicationStatusSubmitted, map[string]any{
		"status": decision.Decision,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}

	if audits != nil {
		audits(decision)
	}

	s.notifyOutcome(app, decision)
	return nil
}

// notifySubmission fans out the submission notice off the request path
func (s *LoanService) notifySubmission(app *models.LoanApplication) {
	if s.worker == nil {
		return
	}
	appID := app.ID
	userID := app.UserID
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		if err := s.notificationSvc.NotifyUser(ctx, userID,
			"Application submitted",
			fmt.Sprintf("Your loan application #%d was received and is being evaluated", appID),
			models.NotificationTypeLoanSubmitted); err != nil {
			return err
		}
		if s.emailSvc == nil {
			return nil
		}
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		return s.emailSvc.SendLoanSubmissionEmail(ctx, user, appID)
	})
}

// notifyOutcome fans out the decision notice and email off the request path
func (s *LoanService) notifyOutcome(app *models.LoanApplication, decision *models.LoanDecision) {
	if s.worker == nil {
		return
	}
	appID := app.ID
	userID := app.UserID
	outcome := decision.Decision
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		title := "Loan application rejected"
		notifType := models.NotificationTypeLoanRejected
		if outcome == models.DecisionApproved {
			title = "Loan application approved"
			notifType = models.NotificationTypeLoanApproved
		}
		if err := s.notificationSvc.NotifyUser(ctx, userID, title,
			fmt.Sprintf("A decision was reached on your loan application #%d", appID),
			notifType); err != nil {
			return err
		}
		if s.emailSvc == nil {
			return nil
		}
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		return s.emailSvc.SendLoanDecisionEmail(ctx, user, appID, outcome)
	})
}

// FindByID gets an application, enforcing owner-or-admin access
func (s *LoanService) FindByID(ctx context.Context, id, userID uint, isAdmin bool) (*models.LoanApplication, error) {
	app, err := s.repo.FindByIDWithDecisions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !isAdmin && app.UserID != userID {
		return nil, ErrForbidden
	}
	return app, nil
}

// List returns applications visible to the requester
func (s *LoanService) List(ctx context.Context, query *repository.LoanQuery) ([]models.LoanApplication, int64, error) {
	return s.repo.List(ctx, query)
}

// ListDecisions returns the full decision history of an application,
// most recent first; the first entry is the authoritative outcome.
func (s *LoanService) ListDecisions(ctx context.Context, id, userID uint, isAdmin bool) ([]models.LoanDecision, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !isAdmin && app.UserID != userID {
		return nil, ErrForbidden
	}
	return s.repo.ListDecisions(ctx, id)
}

// GetStats returns application counts by status
func (s *LoanService) GetStats(ctx context.Context) (*repository.LoanStats, error) {
	return s.repo.GetStats(ctx)
}

// RemindStaleDrafts notifies owners of DRAFT applications untouched for
// longer than olderThan. Run from the scheduler.
func (s *LoanService) RemindStaleDrafts(ctx context.Context, olderThan time.Duration) error {
	drafts, err := s.repo.FindStaleDrafts(ctx, olderThan)
	if err != nil {
		return err
	}

	for _, app := range drafts {
		if err := s.notificationSvc.NotifyUser(ctx, app.UserID,
			"Draft application pending",
			fmt.Sprintf("Your loan application #%d is still a draft. Submit it to get a decision.", app.ID),
			models.NotificationTypeDraftReminder); err != nil {
			logger.Error("Failed to send draft reminder", "application_id", app.ID, "error", err)
		}
	}

	return nil
}
