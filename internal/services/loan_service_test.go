package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
)

type mockLoanRepo struct {
	repository.LoanRepository
	mockFindByID              func(ctx context.Context, id uint) (*models.LoanApplication, error)
	mockFindByIDWithDecisions func(ctx context.Context, id uint) (*models.LoanApplication, error)
	mockCreate                func(ctx context.Context, app *models.LoanApplication) error
	mockUpdateWhereStatus     func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error)
	mockCreateDecision        func(ctx context.Context, decision *models.LoanDecision) error
}

func (m *mockLoanRepo) FindByID(ctx context.Context, id uint) (*models.LoanApplication, error) {
	return m.mockFindByID(ctx, id)
}

func (m *mockLoanRepo) FindByIDWithDecisions(ctx context.Context, id uint) (*models.LoanApplication, error) {
	return m.mockFindByIDWithDecisions(ctx, id)
}

func (m *mockLoanRepo) Create(ctx context.Context, app *models.LoanApplication) error {
	return m.mockCreate(ctx, app)
}

func (m *mockLoanRepo) UpdateWhereStatus(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
	return m.mockUpdateWhereStatus(ctx, id, expectedStatus, fields)
}

func (m *mockLoanRepo) CreateDecision(ctx context.Context, decision *models.LoanDecision) error {
	return m.mockCreateDecision(ctx, decision)
}

type mockAuditRepo struct {
	repository.AuditRepository
	entries   []models.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) actions() []string {
	actions := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

type stubScorer struct {
	healthy      bool
	result       *PredictionResult
	err          error
	predictCalls int
}

func (s *stubScorer) CheckHealth(ctx context.Context) bool {
	return s.healthy
}

func (s *stubScorer) Predict(ctx context.Context, app *models.LoanApplication) (*PredictionResult, error) {
	s.predictCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func draftApplication(id, userID uint) *models.LoanApplication {
	app := eligibleApplication()
	app.ID = id
	app.UserID = userID
	app.Status = models.ApplicationStatusDraft
	return app
}

// newTestLoanService wires the orchestrator without a worker so the
// asynchronous side effects (notifications, emails) are skipped.
func newTestLoanService(repo *mockLoanRepo, audit *mockAuditRepo, scorer RiskScorer) *LoanService {
	return NewLoanService(repo, nil, scorer, NewAuditService(audit), nil, nil, nil, nil)
}

func TestLoanService_Create(t *testing.T) {
	repo := &mockLoanRepo{
		mockCreate: func(ctx context.Context, app *models.LoanApplication) error {
			app.ID = 7
			return nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newTestLoanService(repo, audit, &stubScorer{})

	app, err := svc.Create(context.Background(), 42, &CreateLoanInput{
		Income:         800000,
		LoanAmount:     200000,
		Tenure:         36,
		EmploymentType: "SALARIED",
		ExistingEmis:   10000,
		CreditScore:    720,
		Age:            34,
		Dependents:     1,
	})

	assert.NoError(t, err)
	assert.Equal(t, uint(7), app.ID)
	assert.Equal(t, uint(42), app.UserID)
	assert.Equal(t, models.ApplicationStatusDraft, app.Status)
	assert.Equal(t, []string{models.AuditActionLoanCreated}, audit.actions())
}

func TestLoanService_Submit_NotFound(t *testing.T) {
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestLoanService(repo, &mockAuditRepo{}, &stubScorer{})

	result, err := svc.Submit(context.Background(), 99, 42)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoanService_Submit_Forbidden(t *testing.T) {
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return draftApplication(1, 42), nil
		},
	}
	svc := newTestLoanService(repo, &mockAuditRepo{}, &stubScorer{})

	result, err := svc.Submit(context.Background(), 1, 777)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLoanService_Submit_ConflictWhenNotDraft(t *testing.T) {
	for _, status := range []string{
		models.ApplicationStatusSubmitted,
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	} {
		t.Run(status, func(t *testing.T) {
			updates := 0
			repo := &mockLoanRepo{
				mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
					app := draftApplication(1, 42)
					app.Status = status
					return app, nil
				},
				mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
					updates++
					return true, nil
				},
			}
			svc := newTestLoanService(repo, &mockAuditRepo{}, &stubScorer{})

			result, err := svc.Submit(context.Background(), 1, 42)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrConflict)
			assert.Equal(t, 0, updates, "transition rejected before storage is touched")
		})
	}
}

func TestLoanService_Submit_ConflictOnLostRace(t *testing.T) {
	decisions := 0
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return draftApplication(1, 42), nil
		},
		mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
			// Another submit flipped the status between the read and the update
			return false, nil
		},
		mockCreateDecision: func(ctx context.Context, decision *models.LoanDecision) error {
			decisions++
			return nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newTestLoanService(repo, audit, &stubScorer{})

	result, err := svc.Submit(context.Background(), 1, 42)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, decisions, "losing submit must not create a decision")
	assert.Empty(t, audit.entries)
}

func TestLoanService_Submit_PolicyRejected(t *testing.T) {
	app := draftApplication(1, 42)
	app.CreditScore = 500

	var statusUpdates []map[string]any
	var created *models.LoanDecision
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return app, nil
		},
		mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
			statusUpdates = append(statusUpdates, fields)
			return true, nil
		},
		mockCreateDecision: func(ctx context.Context, decision *models.LoanDecision) error {
			decision.ID = 11
			created = decision
			return nil
		},
	}
	audit := &mockAuditRepo{}
	scorer := &stubScorer{healthy: true}
	svc := newTestLoanService(repo, audit, scorer)

	result, err := svc.Submit(context.Background(), 1, 42)

	assert.NoError(t, err)
	assert.Equal(t, 0, scorer.predictCalls, "policy failure short-circuits scoring")
	assert.Equal(t, models.DecisionRejected, result.Decision.Decision)
	assert.False(t, result.Decision.PolicyPassed)
	assert.Equal(t, "Credit score below minimum threshold (550)", *result.Decision.PolicyReason)
	assert.Nil(t, result.Decision.Probability)
	assert.Same(t, created, result.Decision)

	assert.Len(t, statusUpdates, 2)
	assert.Equal(t, models.ApplicationStatusSubmitted, statusUpdates[0]["status"])
	assert.Equal(t, models.ApplicationStatusRejected, statusUpdates[1]["status"])

	assert.Equal(t, []string{
		models.AuditActionLoanSubmitted,
		models.AuditActionPolicyRejected,
	}, audit.actions())
}

func TestLoanService_Submit_Scored(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		want        string
	}{
		{"low probability approves", 0.12, models.DecisionApproved},
		{"high probability rejects", 0.75, models.DecisionRejected},
		{"threshold itself rejects", 0.4, models.DecisionRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var statusUpdates []map[string]any
			repo := &mockLoanRepo{
				mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
					return draftApplication(1, 42), nil
				},
				mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
					statusUpdates = append(statusUpdates, fields)
					return true, nil
				},
				mockCreateDecision: func(ctx context.Context, decision *models.LoanDecision) error {
					decision.ID = 23
					return nil
				},
			}
			audit := &mockAuditRepo{}
			scorer := &stubScorer{
				healthy: true,
				result: &PredictionResult{
					Probability:  tt.probability,
					RiskBand:     models.RiskBandMedium,
					ModelVersion: "v4",
					Explanations: []models.FeatureExplanation{
						{Feature: "creditScore", Impact: "positive", Value: 720, Contribution: 0.4},
					},
				},
			}
			svc := newTestLoanService(repo, audit, scorer)

			result, err := svc.Submit(context.Background(), 1, 42)

			assert.NoError(t, err)
			assert.Equal(t, tt.want, result.Decision.Decision)
			assert.True(t, result.Decision.PolicyPassed)
			assert.Equal(t, tt.probability, *result.Decision.Probability)
			assert.Equal(t, models.RiskBandMedium, *result.Decision.RiskBand)
			assert.Equal(t, "v4", *result.Decision.ModelVersion)
			assert.Len(t, result.Decision.Explanations, 1)

			assert.Len(t, statusUpdates, 2)
			assert.Equal(t, tt.want, statusUpdates[1]["status"])

			assert.Equal(t, []string{
				models.AuditActionLoanSubmitted,
				models.AuditActionMLEvaluated,
				models.AuditActionDecisionCreated,
			}, audit.actions())

			// DECISION_CREATED must reference the persisted decision row
			last := audit.entries[len(audit.entries)-1]
			assert.Equal(t, models.AuditEntityLoanDecision, last.EntityType)
			assert.Equal(t, uint(23), last.EntityID)
		})
	}
}

func TestLoanService_Submit_ScorerFailure(t *testing.T) {
	var statusUpdates []map[string]any
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return draftApplication(1, 42), nil
		},
		mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
			statusUpdates = append(statusUpdates, fields)
			return true, nil
		},
		mockCreateDecision: func(ctx context.Context, decision *models.LoanDecision) error {
			return nil
		},
	}
	audit := &mockAuditRepo{}
	scorer := &stubScorer{healthy: false, err: ErrScorerUnavailable}
	svc := newTestLoanService(repo, audit, scorer)

	result, err := svc.Submit(context.Background(), 1, 42)

	assert.NoError(t, err, "scorer outage resolves to a decision, not an error")
	assert.Equal(t, 1, scorer.predictCalls, "single attempt, no retry")
	assert.Equal(t, models.DecisionRejected, result.Decision.Decision)
	assert.True(t, result.Decision.PolicyPassed)
	assert.Equal(t, "scoring dependency unavailable", *result.Decision.PolicyReason)
	assert.Nil(t, result.Decision.Probability)
	assert.Nil(t, result.Decision.RiskBand)
	assert.Nil(t, result.Decision.ModelVersion)

	assert.Len(t, statusUpdates, 2)
	assert.Equal(t, models.ApplicationStatusRejected, statusUpdates[1]["status"])

	// No scoring or decision audits on this branch
	assert.Equal(t, []string{models.AuditActionLoanSubmitted}, audit.actions())
}

func TestLoanService_Update(t *testing.T) {
	app := draftApplication(1, 42)
	var capturedFields map[string]any
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return app, nil
		},
		mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
			assert.Equal(t, models.ApplicationStatusDraft, expectedStatus)
			capturedFields = fields
			return true, nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newTestLoanService(repo, audit, &stubScorer{})

	income := 900000.0
	tenure := 48
	updated, err := svc.Update(context.Background(), 1, 42, &UpdateLoanInput{
		Income: &income,
		Tenure: &tenure,
	})

	assert.NoError(t, err)
	assert.NotNil(t, updated)
	assert.Equal(t, map[string]any{"income": 900000.0, "tenure": 48}, capturedFields)
	assert.Equal(t, []string{models.AuditActionLoanUpdated}, audit.actions())
}

func TestLoanService_Update_NoFieldsIsNoOp(t *testing.T) {
	updates := 0
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return draftApplication(1, 42), nil
		},
		mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
			updates++
			return true, nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newTestLoanService(repo, audit, &stubScorer{})

	updated, err := svc.Update(context.Background(), 1, 42, &UpdateLoanInput{})

	assert.NoError(t, err)
	assert.NotNil(t, updated)
	assert.Equal(t, 0, updates)
	assert.Empty(t, audit.entries)
}

func TestLoanService_Update_Forbidden(t *testing.T) {
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return draftApplication(1, 42), nil
		},
	}
	svc := newTestLoanService(repo, &mockAuditRepo{}, &stubScorer{})

	income := 900000.0
	_, err := svc.Update(context.Background(), 1, 777, &UpdateLoanInput{Income: &income})

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLoanService_Update_ConflictWhenNotDraft(t *testing.T) {
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			app := draftApplication(1, 42)
			app.Status = models.ApplicationStatusSubmitted
			return app, nil
		},
	}
	svc := newTestLoanService(repo, &mockAuditRepo{}, &stubScorer{})

	income := 900000.0
	_, err := svc.Update(context.Background(), 1, 42, &UpdateLoanInput{Income: &income})

	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoanService_Update_ConflictOnLostRace(t *testing.T) {
	repo := &mockLoanRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return draftApplication(1, 42), nil
		},
		mockUpdateWhereStatus: func(ctx context.Context, id uint, expectedStatus string, fields map[string]any) (bool, error) {
			return false, nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newTestLoanService(repo, audit, &stubScorer{})

	income := 900000.0
	_, err := svc.Update(context.Background(), 1, 42, &UpdateLoanInput{Income: &income})

	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, audit.entries)
}

func TestLoanService_FindByID_OwnerAndAdminAccess(t *testing.T) {
	repo := &mockLoanRepo{
		mockFindByIDWithDecisions: func(ctx context.Context, id uint) (*models.LoanApplication, error) {
			return draftApplication(1, 42), nil
		},
	}
	svc := newTestLoanService(repo, &mockAuditRepo{}, &stubScorer{})

	app, err := svc.FindByID(context.Background(), 1, 42, false)
	assert.NoError(t, err)
	assert.NotNil(t, app)

	app, err = svc.FindByID(context.Background(), 1, 777, true)
	assert.NoError(t, err)
	assert.NotNil(t, app)

	_, err = svc.FindByID(context.Background(), 1, 777, false)
	assert.ErrorIs(t, err, ErrForbidden)
}
