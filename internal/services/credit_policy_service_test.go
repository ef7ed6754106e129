package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/creditiq/creditiq-api/internal/models"
)

func eligibleApplication() *models.LoanApplication {
	return &models.LoanApplication{
		Income:         800000,
		LoanAmount:     200000,
		Tenure:         36,
		EmploymentType: models.EmploymentTypeSalaried,
		ExistingEmis:   10000,
		CreditScore:    720,
		Age:            34,
		Dependents:     1,
	}
}

func TestEvaluateCreditPolicy_Pass(t *testing.T) {
	// 10000 / (800000/12) is roughly a 15% debt-to-income ratio
	result := EvaluateCreditPolicy(eligibleApplication())

	assert.True(t, result.Passed)
	assert.Nil(t, result.Reason)
}

func TestEvaluateCreditPolicy_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(app *models.LoanApplication)
		reason string
	}{
		{
			name:   "Low Credit Score",
			mutate: func(app *models.LoanApplication) { app.CreditScore = 520 },
			reason: "Credit score below minimum threshold (550)",
		},
		{
			name:   "Underage Applicant",
			mutate: func(app *models.LoanApplication) { app.Age = 19 },
			reason: "Applicant age below minimum threshold (21 years)",
		},
		{
			name:   "Low Income",
			mutate: func(app *models.LoanApplication) { app.Income = 12000 },
			reason: "Income below minimum threshold (15000)",
		},
		{
			name: "High Debt To Income",
			mutate: func(app *models.LoanApplication) {
				// 7000 / (120000/12) = 70%
				app.Income = 120000
				app.ExistingEmis = 7000
			},
			reason: "Debt-to-income ratio exceeds maximum threshold (70.00% > 65%)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := eligibleApplication()
			tt.mutate(app)

			result := EvaluateCreditPolicy(app)

			assert.False(t, result.Passed)
			if assert.NotNil(t, result.Reason) {
				assert.Equal(t, tt.reason, *result.Reason)
			}
		})
	}
}

func TestEvaluateCreditPolicy_FirstFailureWins(t *testing.T) {
	// Violates every rule; the credit score rule is evaluated first
	app := &models.LoanApplication{
		Income:       1000,
		ExistingEmis: 5000,
		CreditScore:  400,
		Age:          18,
	}

	result := EvaluateCreditPolicy(app)

	assert.False(t, result.Passed)
	if assert.NotNil(t, result.Reason) {
		assert.Equal(t, "Credit score below minimum threshold (550)", *result.Reason)
	}
}

func TestEvaluateCreditPolicy_Boundaries(t *testing.T) {
	app := eligibleApplication()
	app.CreditScore = MinCreditScore
	app.Age = MinAge
	app.Income = MinIncome
	// 62.5%: 781.25 / (15000/12), just under the ceiling
	app.ExistingEmis = 781.25

	result := EvaluateCreditPolicy(app)

	assert.True(t, result.Passed, "thresholds are inclusive on the passing side")
}

func TestDebtToIncomeRatio_ZeroIncome(t *testing.T) {
	app := &models.LoanApplication{Income: 0, ExistingEmis: 5000}
	assert.Equal(t, 0.0, app.DebtToIncomeRatio())
}
