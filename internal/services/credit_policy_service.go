package services

import (
	"fmt"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

// Policy thresholds applied before any scoring call
const (
	MinCreditScore     = 550
	MinAge             = 21
	MinIncome          = 15000.0
	MaxDebtToIncomePct = 65.0
)

// PolicyResult is the outcome of the deterministic eligibility screen
type PolicyResult struct {
	Passed bool    `json:"passed"`
	Reason *string `json:"reason"`
}

// EvaluateCreditPolicy runs the fixed eligibility rules over an
// application. Rules are evaluated in order and short-circuit on the
// first failure, so Reason always reflects the first violated rule.
// It has no side effects and is safe to call concurrently.
func EvaluateCreditPolicy(app *models.LoanApplication) PolicyResult {
	if app.CreditScore < MinCreditScore {
		logger.Info("Policy rejection: low credit score", "credit_score", app.CreditScore)
		return failed(fmt.Sprintf("Credit score below minimum threshold (%d)", MinCreditScore))
	}

	if app.Age < MinAge {
		logger.Info("Policy rejection: age below minimum", "age", app.Age)
		return failed(fmt.Sprintf("Applicant age below minimum threshold (%d years)", MinAge))
	}

	if app.Income < MinIncome {
		logger.Info("Policy rejection: income below minimum", "income", app.Income)
		return failed(fmt.Sprintf("Income below minimum threshold (%.0f)", MinIncome))
	}

	dti := app.DebtToIncomeRatio()
	if dti > MaxDebtToIncomePct {
		logger.Info("Policy rejection: high debt-to-income ratio", "debt_to_income", fmt.Sprintf("%.2f", dti))
		return failed(fmt.Sprintf("Debt-to-income ratio exceeds maximum threshold (%.2f%% > %.0f%%)", dti, MaxDebtToIncomePct))
	}

	return PolicyResult{Passed: true}
}

func failed(reason string) PolicyResult {
	return PolicyResult{Passed: false, Reason: &reason}
}
